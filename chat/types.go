package chat

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant tool"`
	Content string `json:"content"`
	// Images are base64-encoded images for multimodal models.
	Images []string `json:"images,omitempty"`
}

// Options are the sampling parameters forwarded to the model. Nil pointer
// fields are left to the server's defaults.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK        int      `json:"top_k,omitempty" validate:"gte=0"`
	Seed        *int     `json:"seed,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty" validate:"gte=-2"`
	Stop        []string `json:"stop,omitempty"`
}

// Request is the chat payload. It is not modified once handed to the client.
type Request struct {
	// Model may be empty when Config.Model supplies a default.
	Model    string    `json:"model" validate:"required"`
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
	Options  *Options  `json:"options,omitempty"`
	// Format is "json" (quoted) or a JSON schema constraining the output.
	Format json.RawMessage `json:"format,omitempty"`
	// KeepAlive controls how long the model stays loaded, e.g. "5m".
	KeepAlive string `json:"keep_alive,omitempty"`
}

// Chunk is one decoded line of the response stream. Timing and token
// counts are only set on the final chunk (Done == true).
type Chunk struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`

	TotalDuration      time.Duration `json:"total_duration,omitempty"`
	LoadDuration       time.Duration `json:"load_duration,omitempty"`
	PromptEvalCount    int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration,omitempty"`
	EvalCount          int           `json:"eval_count,omitempty"`
	EvalDuration       time.Duration `json:"eval_duration,omitempty"`
}

// Usage is token accounting for a finished response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Usage returns the token counts carried by the chunk.
func (c Chunk) Usage() Usage {
	return Usage{
		PromptTokens:     c.PromptEvalCount,
		CompletionTokens: c.EvalCount,
		TotalTokens:      c.PromptEvalCount + c.EvalCount,
	}
}

// Response is a whole stream folded into one value by Client.Chat.
type Response struct {
	Model      string
	CreatedAt  time.Time
	Message    Message
	DoneReason string
	Usage      Usage
	// TotalDuration is the server-reported generation time.
	TotalDuration time.Duration
	// Chunks is how many chunks were folded.
	Chunks int
}
