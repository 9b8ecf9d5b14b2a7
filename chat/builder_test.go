package chat_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/errors"
)

func userRequest(text string) chat.Request {
	return chat.Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: text}}}
}

func TestRequestBuilder_Build(t *testing.T) {
	b := chat.NewRequestBuilder(chat.Config{
		BaseURL: "http://localhost:11434/",
		Model:   "llama3",
		Headers: map[string]string{"X-Tenant": "t1"},
	})
	temp := 0.2
	req := userRequest("hi")
	req.Options = &chat.Options{Temperature: &temp, Stop: []string{"\n\n"}}
	req.KeepAlive = "5m"

	desc, err := b.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if desc.Method != http.MethodPost {
		t.Errorf("method = %s", desc.Method)
	}
	if desc.Path != "http://localhost:11434/api/chat" {
		t.Errorf("path = %s", desc.Path)
	}
	if desc.Headers["Accept"] != "application/x-ndjson" || desc.Headers["Content-Type"] != "application/json" {
		t.Errorf("headers = %v", desc.Headers)
	}
	if desc.Headers["X-Tenant"] != "t1" {
		t.Errorf("configured header missing: %v", desc.Headers)
	}

	body, ok := desc.Body.([]byte)
	if !ok {
		t.Fatalf("body type %T", desc.Body)
	}
	var wire map[string]any
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if wire["stream"] != true {
		t.Errorf("stream = %v, want true", wire["stream"])
	}
	if wire["model"] != "llama3" {
		t.Errorf("model = %v, want config default", wire["model"])
	}
	if wire["keep_alive"] != "5m" {
		t.Errorf("keep_alive = %v", wire["keep_alive"])
	}
	opts, _ := wire["options"].(map[string]any)
	if opts["temperature"] != 0.2 {
		t.Errorf("options = %v", wire["options"])
	}
	if _, has := wire["format"]; has {
		t.Error("empty format should be omitted")
	}
}

func TestRequestBuilder_RequestModelWins(t *testing.T) {
	b := chat.NewRequestBuilder(chat.Config{BaseURL: "http://h", Model: "llama3"})
	req := userRequest("hi")
	req.Model = "mistral"
	req.Format = json.RawMessage(`"json"`)

	desc, err := b.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var wire struct {
		Model  string          `json:"model"`
		Format json.RawMessage `json:"format"`
	}
	if err := json.Unmarshal(desc.Body.([]byte), &wire); err != nil {
		t.Fatal(err)
	}
	if wire.Model != "mistral" || string(wire.Format) != `"json"` {
		t.Errorf("wire = %+v", wire)
	}
}

func TestRequestBuilder_BuildFailures(t *testing.T) {
	tests := []struct {
		name    string
		cfg     chat.Config
		req     chat.Request
		wantErr string
	}{
		{
			name: "no model anywhere",
			cfg:  chat.Config{BaseURL: "http://h"},
			req:  userRequest("hi"),
		},
		{
			name: "no messages",
			cfg:  chat.Config{BaseURL: "http://h", Model: "m"},
			req:  chat.Request{},
		},
		{
			name: "bad role",
			cfg:  chat.Config{BaseURL: "http://h", Model: "m"},
			req:  chat.Request{Messages: []chat.Message{{Role: "robot", Content: "x"}}},
		},
		{
			name: "relative base url",
			cfg:  chat.Config{BaseURL: "localhost:11434", Model: "m"},
			req:  userRequest("hi"),
		},
		{
			name: "empty base url",
			cfg:  chat.Config{Model: "m"},
			req:  userRequest("hi"),
		},
		{
			name: "unparseable base url",
			cfg:  chat.Config{BaseURL: "http://[::1", Model: "m"},
			req:  userRequest("hi"),
		},
		{
			name: "invalid format payload",
			cfg:  chat.Config{BaseURL: "http://h", Model: "m"},
			req: chat.Request{
				Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}},
				Format:   json.RawMessage(`{not json`),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chat.NewRequestBuilder(tt.cfg).Build(tt.req)
			if !errors.IsBuild(err) {
				t.Fatalf("expected BUILD_FAILED, got %v", err)
			}
		})
	}
}

func TestRequestBuilder_ValidationDetails(t *testing.T) {
	b := chat.NewRequestBuilder(chat.Config{BaseURL: "http://h", Model: "m"})
	_, err := b.Build(chat.Request{Messages: []chat.Message{{Role: "robot"}}})

	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeBuildFailed {
		t.Fatalf("expected BUILD_FAILED, got %v", err)
	}
	if errors.CodeOf(appErr.Cause) != errors.ErrCodeInvalidInput {
		t.Errorf("cause = %v, want INVALID_INPUT", appErr.Cause)
	}
}
