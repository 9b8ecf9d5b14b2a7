package chat

import (
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/validation"
)

const (
	defaultChatPath    = "/api/chat"
	defaultVersionPath = "/api/version"
	defaultMaxLineSize = 1 << 20
	maxMaxLineSize     = 64 << 20
)

// Config configures a Client.
type Config struct {
	// Name identifies the upstream in logs and provider listings.
	Name string `yaml:"name" mapstructure:"name"`
	// BaseURL is the server root, e.g. "http://localhost:11434".
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ChatPath    string `yaml:"chat_path" mapstructure:"chat_path"`
	VersionPath string `yaml:"version_path" mapstructure:"version_path"`
	// Model is used when a Request leaves Model empty.
	Model string `yaml:"model" mapstructure:"model"`
	// Headers are added to every chat request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// MaxLineSize bounds one NDJSON line in bytes.
	MaxLineSize int `yaml:"max_line_size" mapstructure:"max_line_size"`
	// HTTP configures the default transport.
	HTTP httpclient.Config `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "ollama"
	}
	if c.ChatPath == "" {
		c.ChatPath = defaultChatPath
	}
	if c.VersionPath == "" {
		c.VersionPath = defaultVersionPath
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = defaultMaxLineSize
	}
	if c.HTTP.Name == "" {
		c.HTTP.Name = c.Name
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks the config after defaults are applied. The client itself
// does not call it: a bad base URL surfaces as BUILD_FAILED on each stream.
func (c *Config) Validate() error {
	v := validation.New().
		Required("base_url", c.BaseURL).
		URL("base_url", c.BaseURL).
		Required("chat_path", c.ChatPath).
		Range("max_line_size", c.MaxLineSize, 1024, maxMaxLineSize)
	if err := c.HTTP.Validate(); err != nil {
		v.AddError("http", err.Error())
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
