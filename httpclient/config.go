package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/chatstream/security"
)

const (
	defaultTimeout               = 30 * time.Second
	defaultDialTimeout           = 10 * time.Second
	defaultResponseHeaderTimeout = 60 * time.Second
)

// Config configures the HTTP transport.
type Config struct {
	// Name identifies the adapter in logs.
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds unary requests (Do). Streams ignore it.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// DialTimeout bounds establishing the TCP connection.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ResponseHeaderTimeout bounds the wait for status and headers; the
	// upstream may spend a while loading a model before answering.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" mapstructure:"response_header_timeout"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// TLS configures the client side of HTTPS connections.
	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	// HTTP2 negotiates HTTP/2 over TLS via golang.org/x/net/http2.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "httpclient"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.ResponseHeaderTimeout <= 0 {
		c.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.DialTimeout <= 0 || c.ResponseHeaderTimeout <= 0 {
		return fmt.Errorf("httpclient: timeouts must be positive")
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return err
		}
	}
	return nil
}
