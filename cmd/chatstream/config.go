package main

import (
	"fmt"

	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/config"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/version"
)

// AppConfig is the chatstream binary's configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Chat                 chat.Config          `yaml:"chat" mapstructure:"chat"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
}

func (c *AppConfig) ApplyDefaults() {
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Chat.ApplyDefaults()
	if c.Chat.Headers == nil {
		c.Chat.Headers = make(map[string]string)
	}
	// viper lowercases map keys read from files.
	if c.Chat.Headers["User-Agent"] == "" && c.Chat.Headers["user-agent"] == "" {
		c.Chat.Headers["User-Agent"] = version.Get().UserAgent(c.Name)
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("config.chat: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	return nil
}

// loadConfig reads config.yml and .env from the standard locations, or
// from path when given.
func loadConfig(path string) (*AppConfig, error) {
	opts := []config.LoaderOption{
		config.WithDefault("name", "chatstream"),
		config.WithDefault("environment", "development"),
		config.WithDefault("logging.level", "info"),
		config.WithDefault("chat.base_url", "http://localhost:11434"),
		config.WithDefault("chat.model", ""),
		config.WithDefault("observability.tracing.enabled", false),
		config.WithDefault("observability.metrics.enabled", false),
	}
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	var cfg AppConfig
	if err := config.LoadConfig("chatstream", &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
