package bootstrap

import (
	"github.com/kbukum/chatstream/config"
)

// Config is the constraint for application config types. Any struct that
// embeds config.ServiceConfig by value satisfies it through promoted
// methods:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Chat chat.Config     `yaml:"chat" mapstructure:"chat"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
