// Package config loads chatstream configuration from YAML files, .env
// files and environment variables using Viper.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("chatstream", &cfg)
//
// Files are searched under ./cmd/<service>/config.yml, ./config/config.yml
// and ./config.yml. Environment variables override file values; an
// upper-case key such as CHAT_BASE_URL binds to chat.base_url.
package config
