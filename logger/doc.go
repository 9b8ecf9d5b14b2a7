// Package logger provides structured logging for chatstream using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with map-based structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("chatstream").WithComponent("chat")
//	log.Info("stream complete", logger.Fields("chunks", 12))
//
// Library code that receives no logger falls back to [Nop].
package logger
