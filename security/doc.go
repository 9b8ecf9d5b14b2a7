// Package security holds TLS settings for the connection to the chat
// upstream.
//
//	cfg := security.TLSConfig{
//	    CAFile:     "/etc/ollama/ca.pem",
//	    MinVersion: "1.3",
//	}
//	tlsConfig, err := cfg.Build()
//
// A zero TLSConfig builds to nil, which leaves the transport on Go's
// defaults.
package security
