// Package httpclient is the HTTP transport under the chat client: a tuned
// *http.Client, request encoding, and classification of failures into
// *Error values.
//
//	adapter, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:11434",
//	    TLS:     &security.TLSConfig{CAFile: "/etc/ollama/ca.pem"},
//	})
//	stream, err := adapter.DoStream(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/api/chat",
//	    Body:   payload,
//	})
//	defer stream.Close()
//
// Streaming requests carry no overall timeout; the context bounds them.
// Dial and response-header timeouts still apply so a dead upstream fails
// fast.
package httpclient
