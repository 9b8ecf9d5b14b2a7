package httpclient

import (
	"io"
	"net/http"
	"sync"
)

// Request describes an outbound HTTP request.
type Request struct {
	Method string
	// Path is appended to Config.BaseURL unless it is already absolute.
	Path string
	// Headers override Config.Headers.
	Headers map[string]string
	Query   map[string]string
	// Body accepts io.Reader, []byte, string, or a value to JSON-encode.
	Body any
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// StreamResponse is an open response whose body is read incrementally.
// The caller must Close it.
type StreamResponse struct {
	StatusCode  int
	Headers     map[string]string
	ContentType string
	Body        io.ReadCloser

	closeOnce sync.Once
	closeErr  error
}

// NewStreamResponse wraps resp; DoStream and test transports use it.
func NewStreamResponse(resp *http.Response) *StreamResponse {
	return &StreamResponse{
		StatusCode:  resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}
}

// Close releases the connection. Safe to call more than once and from
// another goroutine than the reader.
func (r *StreamResponse) Close() error {
	r.closeOnce.Do(func() {
		if r.Body != nil {
			r.closeErr = r.Body.Close()
		}
	})
	return r.closeErr
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
