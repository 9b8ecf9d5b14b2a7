package chattest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kbukum/chatstream/httpclient"
)

// Transport is an in-memory chat.Transport. Every DoStream call is
// recorded and answered by Respond.
type Transport struct {
	Respond func(ctx context.Context, req httpclient.Request) (*httpclient.StreamResponse, error)

	mu       sync.Mutex
	requests []httpclient.Request
}

// DoStream implements chat.Transport.
func (t *Transport) DoStream(ctx context.Context, req httpclient.Request) (*httpclient.StreamResponse, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	return t.Respond(ctx, req)
}

// Requests returns the descriptors received so far.
func (t *Transport) Requests() []httpclient.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]httpclient.Request(nil), t.requests...)
}

// Calls is the number of DoStream calls.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Lines answers every request with the same complete NDJSON body.
func Lines(lines ...string) *Transport {
	body := strings.Join(lines, "\n") + "\n"
	return &Transport{Respond: func(context.Context, httpclient.Request) (*httpclient.StreamResponse, error) {
		return newResponse(io.NopCloser(strings.NewReader(body))), nil
	}}
}

// Fail answers every request with err.
func Fail(err error) *Transport {
	return &Transport{Respond: func(context.Context, httpclient.Request) (*httpclient.StreamResponse, error) {
		return nil, err
	}}
}

// Serve answers the next request with p's body and later ones with an
// error.
func Serve(p *Pipe) *Transport {
	var once sync.Once
	return &Transport{Respond: func(context.Context, httpclient.Request) (*httpclient.StreamResponse, error) {
		var resp *httpclient.StreamResponse
		once.Do(func() { resp = newResponse(p) })
		if resp == nil {
			return nil, httpclient.NewConnectionError(io.ErrClosedPipe)
		}
		return resp, nil
	}}
}

func newResponse(body io.ReadCloser) *httpclient.StreamResponse {
	return &httpclient.StreamResponse{
		StatusCode:  http.StatusOK,
		Headers:     map[string]string{"Content-Type": "application/x-ndjson"},
		ContentType: "application/x-ndjson",
		Body:        body,
	}
}

// Pipe is a response body written by the test. Writes block until the
// session reads them.
type Pipe struct {
	r        *io.PipeReader
	w        *io.PipeWriter
	once     sync.Once
	released chan struct{}
}

// NewPipe creates an open body.
func NewPipe() *Pipe {
	r, w := io.Pipe()
	return &Pipe{r: r, w: w, released: make(chan struct{})}
}

func (p *Pipe) Read(b []byte) (int, error) { return p.r.Read(b) }

// Close is called by the session when it releases the connection.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.released) })
	return p.r.Close()
}

// WriteLine sends one line. It fails once the session released the body.
func (p *Pipe) WriteLine(line string) error {
	_, err := io.WriteString(p.w, line+"\n")
	return err
}

// Finish ends the body cleanly.
func (p *Pipe) Finish() error { return p.w.Close() }

// Drop ends the body as if the connection was reset.
func (p *Pipe) Drop() error { return p.w.CloseWithError(io.ErrUnexpectedEOF) }

// Released is closed once the session closed the body.
func (p *Pipe) Released() <-chan struct{} { return p.released }
