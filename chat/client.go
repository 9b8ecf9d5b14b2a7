package chat

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/pipeline"
	"github.com/kbukum/chatstream/provider"
	"github.com/kbukum/chatstream/util"
)

const tracerName = "github.com/kbukum/chatstream/chat"

// Prober performs unary requests. Transports that implement it let the
// client answer IsAvailable.
type Prober interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Client opens chat sessions. It holds no per-session state and is safe
// for concurrent use.
type Client struct {
	cfg     Config
	builder *RequestBuilder
	deps    sessionDeps
}

var _ provider.Stream[Request, Chunk] = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP adapter built from Config.HTTP.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.deps.transport = t }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.deps.log = l.WithComponent("chat") }
}

// WithMetrics records session metrics on m.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(c *Client) { c.deps.metrics = m }
}

// WithTracer sets the tracer used for session spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.deps.tracer = t }
}

// New creates a Client. Unless WithTransport is given, an
// *httpclient.Adapter is built from cfg.HTTP; only that can fail here.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	c := &Client{
		cfg:     cfg,
		builder: NewRequestBuilder(cfg),
		deps: sessionDeps{
			log:         logger.Nop(),
			tracer:      observability.Tracer(tracerName),
			maxLineSize: cfg.MaxLineSize,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.deps.transport == nil {
		adapter, err := httpclient.New(cfg.HTTP)
		if err != nil {
			return nil, err
		}
		c.deps.transport = adapter
	}
	return c, nil
}

// Stream returns the pull form of a new session. It never fails: build
// errors are reported by the first Next.
func (c *Client) Stream(ctx context.Context, req Request) *Stream {
	desc, err := c.builder.Build(req)
	return newStream(ctx, c.deps, c.modelFor(req), desc, err)
}

// Publish returns the push form of a new session. It never fails: build
// errors are delivered to subscribers as the terminal event.
func (c *Client) Publish(ctx context.Context, req Request, opts ...PublishOption) *Publisher {
	return newPublisher(ctx, c.Stream(ctx, req), opts...)
}

// Chat streams req and folds the chunks into one Response.
func (c *Client) Chat(ctx context.Context, req Request) (*Response, error) {
	folded := pipeline.Reduce(pipeline.From[Chunk](c.Stream(ctx, req)), &accumulator{}, (*accumulator).add)
	out, err := pipeline.Collect(ctx, folded)
	if err != nil {
		return nil, err
	}
	resp := out[0].response()
	return &resp, nil
}

// Close releases idle connections held by the transport, if it owns any.
// Sessions already open are not affected.
func (c *Client) Close() error {
	if closer, ok := c.deps.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return c.cfg.Name }

// IsAvailable probes the version endpoint. It reports false when the
// transport cannot probe.
func (c *Client) IsAvailable(ctx context.Context) bool {
	prober, ok := c.deps.transport.(Prober)
	if !ok {
		return false
	}
	target, err := c.builder.resolve(c.cfg.VersionPath)
	if err != nil {
		return false
	}

	ctx, span := c.deps.tracer.Start(ctx, observability.SpanChatProbe,
		trace.WithAttributes(attribute.String(observability.AttrURL, target)))
	defer span.End()

	_, err = prober.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: target})
	if err != nil {
		observability.SetSpanError(ctx, err)
		c.deps.log.Warn("chat upstream unavailable", logger.Fields(
			logger.FieldURL, target,
			logger.FieldError, err.Error(),
		))
		return false
	}
	return true
}

// Execute implements provider.Stream. The error is always nil.
func (c *Client) Execute(ctx context.Context, req Request) (provider.Iterator[Chunk], error) {
	return c.Stream(ctx, req), nil
}

func (c *Client) modelFor(req Request) string {
	return util.Coalesce(req.Model, c.cfg.Model)
}

type accumulator struct {
	last    Chunk
	role    string
	content strings.Builder
	chunks  int
}

func (a *accumulator) add(c Chunk) *accumulator {
	if a.role == "" {
		a.role = c.Message.Role
	}
	a.content.WriteString(c.Message.Content)
	a.last = c
	a.chunks++
	return a
}

func (a *accumulator) response() Response {
	return Response{
		Model:         a.last.Model,
		CreatedAt:     a.last.CreatedAt,
		Message:       Message{Role: a.role, Content: a.content.String()},
		DoneReason:    a.last.DoneReason,
		Usage:         a.last.Usage(),
		TotalDuration: a.last.TotalDuration,
		Chunks:        a.chunks,
	}
}
