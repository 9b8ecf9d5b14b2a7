package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/chat/chattest"
	"github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/pipeline"
	"github.com/kbukum/chatstream/provider"
	"github.com/kbukum/chatstream/security"
)

func newHTTPClient(t *testing.T, srv *chattest.Server, opts ...chat.Option) *chat.Client {
	t.Helper()
	c, err := chat.New(chat.Config{
		BaseURL: srv.URL,
		Model:   "llama3",
		Headers: map[string]string{"X-Request-Source": "test"},
	}, opts...)
	if err != nil {
		t.Fatalf("chat.New: %v", err)
	}
	return c
}

func TestNew_InvalidHTTPConfig(t *testing.T) {
	_, err := chat.New(chat.Config{
		BaseURL: "http://h",
		HTTP:    httpclient.Config{TLS: &security.TLSConfig{CertFile: "client.pem"}},
	})
	if err == nil {
		t.Fatal("expected an error for a TLS cert without key")
	}
}

func TestClient_StreamOverHTTP(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Lines: []string{chunkLine("Hel"), chunkLine("lo"), doneLine},
	})
	s := newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi"))

	got, err := pullAll(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, "") != "Hello" || len(got) != 3 {
		t.Errorf("chunks = %q", got)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(reqs))
	}
	r := reqs[0]
	if r.Method != http.MethodPost || r.Path != "/api/chat" {
		t.Errorf("request %s %s", r.Method, r.Path)
	}
	if r.Header.Get("Accept") != "application/x-ndjson" || r.Header.Get("X-Request-Source") != "test" {
		t.Errorf("headers = %v", r.Header)
	}
	var body struct {
		Model    string         `json:"model"`
		Stream   bool           `json:"stream"`
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if !body.Stream || body.Model != "llama3" || len(body.Messages) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestClient_HTTPStatusError(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Status:    http.StatusNotFound,
		ErrorBody: `{"error":"model \"llama3\" not found, try pulling it first"}`,
	})
	got, err := pullAll(newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi")))

	if len(got) != 0 {
		t.Errorf("got %d chunks", len(got))
	}
	if !errors.IsTransport(err) {
		t.Fatalf("expected TRANSPORT_FAILED, got %v", err)
	}
	if errors.IsRetryable(err) {
		t.Error("404 should not be retryable")
	}
	var httpErr *httpclient.Error
	if !stderrors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected *httpclient.Error with status 404, got %v", err)
	}
	if !strings.Contains(httpErr.Message, "not found") {
		t.Errorf("message = %q", httpErr.Message)
	}
}

func TestClient_HTTPServerError(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Status: http.StatusServiceUnavailable, ErrorBody: `{"error":"busy"}`})
	_, err := pullAll(newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi")))
	if !errors.IsTransport(err) || !errors.IsRetryable(err) {
		t.Errorf("expected retryable TRANSPORT_FAILED, got %v", err)
	}
}

func TestClient_HTTPDropMidStream(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Lines: []string{chunkLine("a"), chunkLine("b")},
		Drop:  true,
	})
	got, err := pullAll(newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi")))
	if len(got) != 2 {
		t.Errorf("got %d chunks, want 2", len(got))
	}
	if !errors.IsTransport(err) {
		t.Errorf("expected TRANSPORT_FAILED, got %v", err)
	}
}

func TestClient_HTTPMalformedLine(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Lines: []string{chunkLine("a"), "<html>"}, Hold: true})
	got, err := pullAll(newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi")))
	if len(got) != 1 || !errors.IsDecode(err) {
		t.Errorf("got %d chunks and %v, want 1 and DECODE_FAILED", len(got), err)
	}
	waitClosed(t, srv.Disconnected(), "server disconnect after decode failure")
}

func TestClient_CloseReleasesHTTPConnection(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Lines: []string{chunkLine("a")}, Hold: true})
	s := newHTTPClient(t, srv).Stream(context.Background(), userRequest("hi"))

	if _, ok, err := s.Next(context.Background()); !ok || err != nil {
		t.Fatalf("first Next = %v, %v", ok, err)
	}
	_ = s.Close()
	waitClosed(t, srv.Disconnected(), "server disconnect")
}

func TestClient_UnsubscribeReleasesHTTPConnection(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{
		Lines: []string{chunkLine("a"), chunkLine("b"), chunkLine("c")},
		Delay: 200 * time.Millisecond,
	})
	pub := newHTTPClient(t, srv).Publish(context.Background(), userRequest("hi"))

	rec := &recorder{}
	first := make(chan struct{})
	var once sync.Once
	sub := pub.Subscribe(chat.ObserverFuncs{Next: func(c chat.Chunk) {
		rec.OnNext(c)
		once.Do(func() { close(first) })
	}})
	waitClosed(t, first, "first chunk")
	sub.Unsubscribe()

	waitClosed(t, srv.Disconnected(), "server disconnect")
	waitClosed(t, pub.Done(), "publisher end")
	if items, _, _ := rec.snapshot(); len(items) != 1 {
		t.Errorf("delivered %d chunks after Unsubscribe, want 1", len(items))
	}
	if srv.Written() >= 3 {
		t.Errorf("server wrote all %d lines; session was not cancelled", srv.Written())
	}
}

func TestClient_PublishOverHTTP(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{Lines: []string{chunkLine("a"), "", chunkLine("b"), doneLine}})
	pub := newHTTPClient(t, srv).Publish(context.Background(), userRequest("hi"))

	rec := &recorder{}
	waitClosed(t, pub.Subscribe(rec).Done(), "subscription end")
	items, completed, errs := rec.snapshot()
	if len(items) != 3 || completed != 1 || len(errs) != 0 {
		t.Errorf("items=%v completed=%d errs=%v", items, completed, errs)
	}
}

func TestClient_Chat(t *testing.T) {
	tr := chattest.Lines(chunkLine("Hel"), chunkLine("lo"), doneLine)
	resp, err := newTestClient(t, tr).Chat(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Hello" || resp.Message.Role != chat.RoleAssistant {
		t.Errorf("message = %+v", resp.Message)
	}
	if resp.Chunks != 3 || resp.DoneReason != "stop" || resp.Model != "llama3" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.TotalTokens != 8 || resp.TotalDuration != 5*time.Millisecond {
		t.Errorf("usage = %+v, duration = %v", resp.Usage, resp.TotalDuration)
	}
}

func TestClient_ChatFailure(t *testing.T) {
	resp, err := newTestClient(t, chattest.Lines(chunkLine("a"), "{")).Chat(context.Background(), userRequest("hi"))
	if resp != nil || !errors.IsDecode(err) {
		t.Errorf("Chat = %v, %v; want DECODE_FAILED", resp, err)
	}

	resp, err = newTestClient(t, chattest.Lines()).Chat(context.Background(), chat.Request{})
	if resp != nil || !errors.IsBuild(err) {
		t.Errorf("Chat = %v, %v; want BUILD_FAILED", resp, err)
	}
}

func TestClient_IsAvailable(t *testing.T) {
	srv := chattest.NewServer(t, chattest.Script{})
	if !newHTTPClient(t, srv).IsAvailable(context.Background()) {
		t.Error("expected upstream to be available")
	}

	down, err := chat.New(chat.Config{BaseURL: "http://127.0.0.1:1", HTTP: httpclient.Config{Timeout: time.Second}})
	if err != nil {
		t.Fatal(err)
	}
	if down.IsAvailable(context.Background()) {
		t.Error("expected unreachable upstream to be unavailable")
	}

	if newTestClient(t, chattest.Lines()).IsAvailable(context.Background()) {
		t.Error("a transport that cannot probe should report unavailable")
	}
}

func TestClient_ProviderMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "chatstream-test", &buf)

	var stream provider.Stream[chat.Request, chat.Chunk] = newTestClient(t, chattest.Lines(chunkLine("a"), chunkLine("b")))
	stream = provider.Chain(provider.WithLogging[chat.Request, chat.Chunk](log))(stream)
	if stream.Name() != "ollama" {
		t.Errorf("Name() = %q", stream.Name())
	}

	it, err := stream.Execute(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	text := pipeline.Map(pipeline.From(it), func(_ context.Context, c chat.Chunk) (string, error) {
		return c.Message.Content, nil
	})
	out, err := pipeline.Collect(context.Background(), text)
	if err != nil || strings.Join(out, "") != "ab" {
		t.Fatalf("Collect = %v, %v", out, err)
	}
	if !strings.Contains(buf.String(), "provider stream finished") {
		t.Errorf("expected middleware log, got %s", buf.String())
	}
}

func TestClient_LogsSessionOutcome(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "chatstream-test", &buf)
	c := newTestClient(t, chattest.Lines(chunkLine("a"), "bad"), chat.WithLogger(log))

	s := c.Stream(context.Background(), userRequest("hi"))
	if _, err := pullAll(s); !errors.IsDecode(err) {
		t.Fatalf("expected DECODE_FAILED, got %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "chat stream failed" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
	if entry[logger.FieldSessionID] != s.SessionID() || entry[logger.FieldComponent] != "chat" {
		t.Errorf("missing session fields: %v", entry)
	}
	if entry[logger.FieldErrorCode] != string(errors.ErrCodeDecodeFailed) || entry[logger.FieldChunks] != float64(1) {
		t.Errorf("unexpected outcome fields: %v", entry)
	}
}

func TestClient_RecordsSpanAndMetrics(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewStreamMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, chattest.Lines(chunkLine("a"), chunkLine("b"), `{"error":"boom"}`),
		chat.WithTracer(tp.Tracer("test")), chat.WithMetrics(metrics))
	if _, err := pullAll(c.Stream(context.Background(), userRequest("hi"))); !errors.IsUpstream(err) {
		t.Fatalf("expected UPSTREAM_ERROR, got %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != observability.SpanChatStream {
		t.Fatalf("ended spans = %v", spans)
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v", span.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[observability.AttrOutcome].AsString() != observability.OutcomeFailed ||
		attrs[observability.AttrChunks].AsInt64() != 2 ||
		attrs[observability.AttrErrorCode].AsString() != string(errors.ErrCodeUpstream) {
		t.Errorf("span attributes = %v", attrs)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{"chat.session.total": 1, "chat.session.active": 0, "chat.chunk.total": 2, "chat.error.total": 1}
	for name, v := range want {
		if sums[name] != v {
			t.Errorf("%s = %d, want %d", name, sums[name], v)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := chat.Config{BaseURL: "http://localhost:11434"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if cfg.ChatPath != "/api/chat" || cfg.MaxLineSize != 1<<20 || cfg.HTTP.Name != "ollama" {
		t.Errorf("defaults = %+v", cfg)
	}

	bad := chat.Config{BaseURL: "localhost", MaxLineSize: 10}
	bad.ApplyDefaults()
	err := bad.Validate()
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	for _, field := range []string{"base_url", "max_line_size"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

type closingTransport struct {
	*chattest.Transport
	closed int
}

func (c *closingTransport) Close() error {
	c.closed++
	return nil
}

func TestClient_Close(t *testing.T) {
	tr := &closingTransport{Transport: chattest.Lines(chunkLine("a"))}
	c := newTestClient(t, tr)
	if _, err := pullAll(c.Stream(context.Background(), userRequest("hi"))); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil || tr.closed != 1 {
		t.Errorf("Close() = %v, closed %d times", err, tr.closed)
	}

	if err := newTestClient(t, chattest.Lines()).Close(); err != nil {
		t.Errorf("Close without closer = %v", err)
	}

	srv := chattest.NewServer(t, chattest.Script{Lines: []string{chunkLine("a")}})
	overHTTP := newHTTPClient(t, srv)
	if _, err := overHTTP.Chat(context.Background(), userRequest("hi")); err != nil {
		t.Fatal(err)
	}
	if err := overHTTP.Close(); err != nil {
		t.Errorf("Close over HTTP = %v", err)
	}
}
