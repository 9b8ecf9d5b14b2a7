package chat

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/pipeline"
	"github.com/kbukum/chatstream/util"
)

// ErrClosed is the cancellation cause of a session closed by its consumer.
var ErrClosed = fmt.Errorf("chat: stream closed: %w", context.Canceled)

// Transport opens a streaming HTTP response. *httpclient.Adapter
// implements it.
type Transport interface {
	DoStream(ctx context.Context, req httpclient.Request) (*httpclient.StreamResponse, error)
}

type sessionDeps struct {
	transport   Transport
	log         *logger.Logger
	metrics     *observability.StreamMetrics
	tracer      trace.Tracer
	maxLineSize int
}

// Stream is a single-use session over one request, consumed by pulling.
// It connects on the first call to Next. Next must not be called
// concurrently; Close may be called from any goroutine.
type Stream struct {
	id       string
	model    string
	desc     httpclient.Request
	buildErr error
	deps     sessionDeps
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu          sync.Mutex
	started     bool
	resp        *httpclient.StreamResponse
	scanner     *bufio.Scanner
	stopRelease func() bool
	spanCtx     context.Context
	span        trace.Span
	startedAt   time.Time
	chunks      int

	termMu sync.Mutex
	done   bool
	err    error
}

func newStream(ctx context.Context, deps sessionDeps, model string, desc httpclient.Request, buildErr error) *Stream {
	sctx, cancel := context.WithCancelCause(ctx)
	id := uuid.NewString()
	return &Stream{
		id:       id,
		model:    model,
		desc:     desc,
		buildErr: buildErr,
		deps:     deps,
		log: deps.log.WithFields(map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldModel:     model,
		}),
		ctx:    sctx,
		cancel: cancel,
	}
}

// SessionID identifies the session in logs and spans.
func (s *Stream) SessionID() string { return s.id }

// Next returns (chunk, true, nil) for each chunk in arrival order,
// (zero, false, nil) once the stream completed and (zero, false, err)
// once it failed. After the first terminal result every call repeats it.
// A chunk with Done set is the last one: the session completes right after
// it and anything the server sends afterwards, malformed or not, is never
// read. Cancelling ctx cancels the whole session.
func (s *Stream) Next(ctx context.Context) (Chunk, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if done, err := s.terminal(); done {
		return Chunk{}, false, err
	}
	if ctx.Err() != nil {
		s.cancel(context.Cause(ctx))
	}
	if s.ctx.Err() != nil {
		return Chunk{}, false, s.finish(errors.Canceled(context.Cause(s.ctx)))
	}
	stop := context.AfterFunc(ctx, func() { s.cancel(context.Cause(ctx)) })
	defer stop()

	if !s.started {
		s.started = true
		if err := s.connect(); err != nil {
			return Chunk{}, false, s.finish(err)
		}
	}

	for s.scanner.Scan() {
		// Lines already buffered when the session was cancelled are dropped.
		if s.ctx.Err() != nil {
			return Chunk{}, false, s.finish(errors.Canceled(context.Cause(s.ctx)))
		}
		chunk, ok, err := DecodeLine(s.scanner.Bytes())
		if err != nil {
			return Chunk{}, false, s.finish(err)
		}
		if !ok {
			continue
		}
		s.chunks++
		s.deps.metrics.ChunkReceived(s.spanCtx, s.model)
		if s.log.Enabled(zerolog.DebugLevel) {
			s.log.Debug("chat chunk decoded", map[string]interface{}{
				logger.FieldChunks: s.chunks,
				"done":             chunk.Done,
			})
		}
		if chunk.Done {
			s.finish(nil)
		}
		return chunk, true, nil
	}
	return Chunk{}, false, s.finish(s.readErr(s.scanner.Err()))
}

// All ranges over the remaining chunks. A failure is yielded once as
// (zero, err); leaving the loop early closes the session.
func (s *Stream) All(ctx context.Context) iter.Seq2[Chunk, error] {
	return pipeline.Seq(ctx, pipeline.From[Chunk](s))
}

// Close releases the connection. If the session had not finished it ends
// with a CANCELED error caused by ErrClosed. Close is idempotent.
func (s *Stream) Close() error {
	s.cancel(ErrClosed)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish(errors.Canceled(ErrClosed))
	return nil
}

// Err returns the terminal error, or nil while running or after completion.
func (s *Stream) Err() error {
	_, err := s.terminal()
	return err
}

func (s *Stream) terminal() (bool, error) {
	s.termMu.Lock()
	defer s.termMu.Unlock()
	return s.done, s.err
}

func (s *Stream) connect() error {
	if s.buildErr != nil {
		return s.buildErr
	}

	s.startedAt = time.Now()
	s.spanCtx, s.span = s.deps.tracer.Start(s.ctx, observability.SpanChatStream, trace.WithAttributes(
		attribute.String(observability.AttrSessionID, s.id),
		attribute.String(observability.AttrModel, s.model),
		attribute.String(observability.AttrURL, s.desc.Path),
	))
	s.deps.metrics.SessionStarted(s.spanCtx, s.model)
	if s.log.Enabled(zerolog.DebugLevel) {
		s.log.Debug("chat stream connecting", logger.Fields(
			logger.FieldURL, s.desc.Path,
			"headers", util.MaskHeaders(s.desc.Headers),
		))
	}

	resp, err := s.deps.transport.DoStream(s.spanCtx, s.desc)
	if err != nil {
		if s.ctx.Err() != nil {
			return errors.Canceled(context.Cause(s.ctx))
		}
		return errors.TransportFailed(err, httpclient.IsRetryable(err))
	}
	if resp == nil || resp.Body == nil {
		return errors.TransportFailed(stderrors.New("transport returned no response body"), false)
	}

	s.resp = resp
	// Cancelling the session unblocks a pending body read.
	s.stopRelease = context.AfterFunc(s.ctx, func() { _ = resp.Close() })
	observability.SetSpanAttribute(s.spanCtx, observability.AttrStatus, resp.StatusCode)

	s.scanner = bufio.NewScanner(resp.Body)
	s.scanner.Buffer(make([]byte, 0, min(64<<10, s.deps.maxLineSize)), s.deps.maxLineSize)
	return nil
}

func (s *Stream) readErr(err error) error {
	if s.ctx.Err() != nil {
		return errors.Canceled(context.Cause(s.ctx))
	}
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, bufio.ErrTooLong):
		return errors.DecodeFailed(nil, fmt.Errorf("line longer than %d bytes: %w", s.deps.maxLineSize, err))
	default:
		return errors.TransportFailed(httpclient.NewConnectionError(err), true)
	}
}

// finish records the terminal state once and releases the connection. It
// returns the terminal error in effect.
func (s *Stream) finish(err error) error {
	s.termMu.Lock()
	if s.done {
		prev := s.err
		s.termMu.Unlock()
		return prev
	}
	s.done, s.err = true, err
	s.termMu.Unlock()

	if s.stopRelease != nil {
		s.stopRelease()
	}
	if s.resp != nil {
		_ = s.resp.Close()
	}
	s.record(err)
	s.cancel(nil)
	return err
}

func (s *Stream) record(err error) {
	outcome := observability.OutcomeCompleted
	switch {
	case err == nil:
	case errors.IsCanceled(err):
		outcome = observability.OutcomeCanceled
	default:
		outcome = observability.OutcomeFailed
	}

	mctx := context.WithoutCancel(s.ctx)
	fields := map[string]interface{}{
		logger.FieldChunks: s.chunks,
		logger.FieldStatus: outcome,
	}
	if s.span != nil {
		elapsed := time.Since(s.startedAt)
		logger.MergeWithDuration(fields, elapsed)
		s.deps.metrics.SessionEnded(mctx, s.model, outcome, elapsed)
		observability.SetSpanAttribute(s.spanCtx, observability.AttrChunks, s.chunks)
		observability.SetSpanAttribute(s.spanCtx, observability.AttrOutcome, outcome)
		if outcome == observability.OutcomeFailed {
			observability.SetSpanAttribute(s.spanCtx, observability.AttrErrorCode, string(errors.CodeOf(err)))
			observability.SetSpanError(s.spanCtx, err)
		}
		s.span.End()
	}

	switch outcome {
	case observability.OutcomeCompleted:
		s.log.Info("chat stream completed", fields)
	case observability.OutcomeCanceled:
		s.log.Info("chat stream canceled", fields)
	default:
		s.deps.metrics.RecordError(mctx, string(errors.CodeOf(err)))
		fields[logger.FieldErrorCode] = string(errors.CodeOf(err))
		fields[logger.FieldError] = err.Error()
		if appErr, ok := errors.AsAppError(err); ok && appErr.Details["line"] != nil {
			fields[logger.FieldLine] = appErr.Details["line"]
		}
		s.log.Warn("chat stream failed", fields)
	}
}
