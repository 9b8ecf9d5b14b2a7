package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter creates an OTLP HTTP meter provider and installs it globally.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Metrics.Endpoint)}
	if cfg.Metrics.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Metrics.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Session outcomes recorded on chat.session.* instruments.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// StreamMetrics holds the instruments for chat stream sessions.
// A nil *StreamMetrics records nothing.
type StreamMetrics struct {
	sessions        metric.Int64Counter
	active          metric.Int64UpDownCounter
	chunks          metric.Int64Counter
	sessionDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter
}

// NewStreamMetrics creates the session instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	sessions, err := meter.Int64Counter("chat.session.total",
		metric.WithDescription("Stream sessions by model and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.session.total counter: %w", err)
	}
	active, err := meter.Int64UpDownCounter("chat.session.active",
		metric.WithDescription("Stream sessions currently connected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.session.active counter: %w", err)
	}
	chunks, err := meter.Int64Counter("chat.chunk.total",
		metric.WithDescription("Response chunks decoded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.chunk.total counter: %w", err)
	}
	sessionDuration, err := meter.Float64Histogram("chat.session.duration",
		metric.WithDescription("Time from connect to terminal signal"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.session.duration histogram: %w", err)
	}
	errorsTotal, err := meter.Int64Counter("chat.error.total",
		metric.WithDescription("Terminal stream errors by code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.error.total counter: %w", err)
	}

	return &StreamMetrics{
		sessions:        sessions,
		active:          active,
		chunks:          chunks,
		sessionDuration: sessionDuration,
		errorsTotal:     errorsTotal,
	}, nil
}

// SessionStarted marks a session as connected.
func (m *StreamMetrics) SessionStarted(ctx context.Context, model string) {
	if m == nil {
		return
	}
	m.active.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
}

// ChunkReceived counts one decoded chunk.
func (m *StreamMetrics) ChunkReceived(ctx context.Context, model string) {
	if m == nil {
		return
	}
	m.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
}

// SessionEnded records the terminal outcome of a connected session.
func (m *StreamMetrics) SessionEnded(ctx context.Context, model, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	modelAttr := attribute.String("model", model)
	m.active.Add(ctx, -1, metric.WithAttributes(modelAttr))
	m.sessions.Add(ctx, 1, metric.WithAttributes(modelAttr, attribute.String("outcome", outcome)))
	m.sessionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(modelAttr))
}

// RecordError counts a terminal error by its code.
func (m *StreamMetrics) RecordError(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
