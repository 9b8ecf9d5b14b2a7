// Package observability wires OpenTelemetry tracing and metrics for chat
// stream sessions.
//
// Process setup (OTLP over HTTP):
//
//	shutdown, err := observability.Setup(ctx, cfg, log)
//	defer shutdown(context.Background())
//
// Per-session instrumentation:
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("chat"))
//	ctx, span := observability.StartSpan(ctx, observability.SpanChatStream)
//	defer span.End()
//
// Without Setup the global no-op providers are used and every call is cheap.
package observability
