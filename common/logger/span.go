package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer name for spans started outside HTTP middleware (worker, scheduler).
const tracerName = "thirdwatch"

// SpanContext pairs a started span with the context carrying it.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan begins a span under whatever trace the context already carries.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID begins a span tied to a trace that crossed a process
// boundary, typically the trace_id a producer wrote into a queue message.
// An empty or malformed trace ID falls back to a fresh root span, so a
// consumer never fails on bad propagation data.
func StartSpanFromTraceID(ctx context.Context, traceIDHex, name string, opts ...trace.SpanStartOption) *SpanContext {
	parent, ok := remoteParent(traceIDHex)
	if !ok {
		return StartSpan(ctx, name, opts...)
	}

	// Carry the producer trace as both parent and link.
	opts = append(opts, trace.WithLinks(trace.Link{SpanContext: parent}))
	ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
	return StartSpan(ctx, name, opts...)
}

// remoteParent rebuilds a sampled remote span context from a hex trace ID.
func remoteParent(traceIDHex string) (trace.SpanContext, bool) {
	if traceIDHex == "" {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

// Context returns the context carrying the span.
func (sc *SpanContext) Context() context.Context { return sc.ctx }

// End finishes the span.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError attaches err to the span. Nil errors are ignored.
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
	}
}
