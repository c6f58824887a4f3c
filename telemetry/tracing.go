// Package telemetry provides OpenTelemetry tracing around heartbeat persistence.
//
// heartbeatkit never installs a TracerProvider itself; spans go to whatever
// provider the host application registered with otel.SetTracerProvider, or
// nowhere if none was registered.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the tracer name used for heartbeatkit spans.
const InstrumentationName = "github.com/vinayprograms/heartbeatkit"

// Tracer wraps OpenTelemetry tracing with heartbeat-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or one backed by the otel global
// provider if none was set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return NewTracer(otel.GetTracerProvider())
	}
	return globalTracer
}

// NewTracer creates a tracer from the given provider. A nil provider
// yields a no-op tracer.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(InstrumentationName)}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Storage Spans ---

// StorageSpanOptions contains options for storage spans.
type StorageSpanOptions struct {
	Bytes int
	Empty bool // nothing stored, or an absent value written
}

// StartStorageSpan starts a span for a storage load or save of the
// heartbeat bundle with the given identifier.
func (t *Tracer) StartStorageSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "heartbeat.storage."+op, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("heartbeat.id", id))
	return ctx, span
}

// EndStorageSpan ends a storage span with attributes.
func (t *Tracer) EndStorageSpan(span trace.Span, opts StorageSpanOptions, err error) {
	span.SetAttributes(
		attribute.Int("heartbeat.bytes", opts.Bytes),
		attribute.Bool("heartbeat.empty", opts.Empty),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Flush Spans ---

// StartFlushSpan starts a span for a flush of the given kind ("all" or "today").
func (t *Tracer) StartFlushSpan(ctx context.Context, kind, id string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "heartbeat.flush", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("heartbeat.id", id),
		attribute.String("heartbeat.flush.kind", kind),
	)
	return ctx, span
}

// EndFlushSpan ends a flush span, recording how many agents the payload carried.
func (t *Tracer) EndFlushSpan(span trace.Span, agents int, err error) {
	span.SetAttributes(attribute.Int("heartbeat.agents", agents))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
