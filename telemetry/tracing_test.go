package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (*Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp), rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracer_StorageSpan(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.StartStorageSpan(context.Background(), "save", "app")
	tracer.EndStorageSpan(span, StorageSpanOptions{Bytes: 42}, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "heartbeat.storage.save" {
		t.Errorf("unexpected span name %q", s.Name())
	}
	if v, ok := attrValue(s.Attributes(), "heartbeat.id"); !ok || v.AsString() != "app" {
		t.Errorf("expected heartbeat.id=app, got %v", v)
	}
	if v, ok := attrValue(s.Attributes(), "heartbeat.bytes"); !ok || v.AsInt64() != 42 {
		t.Errorf("expected heartbeat.bytes=42, got %v", v)
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", s.Status().Code)
	}
}

func TestTracer_StorageSpanError(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.StartStorageSpan(context.Background(), "load", "app")
	tracer.EndStorageSpan(span, StorageSpanOptions{Empty: true}, errors.New("corrupt"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", s.Status().Code)
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestTracer_FlushSpan(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.StartFlushSpan(context.Background(), "today", "app")
	tracer.EndFlushSpan(span, 1, nil)

	s := rec.Ended()[0]
	if v, ok := attrValue(s.Attributes(), "heartbeat.flush.kind"); !ok || v.AsString() != "today" {
		t.Errorf("expected kind=today, got %v", v)
	}
	if v, ok := attrValue(s.Attributes(), "heartbeat.agents"); !ok || v.AsInt64() != 1 {
		t.Errorf("expected agents=1, got %v", v)
	}
}

func TestGetTracer_DefaultAndGlobal(t *testing.T) {
	if GetTracer() == nil {
		t.Fatal("GetTracer should never return nil")
	}

	tracer, rec := newRecordingTracer()
	SetGlobalTracer(tracer)
	defer SetGlobalTracer(nil)

	_, span := GetTracer().StartSpan(context.Background(), "x")
	span.End()
	if len(rec.Ended()) != 1 {
		t.Error("expected span on the global tracer")
	}
}

func TestNewTracer_NilProvider(t *testing.T) {
	tracer := NewTracer(nil)
	_, span := tracer.StartStorageSpan(context.Background(), "load", "app")
	tracer.EndStorageSpan(span, StorageSpanOptions{}, nil)
}
