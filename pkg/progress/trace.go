package progress

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceEmitter opens one OpenTelemetry span per progress group, nested the
// same way the groups are.
type TraceEmitter struct {
	tracer trace.Tracer
	base   context.Context

	mu    sync.Mutex
	spans map[string]spanEntry
}

type spanEntry struct {
	ctx  context.Context
	span trace.Span
}

// NewTraceEmitter creates a tracing emitter. A nil tracer uses the global
// provider's "arbor.progress" tracer.
func NewTraceEmitter(ctx context.Context, tracer trace.Tracer) *TraceEmitter {
	if tracer == nil {
		tracer = otel.Tracer("arbor.progress")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &TraceEmitter{
		tracer: tracer,
		base:   ctx,
		spans:  make(map[string]spanEntry),
	}
}

func (t *TraceEmitter) GroupStarted(path []string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key(path)
	if _, open := t.spans[key]; open {
		return
	}
	parent := t.base
	if len(path) > 1 {
		if entry, ok := t.spans[Key(path[:len(path)-1])]; ok {
			parent = entry.ctx
		}
	}
	ctx, span := t.tracer.Start(parent, path[len(path)-1],
		trace.WithAttributes(
			attribute.String("progress.group", key),
			attribute.Int("progress.total", total),
		),
	)
	t.spans[key] = spanEntry{ctx: ctx, span: span}
}

func (t *TraceEmitter) GroupProgress(path []string, item string, done, total int) {
	t.mu.Lock()
	entry, ok := t.spans[Key(path)]
	t.mu.Unlock()
	if !ok {
		return
	}
	entry.span.AddEvent(item, trace.WithAttributes(
		attribute.Int("progress.done", done),
		attribute.Int("progress.total", total),
	))
}

func (t *TraceEmitter) GroupFinished(path []string, err error) {
	t.mu.Lock()
	key := Key(path)
	entry, ok := t.spans[key]
	delete(t.spans, key)
	t.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		entry.span.RecordError(err)
		entry.span.SetStatus(codes.Error, err.Error())
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
	entry.span.End()
}
