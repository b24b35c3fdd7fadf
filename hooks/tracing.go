package hooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/relay"
)

// Tracing opens one span per relayed message and annotates it with the
// direction and frame totals. It relies on the relay invoking hooks
// sequentially, tracking at most one in-flight message per direction.
type Tracing struct {
	tracer trace.Tracer
	spans  [2]trace.Span
	frames [2]int
	bytes  [2]int
}

// NewTracing creates the hook. A nil provider selects the global one.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer("github.com/frameflow/frameflow/hooks")}
}

func (h *Tracing) Transform(dir relay.Direction, index int, more bool, f frame.Frame) error {
	if index == 0 {
		_, span := h.tracer.Start(context.Background(), "relay.message",
			trace.WithAttributes(attribute.String("frameflow.direction", dir.String())))
		h.spans[dir] = span
		h.frames[dir] = 0
		h.bytes[dir] = 0
	}

	h.frames[dir]++
	h.bytes[dir] += len(f)

	if !more {
		if span := h.spans[dir]; span != nil {
			span.SetAttributes(
				attribute.Int("frameflow.frames", h.frames[dir]),
				attribute.Int("frameflow.bytes", h.bytes[dir]),
			)
			span.End()
			h.spans[dir] = nil
		}
	}
	return nil
}
