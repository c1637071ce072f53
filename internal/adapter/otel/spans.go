package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
)

const tracerName = "agentdeck"

// WrapRunner decorates a runner so every invocation is covered by one
// span from spawn to terminal marker.
func WrapRunner(r agentrunner.Runner) agentrunner.Runner {
	return &tracedRunner{inner: r}
}

type tracedRunner struct {
	inner agentrunner.Runner
}

func (t *tracedRunner) Name() string                           { return t.inner.Name() }
func (t *tracedRunner) Capabilities() agentrunner.Capabilities { return t.inner.Capabilities() }

func (t *tracedRunner) Start(ctx context.Context, spec agentrunner.StartSpec) (agentrunner.Invocation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.Int64("thread.id", spec.ThreadID),
			attribute.Int64("turn.invocation", int64(spec.Invocation)),
			attribute.String("turn.runner", t.inner.Name()),
		),
	)

	inv, err := t.inner.Start(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		span.End()
		return nil, err
	}
	return newTracedInvocation(inv, span), nil
}

type tracedInvocation struct {
	inner  agentrunner.Invocation
	events chan item.Event
}

func newTracedInvocation(inner agentrunner.Invocation, span trace.Span) *tracedInvocation {
	t := &tracedInvocation{inner: inner, events: make(chan item.Event, 16)}
	go func() {
		defer close(t.events)
		defer span.End()
		for ev := range inner.Events() {
			if ev.Type == item.EventTerminal {
				span.SetAttributes(attribute.String("turn.outcome", string(ev.Outcome)))
				if ev.Outcome == item.OutcomeFailed {
					span.SetStatus(codes.Error, ev.ErrorMsg)
				}
			}
			t.events <- ev
		}
	}()
	return t
}

func (t *tracedInvocation) Events() <-chan item.Event {
	return t.events
}

func (t *tracedInvocation) Stop(ctx context.Context) error {
	return t.inner.Stop(ctx)
}
