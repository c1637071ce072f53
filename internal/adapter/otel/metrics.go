package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/AgentDeck/internal/engine"
)

const meterName = "agentdeck"

// Metrics implements engine.Telemetry on OpenTelemetry instruments.
type Metrics struct {
	intentLatency metric.Float64Histogram
	intentErrors  metric.Int64Counter
	turnsStarted  metric.Int64Counter
	turnsEnded    metric.Int64Counter
	turnDuration  metric.Float64Histogram
	queueDepth    metric.Int64Gauge
}

var _ engine.Telemetry = (*Metrics)(nil)

// NewMetrics creates all engine instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.intentLatency, err = meter.Float64Histogram("agentdeck.intent.duration_seconds",
		metric.WithDescription("Time spent reducing one intent"))
	if err != nil {
		return nil, err
	}

	m.intentErrors, err = meter.Int64Counter("agentdeck.intent.rejected",
		metric.WithDescription("Number of rejected intents"))
	if err != nil {
		return nil, err
	}

	m.turnsStarted, err = meter.Int64Counter("agentdeck.turns.started",
		metric.WithDescription("Number of agent turns started"))
	if err != nil {
		return nil, err
	}

	m.turnsEnded, err = meter.Int64Counter("agentdeck.turns.ended",
		metric.WithDescription("Number of agent turns ended, by outcome"))
	if err != nil {
		return nil, err
	}

	m.turnDuration, err = meter.Float64Histogram("agentdeck.turn.duration_seconds",
		metric.WithDescription("Agent turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.queueDepth, err = meter.Int64Gauge("agentdeck.queue.depth",
		metric.WithDescription("Queued prompts per thread"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) IntentHandled(ctx context.Context, kind string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("intent", kind))
	m.intentLatency.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.intentErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) TurnStarted(ctx context.Context, runner string) {
	m.turnsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("runner", runner)))
}

func (m *Metrics) TurnEnded(ctx context.Context, runner string, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("runner", runner),
		attribute.String("outcome", outcome),
	)
	m.turnsEnded.Add(ctx, 1, attrs)
	m.turnDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) QueueDepth(ctx context.Context, threadID int64, depth int) {
	m.queueDepth.Record(ctx, int64(depth), metric.WithAttributes(
		attribute.Int64("thread.id", threadID)))
}
