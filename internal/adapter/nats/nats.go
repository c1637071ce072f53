// Package nats mirrors broadcast events onto a NATS JetStream stream so
// out-of-process consumers can follow state changes without holding a
// WebSocket connection.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/AgentDeck/internal/port/broadcast"
)

const (
	streamName = "AGENTDECK"
	subject    = "agentdeck.events"
)

// Mirror publishes every broadcast envelope to JetStream. It implements
// broadcast.Broadcaster; publish failures are logged and dropped so an
// unreachable broker never stalls the engine loop. Consumers apply the
// same resync contract as WebSocket observers: a gap in the revision
// sequence means re-fetching a snapshot.
type Mirror struct {
	log *slog.Logger
	nc  *nats.Conn
	js  jetstream.JetStream
}

var _ broadcast.Broadcaster = (*Mirror)(nil)

// Connect establishes a connection to NATS and ensures the event stream
// exists.
func Connect(ctx context.Context, url string, log *slog.Logger) (*Mirror, error) {
	if log == nil {
		log = slog.Default()
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"agentdeck.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	log.Info("nats event mirror connected", "url", url, "stream", streamName)
	return &Mirror{log: log.With("component", "nats"), nc: nc, js: js}, nil
}

// BroadcastEvent publishes one revision-stamped envelope.
func (m *Mirror) BroadcastEvent(ctx context.Context, ev broadcast.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		m.log.Error("marshal event", "error", err)
		return
	}
	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		m.log.Error("nats publish failed", "revision", ev.Revision, "error", err)
	}
}

// Close shuts down the NATS connection.
func (m *Mirror) Close() error {
	m.nc.Close()
	return nil
}
