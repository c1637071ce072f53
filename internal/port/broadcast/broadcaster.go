// Package broadcast defines the port for distributing revision-stamped
// events to observers.
package broadcast

import "context"

// Event is the envelope for one accepted state mutation. Revision values
// are strictly increasing by one per mutation; a consumer that observes a
// gap must discard its incremental view and re-fetch a snapshot.
type Event struct {
	Type     string `json:"type"`
	Revision uint64 `json:"revision"`
	Payload  any    `json:"payload"`
}

// Broadcaster fans a stamped event out to all current observers.
// Subscriber attach does not replay history; hydration is a separate
// snapshot fetch through the query interface.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, ev Event)
}

// Multi composes several broadcasters into one fan-out target.
func Multi(targets ...Broadcaster) Broadcaster {
	out := make(multi, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

type multi []Broadcaster

func (m multi) BroadcastEvent(ctx context.Context, ev Event) {
	for _, b := range m {
		b.BroadcastEvent(ctx, ev)
	}
}
