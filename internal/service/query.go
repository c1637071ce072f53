package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/engine"
	"github.com/Strob0t/AgentDeck/internal/port/database"
)

// Snapshotter is the read side of the engine.
type Snapshotter interface {
	Snapshot(ctx context.Context) (engine.Snapshot, error)
}

// Query is the read surface shared by the HTTP handlers and the MCP
// tools: live state comes from the engine snapshot, history pages come
// from the store.
type Query struct {
	engine Snapshotter
	store  database.Store
}

// NewQuery creates the read surface. The store may be nil when the
// server runs without persistence; entry pages are then served from
// nothing and thread history is bounded to the current process.
func NewQuery(eng Snapshotter, store database.Store) *Query {
	return &Query{engine: eng, store: store}
}

// Snapshot returns the full current state with its revision stamp, the
// hydration point for any observer that saw a revision gap.
func (q *Query) Snapshot(ctx context.Context) (engine.Snapshot, error) {
	return q.engine.Snapshot(ctx)
}

// Entries returns one page of a thread's entry log. Offset defaults to
// 0 and limit is clamped to [1, 500].
func (q *Query) Entries(ctx context.Context, threadID int64, offset, limit int) (*thread.EntryPage, error) {
	if threadID <= 0 {
		return nil, fmt.Errorf("%w: thread id required", domain.ErrInvalidIntent)
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if q.store == nil {
		return &thread.EntryPage{Entries: []thread.Entry{}}, nil
	}
	return q.store.ListEntries(ctx, threadID, offset, limit)
}

// TurnStatus reports the derived status of one thread from the live
// snapshot.
func (q *Query) TurnStatus(ctx context.Context, threadID int64) (*engine.ThreadView, error) {
	snap, err := q.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snap.Threads {
		if snap.Threads[i].Thread.ID == threadID {
			return &snap.Threads[i], nil
		}
	}
	return nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, threadID)
}
