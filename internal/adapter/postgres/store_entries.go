package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
)

// AppendEntry inserts one immutable log entry. The (thread_id, seq)
// primary key makes a duplicate append a conflict, which is how the
// at-most-once append contract is enforced.
func (s *Store) AppendEntry(ctx context.Context, e *thread.Entry) error {
	payload, err := entryPayload(e)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO entries (thread_id, seq, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ThreadID, e.Seq, string(e.Kind), payload, e.CreatedAt)
	if err != nil {
		return conflictWrap(err, "append entry %d/%d", e.ThreadID, e.Seq)
	}
	return nil
}

// ListEntries returns one page of a thread's log in append order.
func (s *Store) ListEntries(ctx context.Context, threadID int64, offset, limit int) (*thread.EntryPage, error) {
	if limit <= 0 {
		limit = 100
	}
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE thread_id = $1`, threadID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count entries for thread %d: %w", threadID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT thread_id, seq, kind, payload, created_at
		 FROM entries WHERE thread_id = $1
		 ORDER BY seq OFFSET $2 LIMIT $3`,
		threadID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries for thread %d: %w", threadID, err)
	}
	defer rows.Close()

	page := &thread.EntryPage{Total: total}
	for rows.Next() {
		var e thread.Entry
		var kind string
		var payload []byte
		if err := rows.Scan(&e.ThreadID, &e.Seq, &kind, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = thread.EntryKind(kind)
		if err := decodeEntryPayload(&e, payload); err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	page.Truncated = int64(offset+len(page.Entries)) < total
	return page, nil
}

func entryPayload(e *thread.Entry) ([]byte, error) {
	var payload any
	switch e.Kind {
	case thread.EntryUser:
		payload = e.User
	case thread.EntryAgent:
		payload = e.Agent
	case thread.EntrySystem:
		payload = e.System
	default:
		return nil, fmt.Errorf("entry %d/%d: unknown kind %q", e.ThreadID, e.Seq, e.Kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal entry payload: %w", err)
	}
	return data, nil
}

func decodeEntryPayload(e *thread.Entry, payload []byte) error {
	switch e.Kind {
	case thread.EntryUser:
		e.User = &thread.UserEvent{}
		return json.Unmarshal(payload, e.User)
	case thread.EntryAgent:
		e.Agent = &thread.AgentEvent{}
		return json.Unmarshal(payload, e.Agent)
	case thread.EntrySystem:
		e.System = &thread.SystemEvent{}
		return json.Unmarshal(payload, e.System)
	default:
		return fmt.Errorf("entry %d/%d: unknown kind %q", e.ThreadID, e.Seq, e.Kind)
	}
}

// defaultsKey is the settings row holding the durable run defaults.
const defaultsKey = "run_defaults"

// LoadDefaults reads the durable default run configuration. A missing
// row means defaults have never been saved; callers fall back to config.
func (s *Store) LoadDefaults(ctx context.Context) (*turn.RunConfig, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, defaultsKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	var cfg turn.RunConfig
	if err := json.Unmarshal(value, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// SaveDefaults upserts the durable default run configuration.
func (s *Store) SaveDefaults(ctx context.Context, cfg *turn.RunConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		defaultsKey, value)
	if err != nil {
		return fmt.Errorf("save defaults: %w", err)
	}
	return nil
}
