package item

import (
	"testing"
	"time"
)

func TestUpsertAppendsNewIDs(t *testing.T) {
	l := NewList()
	now := time.Now()

	l.Upsert(Item{ID: "a", Kind: KindReasoning, Status: StatusRunning}, now)
	l.Upsert(Item{ID: "b", Kind: KindMessage, Status: StatusDone}, now)

	if l.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", l.Len())
	}
	items := l.Items()
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("order not preserved: %v", items)
	}
}

func TestUpsertCollapsesByID(t *testing.T) {
	l := NewList()
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(750 * time.Millisecond)

	l.Upsert(Item{ID: "cmd-1", Kind: KindCommand, Status: StatusRunning, Command: "go test ./..."}, start)
	l.Upsert(Item{ID: "cmd-1", Kind: KindCommand, Status: StatusDone, Command: "go test ./...", Output: "ok"}, end)

	if l.Len() != 1 {
		t.Fatalf("expected 1 collapsed item, got %d", l.Len())
	}
	got := l.Items()[0]
	if got.Status != StatusDone {
		t.Fatalf("expected latest status %q, got %q", StatusDone, got.Status)
	}
	if got.Output != "ok" {
		t.Fatalf("expected latest payload kept, got %q", got.Output)
	}
	if got.FirstSeenAt != start {
		t.Fatalf("first-seen timestamp must survive updates")
	}
	if got.Duration() != 750*time.Millisecond {
		t.Fatalf("expected duration 750ms, got %v", got.Duration())
	}
}

func TestUpsertKeepsFirstTerminalTimestamp(t *testing.T) {
	l := NewList()
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	done := start.Add(time.Second)
	late := start.Add(5 * time.Second)

	l.Upsert(Item{ID: "x", Kind: KindToolCall, Status: StatusRunning}, start)
	l.Upsert(Item{ID: "x", Kind: KindToolCall, Status: StatusDone}, done)
	// A buffered duplicate of the terminal emission must not move the clock.
	l.Upsert(Item{ID: "x", Kind: KindToolCall, Status: StatusDone}, late)

	if d := l.Items()[0].Duration(); d != time.Second {
		t.Fatalf("expected duration 1s, got %v", d)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusRunning, false},
		{StatusDone, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
