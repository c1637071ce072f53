package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
	"github.com/Strob0t/AgentDeck/internal/port/broadcast"
)

// recordingBroadcaster captures every broadcast envelope.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
}

var _ broadcast.Broadcaster = (*recordingBroadcaster)(nil)

func (b *recordingBroadcaster) BroadcastEvent(_ context.Context, ev broadcast.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) snapshot() []broadcast.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcast.Event, len(b.events))
	copy(out, b.events)
	return out
}

// scriptRunner plays back a fixed event script per invocation.
type scriptRunner struct {
	name     string
	script   []item.Event
	startErr error

	// holdForStop makes the invocation emit the script, then wait for
	// Stop before emitting a canceled terminal marker.
	holdForStop bool

	// startDelay stalls Start before returning the invocation.
	startDelay time.Duration

	mu    sync.Mutex
	specs []agentrunner.StartSpec
}

var _ agentrunner.Runner = (*scriptRunner)(nil)

func (r *scriptRunner) Name() string { return r.name }

func (r *scriptRunner) Capabilities() agentrunner.Capabilities {
	return agentrunner.Capabilities{Resume: true, Model: true}
}

func (r *scriptRunner) Start(_ context.Context, spec agentrunner.StartSpec) (agentrunner.Invocation, error) {
	if r.startDelay > 0 {
		time.Sleep(r.startDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	if r.startErr != nil {
		return nil, r.startErr
	}
	inv := &scriptInvocation{events: make(chan item.Event, 16), stopped: make(chan struct{})}
	go func() {
		for _, ev := range r.script {
			inv.events <- ev
		}
		if r.holdForStop {
			<-inv.stopped
			inv.events <- item.TerminalEvent(item.OutcomeCanceled, 100*time.Millisecond, "")
		}
		close(inv.events)
	}()
	return inv, nil
}

func (r *scriptRunner) lastSpec() agentrunner.StartSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[len(r.specs)-1]
}

type scriptInvocation struct {
	events   chan item.Event
	stopOnce sync.Once
	stopped  chan struct{}
}

func (i *scriptInvocation) Events() <-chan item.Event { return i.events }

func (i *scriptInvocation) Stop(context.Context) error {
	i.stopOnce.Do(func() { close(i.stopped) })
	return nil
}

func newTestEngine(t *testing.T, runner *scriptRunner) (*Engine, *recordingBroadcaster) {
	t.Helper()
	bc := &recordingBroadcaster{}
	e := New(Options{
		Broadcaster: bc,
		Runners:     map[string]agentrunner.Runner{runner.name: runner},
	})
	e.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return e, bc
}

func seedEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	if err := e.Submit(ctx, SetDefaults{Config: turn.RunConfig{Runner: "fake"}}); err != nil {
		t.Fatalf("SetDefaults: %v", err)
	}
	if err := e.Submit(ctx, CreateProject{Name: "deck"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := e.Submit(ctx, CreateWorkspace{ProjectID: 1, Name: "main", Path: "/srv/deck"}); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if err := e.Submit(ctx, CreateThread{WorkspaceID: 1, Title: "t"}); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
}

// waitFor polls the engine snapshot until cond holds or the deadline hits.
func waitFor(t *testing.T, e *Engine, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap, err := e.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if cond(snap) {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("condition never held; last snapshot: %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngineTurnEndToEnd(t *testing.T) {
	runner := &scriptRunner{
		name: "fake",
		script: []item.Event{
			{Type: item.EventSession, SessionID: "sess-1"},
			{Type: item.EventItem, Item: item.Item{ID: "r1", Kind: item.KindReasoning, Status: item.StatusRunning, Text: "thinking"}},
			{Type: item.EventItem, Item: item.Item{ID: "r1", Kind: item.KindReasoning, Status: item.StatusDone, Text: "thought"}},
			{Type: item.EventItem, Item: item.Item{ID: "m1", Kind: item.KindMessage, Status: item.StatusDone, Text: "done"}},
			item.TerminalEvent(item.OutcomeCompleted, 2*time.Second, ""),
		},
	}
	e, bc := newTestEngine(t, runner)
	seedEngine(t, e)

	if err := e.Submit(context.Background(), SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	snap := waitFor(t, e, func(s Snapshot) bool {
		return len(s.Threads) == 1 && s.Threads[0].Status == turn.StatusIdle && s.Threads[0].Thread.EntryCount == 2
	})
	tv := snap.Threads[0]
	if tv.Thread.AgentSessionID != "sess-1" {
		t.Errorf("AgentSessionID = %q, want sess-1", tv.Thread.AgentSessionID)
	}
	if len(tv.Items) != 2 {
		t.Fatalf("items = %+v, want two collapsed items", tv.Items)
	}
	if tv.Items[0].ID != "r1" || tv.Items[0].Text != "thought" {
		t.Errorf("item r1 = %+v, want the updated payload in first-seen position", tv.Items[0])
	}

	spec := runner.lastSpec()
	if spec.Prompt != "go" || spec.WorkDir != "/srv/deck" || spec.SessionID != "" {
		t.Errorf("StartSpec = %+v", spec)
	}

	// Revisions are contiguous: each accepted mutation bumps by exactly one.
	events := bc.snapshot()
	if len(events) == 0 {
		t.Fatal("no broadcasts")
	}
	for i, ev := range events {
		if ev.Revision != uint64(i+1) {
			t.Fatalf("revision gap at %d: got %d", i, ev.Revision)
		}
		if ev.Type != EventStateChanged {
			t.Fatalf("event type = %q", ev.Type)
		}
	}
}

func TestEngineCancelWaitsForTerminalMarker(t *testing.T) {
	runner := &scriptRunner{
		name: "fake",
		script: []item.Event{
			{Type: item.EventItem, Item: item.Item{ID: "c1", Kind: item.KindCommand, Status: item.StatusRunning, Command: "sleep 60"}},
		},
		holdForStop: true,
	}
	e, _ := newTestEngine(t, runner)
	seedEngine(t, e)
	ctx := context.Background()

	if err := e.Submit(ctx, SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	waitFor(t, e, func(s Snapshot) bool {
		return len(s.Threads) == 1 && len(s.Threads[0].Items) == 1
	})

	if err := e.Submit(ctx, SendMessage{ThreadID: 1, Text: "later", IfBusy: BusyEnqueue}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := e.Submit(ctx, CancelTurn{ThreadID: 1}); err != nil {
		t.Fatalf("CancelTurn: %v", err)
	}

	snap := waitFor(t, e, func(s Snapshot) bool {
		return s.Threads[0].Status == turn.StatusPaused
	})
	if len(snap.Threads[0].Queue) != 1 {
		t.Fatalf("queue = %+v, want the deferred prompt intact", snap.Threads[0].Queue)
	}
}

func TestEngineCancelDuringStartStillStops(t *testing.T) {
	runner := &scriptRunner{
		name:        "fake",
		holdForStop: true,
		startDelay:  50 * time.Millisecond,
	}
	e, _ := newTestEngine(t, runner)
	seedEngine(t, e)
	ctx := context.Background()

	// Cancel lands while the runner's Start is still in flight; the
	// stop must be delivered once the invocation handle registers.
	if err := e.Submit(ctx, SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := e.Submit(ctx, CancelTurn{ThreadID: 1}); err != nil {
		t.Fatalf("CancelTurn: %v", err)
	}

	snap := waitFor(t, e, func(s Snapshot) bool {
		return s.Threads[0].Status == turn.StatusIdle && s.Threads[0].Thread.EntryCount == 3
	})
	// user entry + canceled agent entry + system marker
	if got := snap.Threads[0].Thread.EntryCount; got != 3 {
		t.Fatalf("EntryCount = %d", got)
	}
}

func TestEngineSpawnFailureEndsTurn(t *testing.T) {
	runner := &scriptRunner{name: "fake", startErr: errors.New("binary not found")}
	e, _ := newTestEngine(t, runner)
	seedEngine(t, e)

	if err := e.Submit(context.Background(), SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	snap := waitFor(t, e, func(s Snapshot) bool {
		return s.Threads[0].Status == turn.StatusIdle && s.Threads[0].Thread.EntryCount == 3
	})
	// user entry + failed agent entry + system marker
	if got := snap.Threads[0].Thread.EntryCount; got != 3 {
		t.Fatalf("EntryCount = %d", got)
	}
}

func TestEngineStreamWithoutTerminalFailsTurn(t *testing.T) {
	runner := &scriptRunner{
		name: "fake",
		script: []item.Event{
			{Type: item.EventItem, Item: item.Item{ID: "m1", Kind: item.KindMessage, Status: item.StatusDone, Text: "partial"}},
		},
	}
	e, _ := newTestEngine(t, runner)
	seedEngine(t, e)

	if err := e.Submit(context.Background(), SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	waitFor(t, e, func(s Snapshot) bool {
		return s.Threads[0].Status == turn.StatusIdle
	})
}

func TestEngineRejectsBusySend(t *testing.T) {
	runner := &scriptRunner{name: "fake", holdForStop: true}
	e, _ := newTestEngine(t, runner)
	seedEngine(t, e)
	ctx := context.Background()

	if err := e.Submit(ctx, SendMessage{ThreadID: 1, Text: "go"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	err := e.Submit(ctx, SendMessage{ThreadID: 1, Text: "again"})
	if !errors.Is(err, domain.ErrTurnRunning) {
		t.Fatalf("err = %v, want ErrTurnRunning", err)
	}
	if err := e.Submit(ctx, CancelTurn{ThreadID: 1}); err != nil {
		t.Fatalf("CancelTurn: %v", err)
	}
	waitFor(t, e, func(s Snapshot) bool {
		return s.Threads[0].Status == turn.StatusIdle
	})
}

func TestEngineSubmitAfterShutdown(t *testing.T) {
	e := New(Options{Runners: map[string]agentrunner.Runner{}})
	e.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e.Shutdown(ctx)

	if err := e.Submit(context.Background(), CreateProject{Name: "x"}); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("err = %v, want ErrEngineClosed", err)
	}
}
