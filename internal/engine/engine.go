package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
	"github.com/Strob0t/AgentDeck/internal/port/broadcast"
	"github.com/Strob0t/AgentDeck/internal/port/database"
)

// EventStateChanged is the broadcast event type carrying mutation deltas.
const EventStateChanged = "state_changed"

// Telemetry receives engine measurements. A nil Telemetry is valid.
type Telemetry interface {
	IntentHandled(ctx context.Context, kind string, d time.Duration, err error)
	TurnStarted(ctx context.Context, runner string)
	TurnEnded(ctx context.Context, runner string, outcome string, d time.Duration)
	QueueDepth(ctx context.Context, threadID int64, depth int)
}

// Options configures an Engine.
type Options struct {
	Store       database.Store
	Broadcaster broadcast.Broadcaster
	Runners     map[string]agentrunner.Runner
	Telemetry   Telemetry
	Logger      *slog.Logger

	// QueueCap bounds each thread's prompt queue; zero means unbounded.
	QueueCap int
	// IntentBuffer sizes the submission channel.
	IntentBuffer int
	// StopTimeout bounds how long a StopTurn effect waits for the runner
	// to acknowledge termination.
	StopTimeout time.Duration
}

// Engine owns the application state. All mutations flow through a single
// loop goroutine: intents are reduced one at a time, accepted mutations
// are stamped with the next revision and broadcast as one envelope, and
// the returned effects run asynchronously, feeding their outcomes back
// into the same loop.
type Engine struct {
	log     *slog.Logger
	reducer Reducer

	store       database.Store
	broadcaster broadcast.Broadcaster
	runners     map[string]agentrunner.Runner
	telemetry   Telemetry
	stopTimeout time.Duration

	// clock is swapped by tests for deterministic timestamps.
	clock func() time.Time

	requests chan request
	quit     chan struct{}
	done     chan struct{}

	state    *State
	revision uint64

	invMu  sync.Mutex
	active map[int64]*activeInvocation
	// pendingStops holds cancels that arrived while the runner's Start
	// was still in flight, keyed by thread to the invocation they target.
	pendingStops map[int64]uint64

	effects sync.WaitGroup
}

type activeInvocation struct {
	invocation uint64
	handle     agentrunner.Invocation
}

type request struct {
	intent Intent
	query  func(s *State, revision uint64)
	reply  chan error
}

// ErrEngineClosed is returned by Submit after Shutdown.
var ErrEngineClosed = errors.New("engine closed")

// New builds an Engine around an empty state. Call Hydrate before Start
// to load durable state.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = nopTelemetry{}
	}
	buf := opts.IntentBuffer
	if buf <= 0 {
		buf = 64
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	return &Engine{
		log:          log.With("component", "engine"),
		reducer:      Reducer{QueueCap: opts.QueueCap},
		store:        opts.Store,
		broadcaster:  opts.Broadcaster,
		runners:      opts.Runners,
		telemetry:    tel,
		stopTimeout:  stopTimeout,
		clock:        time.Now,
		requests:     make(chan request, buf),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		state:        NewState(),
		active:       make(map[int64]*activeInvocation),
		pendingStops: make(map[int64]uint64),
	}
}

// Hydrate loads durable state from the store. Runtime state (turns,
// queues, live items) always starts empty: a restart never resumes a
// turn, it only restores the logs.
func (e *Engine) Hydrate(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	projects, err := e.store.LoadProjects(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	for i := range projects {
		p := projects[i]
		e.state.Projects[p.ID] = &p
		if p.ID >= e.state.NextProjectID {
			e.state.NextProjectID = p.ID + 1
		}
	}
	workspaces, err := e.store.LoadWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}
	for i := range workspaces {
		w := workspaces[i]
		e.state.Workspaces[w.ID] = &w
		if w.ID >= e.state.NextWorkspaceID {
			e.state.NextWorkspaceID = w.ID + 1
		}
	}
	threads, err := e.store.LoadThreads(ctx)
	if err != nil {
		return fmt.Errorf("load threads: %w", err)
	}
	open := make([]*struct {
		id  int64
		pos int
	}, 0, len(threads))
	for i := range threads {
		t := threads[i]
		e.state.Threads[t.ID] = &t
		if t.ID >= e.state.NextThreadID {
			e.state.NextThreadID = t.ID + 1
		}
		if !t.Archived {
			open = append(open, &struct {
				id  int64
				pos int
			}{t.ID, t.TabPosition})
		}
	}
	for len(open) > 0 {
		min := 0
		for i := range open {
			if open[i].pos < open[min].pos {
				min = i
			}
		}
		e.state.TabOrder = append(e.state.TabOrder, open[min].id)
		open = append(open[:min], open[min+1:]...)
	}
	if len(e.state.TabOrder) > 0 {
		e.state.ActiveThread = e.state.TabOrder[0]
	}
	defaults, err := e.store.LoadDefaults(ctx)
	if err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}
	if defaults != nil {
		e.state.Defaults = *defaults
	}
	e.log.Info("state hydrated",
		"projects", len(projects),
		"workspaces", len(workspaces),
		"threads", len(threads),
		"open_tabs", len(e.state.TabOrder))
	return nil
}

// Start launches the mutation loop.
func (e *Engine) Start() {
	go e.loop()
}

// Shutdown stops every active invocation, waits for in-flight effects,
// then terminates the loop. Submissions after Shutdown fail with
// ErrEngineClosed.
func (e *Engine) Shutdown(ctx context.Context) {
	e.invMu.Lock()
	handles := make([]agentrunner.Invocation, 0, len(e.active))
	for _, a := range e.active {
		handles = append(handles, a.handle)
	}
	e.invMu.Unlock()
	for _, h := range handles {
		if err := h.Stop(ctx); err != nil {
			e.log.Warn("stop invocation on shutdown", "error", err)
		}
	}

	waited := make(chan struct{})
	go func() {
		e.effects.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		e.log.Warn("shutdown deadline hit with effects still in flight")
	}

	close(e.quit)
	<-e.done
}

// Submit runs one intent through the mutation loop and waits for its
// acceptance or rejection.
func (e *Engine) Submit(ctx context.Context, in Intent) error {
	req := request{intent: in, reply: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-e.quit:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a consistent view of the full state with the revision
// it was taken at. Observers hydrate from this after any revision gap.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	req := request{
		query: func(s *State, revision uint64) {
			snap = buildSnapshot(s, revision)
		},
		reply: make(chan error, 1),
	}
	select {
	case e.requests <- req:
	case <-e.quit:
		return Snapshot{}, ErrEngineClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case err := <-req.reply:
		return snap, err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func buildSnapshot(s *State, revision uint64) Snapshot {
	snap := Snapshot{
		Revision:     revision,
		Projects:     make([]workspace.Project, 0, len(s.Projects)),
		Workspaces:   make([]workspace.Workspace, 0, len(s.Workspaces)),
		Threads:      make([]ThreadView, 0, len(s.Threads)),
		TabOrder:     append([]int64(nil), s.TabOrder...),
		ActiveThread: s.ActiveThread,
		Defaults:     s.Defaults,
	}
	for _, p := range s.Projects {
		snap.Projects = append(snap.Projects, *p)
	}
	sort.Slice(snap.Projects, func(i, j int) bool { return snap.Projects[i].ID < snap.Projects[j].ID })
	for _, w := range s.Workspaces {
		snap.Workspaces = append(snap.Workspaces, *w)
	}
	sort.Slice(snap.Workspaces, func(i, j int) bool { return snap.Workspaces[i].ID < snap.Workspaces[j].ID })
	for _, t := range s.Threads {
		snap.Threads = append(snap.Threads, s.threadView(t))
	}
	sort.Slice(snap.Threads, func(i, j int) bool { return snap.Threads[i].Thread.ID < snap.Threads[j].Thread.ID })
	return snap
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case req := <-e.requests:
			e.handle(req)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handle(req request) {
	if req.query != nil {
		req.query(e.state, e.revision)
		req.reply <- nil
		return
	}

	started := time.Now()
	kind := req.intent.intentKind()
	deltas, effects, err := e.reducer.Reduce(e.state, req.intent, e.clock())
	e.telemetry.IntentHandled(context.Background(), kind, time.Since(started), err)
	if err != nil {
		e.log.Debug("intent rejected", "intent", kind, "error", err)
		req.reply <- err
		return
	}
	if len(deltas) > 0 {
		e.revision++
		if e.broadcaster != nil {
			e.broadcaster.BroadcastEvent(context.Background(), broadcast.Event{
				Type:     EventStateChanged,
				Revision: e.revision,
				Payload:  deltas,
			})
		}
	}
	for _, ef := range effects {
		e.dispatch(ef)
	}
	e.reportQueueDepth(req.intent)
	req.reply <- nil
}

func (e *Engine) reportQueueDepth(in Intent) {
	var threadID int64
	switch in := in.(type) {
	case SendMessage:
		threadID = in.ThreadID
	case RemoveQueuedPrompt:
		threadID = in.ThreadID
	case ResumeQueue:
		threadID = in.ThreadID
	case turnEnded:
		threadID = in.ThreadID
	default:
		return
	}
	if rt, ok := e.state.Runtime[threadID]; ok {
		e.telemetry.QueueDepth(context.Background(), threadID, len(rt.Queue))
	}
}

// submitFollowUp feeds an effect outcome back into the loop. It blocks
// until the loop accepts it, preserving per-invocation event order, and
// gives up only on shutdown.
func (e *Engine) submitFollowUp(in Intent) {
	req := request{intent: in, reply: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-e.quit:
		return
	}
	select {
	case <-req.reply:
	case <-e.quit:
	}
}

func (e *Engine) dispatch(ef Effect) {
	e.effects.Add(1)
	go func() {
		defer e.effects.Done()
		switch ef := ef.(type) {
		case StartTurn:
			e.runStartTurn(ef)
		case StopTurn:
			e.runStopTurn(ef)
		case PersistEntry:
			e.persist("append entry", ef.Entry.ThreadID, func(ctx context.Context) error {
				return e.store.AppendEntry(ctx, &ef.Entry)
			})
		case PersistThread:
			e.persist("persist thread", ef.Thread.ID, func(ctx context.Context) error {
				if ef.New {
					_, err := e.store.CreateThread(ctx, &ef.Thread)
					return err
				}
				return e.store.UpdateThread(ctx, &ef.Thread)
			})
		case PersistProject:
			e.persist("persist project", 0, func(ctx context.Context) error {
				if ef.New {
					_, err := e.store.CreateProject(ctx, &ef.Project)
					return err
				}
				return e.store.UpdateProject(ctx, &ef.Project)
			})
		case PersistWorkspace:
			e.persist("persist workspace", 0, func(ctx context.Context) error {
				if ef.New {
					_, err := e.store.CreateWorkspace(ctx, &ef.Workspace)
					return err
				}
				return e.store.UpdateWorkspace(ctx, &ef.Workspace)
			})
		case PersistDefaults:
			e.persist("persist defaults", 0, func(ctx context.Context) error {
				return e.store.SaveDefaults(ctx, &ef.Config)
			})
		default:
			e.log.Error("unknown effect", "effect", fmt.Sprintf("%T", ef))
		}
	}()
}

// persist runs one storage write. Failures never stop the engine: the
// in-memory state keeps its last accepted value and observers get a
// toast via effectFailed.
func (e *Engine) persist(op string, threadID int64, fn func(ctx context.Context) error) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		e.log.Error("storage effect failed", "op", op, "thread_id", threadID, "error", err)
		e.submitFollowUp(effectFailed{Op: op, ThreadID: threadID, Err: err.Error()})
	}
}

func (e *Engine) runStartTurn(ef StartTurn) {
	runner, ok := e.runners[ef.Config.Runner]
	if !ok {
		e.log.Error("unknown runner", "runner", ef.Config.Runner, "thread_id", ef.ThreadID)
		e.submitFollowUp(turnEnded{
			ThreadID:   ef.ThreadID,
			Invocation: ef.Invocation,
			Outcome:    item.OutcomeFailed,
			ErrorMsg:   fmt.Sprintf("unknown runner %q", ef.Config.Runner),
		})
		return
	}
	spec := agentrunner.StartSpec{
		WorkspaceID: ef.WorkspaceID,
		ThreadID:    ef.ThreadID,
		Invocation:  ef.Invocation,
		Prompt:      ef.Prompt,
		WorkDir:     ef.WorkDir,
		SessionID:   ef.SessionID,
		Config:      ef.Config,
	}
	inv, err := runner.Start(context.Background(), spec)
	if err != nil {
		e.log.Error("runner start failed", "runner", runner.Name(), "thread_id", ef.ThreadID, "error", err)
		e.submitFollowUp(turnEnded{
			ThreadID:   ef.ThreadID,
			Invocation: ef.Invocation,
			Outcome:    item.OutcomeFailed,
			ErrorMsg:   err.Error(),
		})
		return
	}
	e.telemetry.TurnStarted(context.Background(), runner.Name())
	e.registerInvocation(ef.ThreadID, ef.Invocation, inv)
	defer e.unregisterInvocation(ef.ThreadID, ef.Invocation)

	started := e.clock()
	sawTerminal := false
	for ev := range inv.Events() {
		switch ev.Type {
		case item.EventItem:
			e.submitFollowUp(turnItemSeen{ThreadID: ef.ThreadID, Invocation: ef.Invocation, Item: ev.Item})
		case item.EventSession:
			e.submitFollowUp(turnSessionBound{ThreadID: ef.ThreadID, Invocation: ef.Invocation, SessionID: ev.SessionID})
		case item.EventTerminal:
			sawTerminal = true
			e.telemetry.TurnEnded(context.Background(), runner.Name(), string(ev.Outcome), ev.Duration)
			e.submitFollowUp(turnEnded{
				ThreadID:   ef.ThreadID,
				Invocation: ef.Invocation,
				Outcome:    ev.Outcome,
				Duration:   ev.Duration,
				ErrorMsg:   ev.ErrorMsg,
			})
		}
	}
	if !sawTerminal {
		d := e.clock().Sub(started)
		e.log.Error("runner stream ended without terminal marker", "runner", runner.Name(), "thread_id", ef.ThreadID)
		e.telemetry.TurnEnded(context.Background(), runner.Name(), string(item.OutcomeFailed), d)
		e.submitFollowUp(turnEnded{
			ThreadID:   ef.ThreadID,
			Invocation: ef.Invocation,
			Outcome:    item.OutcomeFailed,
			Duration:   d,
			ErrorMsg:   "agent stream ended without a terminal marker",
		})
	}
}

func (e *Engine) runStopTurn(ef StopTurn) {
	e.invMu.Lock()
	a := e.active[ef.ThreadID]
	if a == nil || a.invocation != ef.Invocation {
		// The runner's Start may still be in flight for this invocation.
		// Park the stop; registerInvocation delivers it on arrival.
		e.pendingStops[ef.ThreadID] = ef.Invocation
		e.invMu.Unlock()
		return
	}
	e.invMu.Unlock()
	e.stopInvocation(a.handle, ef.ThreadID, ef.Invocation)
}

func (e *Engine) stopInvocation(h agentrunner.Invocation, threadID int64, invocation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.stopTimeout)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		e.log.Warn("stop turn", "thread_id", threadID, "invocation", invocation, "error", err)
	}
}

func (e *Engine) registerInvocation(threadID int64, invocation uint64, h agentrunner.Invocation) {
	e.invMu.Lock()
	e.active[threadID] = &activeInvocation{invocation: invocation, handle: h}
	pending, ok := e.pendingStops[threadID]
	if ok {
		delete(e.pendingStops, threadID)
	}
	e.invMu.Unlock()
	if ok && pending == invocation {
		e.effects.Add(1)
		go func() {
			defer e.effects.Done()
			e.stopInvocation(h, threadID, invocation)
		}()
	}
}

func (e *Engine) unregisterInvocation(threadID int64, invocation uint64) {
	e.invMu.Lock()
	if a := e.active[threadID]; a != nil && a.invocation == invocation {
		delete(e.active, threadID)
	}
	if pending, ok := e.pendingStops[threadID]; ok && pending == invocation {
		delete(e.pendingStops, threadID)
	}
	e.invMu.Unlock()
}

type nopTelemetry struct{}

func (nopTelemetry) IntentHandled(context.Context, string, time.Duration, error) {}
func (nopTelemetry) TurnStarted(context.Context, string)                         {}
func (nopTelemetry) TurnEnded(context.Context, string, string, time.Duration)    {}
func (nopTelemetry) QueueDepth(context.Context, int64, int)                      {}
