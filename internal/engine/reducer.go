package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
)

// Reducer computes the state transition for one intent. It performs no
// I/O: every externally visible action it wants is returned as an Effect
// for the engine to dispatch. Given the same state, intent and clock it
// always produces the same deltas and effects.
//
// On error the state is left untouched: intents are rejected wholesale.
type Reducer struct {
	// QueueCap bounds the per-thread prompt queue. Zero means unbounded.
	QueueCap int
}

// Reduce applies one intent to the state. The returned deltas describe
// every change made; the engine stamps them with the next revision and
// broadcasts them in a single envelope.
func (r *Reducer) Reduce(s *State, in Intent, now time.Time) ([]Delta, []Effect, error) {
	switch in := in.(type) {
	case CreateProject:
		return r.createProject(s, in, now)
	case RenameProject:
		return r.renameProject(s, in, now)
	case ArchiveProject:
		return r.archiveProject(s, in, now)
	case CreateWorkspace:
		return r.createWorkspace(s, in, now)
	case RenameWorkspace:
		return r.renameWorkspace(s, in, now)
	case ArchiveWorkspace:
		return r.archiveWorkspace(s, in, now)
	case CreateThread:
		return r.createThread(s, in, now)
	case RenameThread:
		return r.renameThread(s, in, now)
	case CloseTab:
		return r.closeTab(s, in, now)
	case RestoreTab:
		return r.restoreTab(s, in, now)
	case MoveTab:
		return r.moveTab(s, in, now)
	case ActivateTab:
		return r.activateTab(s, in)
	case SendMessage:
		return r.sendMessage(s, in, now)
	case ReorderQueuedPrompt:
		return r.reorderQueuedPrompt(s, in)
	case UpdateQueuedPrompt:
		return r.updateQueuedPrompt(s, in)
	case RemoveQueuedPrompt:
		return r.removeQueuedPrompt(s, in)
	case CancelTurn:
		return r.cancelTurn(s, in)
	case PauseQueue:
		return r.pauseQueue(s, in)
	case ResumeQueue:
		return r.resumeQueue(s, in, now)
	case SetThreadConfig:
		return r.setThreadConfig(s, in, now)
	case SetDefaults:
		return r.setDefaults(s, in)
	case turnItemSeen:
		return r.turnItemSeen(s, in, now)
	case turnSessionBound:
		return r.turnSessionBound(s, in, now)
	case turnEnded:
		return r.turnEnded(s, in, now)
	case effectFailed:
		return r.effectFailed(s, in)
	default:
		return nil, nil, fmt.Errorf("%w: unknown intent %T", domain.ErrInvalidIntent, in)
	}
}

// --- projects and workspaces ---

func (r *Reducer) createProject(s *State, in CreateProject, now time.Time) ([]Delta, []Effect, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, fmt.Errorf("%w: project name is required", domain.ErrInvalidIntent)
	}
	p := &workspace.Project{
		ID:        s.NextProjectID,
		Name:      in.Name,
		RepoURL:   in.RepoURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.NextProjectID++
	s.Projects[p.ID] = p
	return []Delta{projectDelta(*p)}, []Effect{PersistProject{Project: *p, New: true}}, nil
}

func (r *Reducer) renameProject(s *State, in RenameProject, now time.Time) ([]Delta, []Effect, error) {
	p, ok := s.Projects[in.ProjectID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: project %d", domain.ErrNotFound, in.ProjectID)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, fmt.Errorf("%w: project name is required", domain.ErrInvalidIntent)
	}
	p.Name = in.Name
	p.UpdatedAt = now
	return []Delta{projectDelta(*p)}, []Effect{PersistProject{Project: *p}}, nil
}

func (r *Reducer) archiveProject(s *State, in ArchiveProject, now time.Time) ([]Delta, []Effect, error) {
	p, ok := s.Projects[in.ProjectID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: project %d", domain.ErrNotFound, in.ProjectID)
	}
	if p.Archived {
		return nil, nil, nil
	}
	p.Archived = true
	p.UpdatedAt = now
	return []Delta{projectDelta(*p)}, []Effect{PersistProject{Project: *p}}, nil
}

func (r *Reducer) createWorkspace(s *State, in CreateWorkspace, now time.Time) ([]Delta, []Effect, error) {
	if _, ok := s.Projects[in.ProjectID]; !ok {
		return nil, nil, fmt.Errorf("%w: project %d", domain.ErrNotFound, in.ProjectID)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Path) == "" {
		return nil, nil, fmt.Errorf("%w: workspace name and path are required", domain.ErrInvalidIntent)
	}
	w := &workspace.Workspace{
		ID:        s.NextWorkspaceID,
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Path:      in.Path,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.NextWorkspaceID++
	s.Workspaces[w.ID] = w
	return []Delta{workspaceDelta(*w)}, []Effect{PersistWorkspace{Workspace: *w, New: true}}, nil
}

func (r *Reducer) renameWorkspace(s *State, in RenameWorkspace, now time.Time) ([]Delta, []Effect, error) {
	w, ok := s.Workspaces[in.WorkspaceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: workspace %d", domain.ErrNotFound, in.WorkspaceID)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, fmt.Errorf("%w: workspace name is required", domain.ErrInvalidIntent)
	}
	w.Name = in.Name
	w.UpdatedAt = now
	return []Delta{workspaceDelta(*w)}, []Effect{PersistWorkspace{Workspace: *w}}, nil
}

func (r *Reducer) archiveWorkspace(s *State, in ArchiveWorkspace, now time.Time) ([]Delta, []Effect, error) {
	w, ok := s.Workspaces[in.WorkspaceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: workspace %d", domain.ErrNotFound, in.WorkspaceID)
	}
	for _, t := range s.Threads {
		if t.WorkspaceID != w.ID {
			continue
		}
		if rt, ok := s.Runtime[t.ID]; ok && rt.Running {
			return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrTurnRunning, t.ID)
		}
	}
	if w.Archived {
		return nil, nil, nil
	}
	w.Archived = true
	w.UpdatedAt = now
	return []Delta{workspaceDelta(*w)}, []Effect{PersistWorkspace{Workspace: *w}}, nil
}

// --- threads and tabs ---

func (r *Reducer) createThread(s *State, in CreateThread, now time.Time) ([]Delta, []Effect, error) {
	w, ok := s.Workspaces[in.WorkspaceID]
	if !ok || w.Archived {
		return nil, nil, fmt.Errorf("%w: workspace %d", domain.ErrNotFound, in.WorkspaceID)
	}
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Thread %d", s.NextThreadID)
	}
	t := &thread.Thread{
		ID:          s.NextThreadID,
		WorkspaceID: in.WorkspaceID,
		Title:       title,
		Config:      s.Defaults,
		TabPosition: len(s.TabOrder),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.NextThreadID++
	s.Threads[t.ID] = t
	s.TabOrder = append(s.TabOrder, t.ID)
	s.ActiveThread = t.ID
	return []Delta{s.threadDelta(t.ID), s.tabsDelta()},
		[]Effect{PersistThread{Thread: *t, New: true}}, nil
}

func (r *Reducer) renameThread(s *State, in RenameThread, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, nil, fmt.Errorf("%w: thread title is required", domain.ErrInvalidIntent)
	}
	t.Title = in.Title
	t.UpdatedAt = now
	return []Delta{s.threadDelta(t.ID)}, []Effect{PersistThread{Thread: *t}}, nil
}

func (r *Reducer) closeTab(s *State, in CloseTab, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok || t.Archived {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	if rt, ok := s.Runtime[t.ID]; ok && rt.Running {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrTurnRunning, t.ID)
	}
	if s.openTabs() == 1 {
		return nil, nil, domain.ErrLastTab
	}
	pos := t.TabPosition
	t.Archived = true
	t.UpdatedAt = now
	s.removeTab(t.ID)
	effects := []Effect{PersistThread{Thread: *t}}
	effects = append(effects, r.renumberTabs(s, now)...)
	if s.ActiveThread == t.ID {
		if pos >= len(s.TabOrder) {
			pos = len(s.TabOrder) - 1
		}
		s.ActiveThread = s.TabOrder[pos]
	}
	return []Delta{s.threadDelta(t.ID), s.tabsDelta()}, effects, nil
}

func (r *Reducer) restoreTab(s *State, in RestoreTab, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	if !t.Archived {
		return nil, nil, fmt.Errorf("%w: thread %d is not archived", domain.ErrInvalidIntent, t.ID)
	}
	t.Archived = false
	t.TabPosition = len(s.TabOrder)
	t.UpdatedAt = now
	s.TabOrder = append(s.TabOrder, t.ID)
	s.ActiveThread = t.ID
	return []Delta{s.threadDelta(t.ID), s.tabsDelta()}, []Effect{PersistThread{Thread: *t}}, nil
}

func (r *Reducer) moveTab(s *State, in MoveTab, now time.Time) ([]Delta, []Effect, error) {
	from := -1
	for i, id := range s.TabOrder {
		if id == in.ThreadID {
			from = i
			break
		}
	}
	if from == -1 {
		return nil, nil, fmt.Errorf("%w: thread %d is not an open tab", domain.ErrNotFound, in.ThreadID)
	}
	target := in.Position
	if target < 0 {
		target = 0
	}
	if target >= len(s.TabOrder) {
		target = len(s.TabOrder) - 1
	}
	if target != from {
		id := s.TabOrder[from]
		rest := append(s.TabOrder[:from:from], s.TabOrder[from+1:]...)
		s.TabOrder = append(rest[:target:target], append([]int64{id}, rest[target:]...)...)
	}
	effects := r.renumberTabs(s, now)
	return []Delta{s.tabsDelta()}, effects, nil
}

// renumberTabs resyncs TabPosition on every open thread and returns
// persistence effects for the ones that moved.
func (r *Reducer) renumberTabs(s *State, now time.Time) []Effect {
	var effects []Effect
	for i, id := range s.TabOrder {
		t := s.Threads[id]
		if t.TabPosition == i {
			continue
		}
		t.TabPosition = i
		t.UpdatedAt = now
		effects = append(effects, PersistThread{Thread: *t})
	}
	return effects
}

func (r *Reducer) activateTab(s *State, in ActivateTab) ([]Delta, []Effect, error) {
	for _, id := range s.TabOrder {
		if id == in.ThreadID {
			s.ActiveThread = id
			return []Delta{s.tabsDelta()}, nil, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: thread %d is not an open tab", domain.ErrNotFound, in.ThreadID)
}

// --- messages and turns ---

func (r *Reducer) sendMessage(s *State, in SendMessage, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok || t.Archived {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, nil, fmt.Errorf("%w: message text is required", domain.ErrInvalidIntent)
	}
	cfg := t.Config
	cfg.Attachments = append([]string(nil), in.Attachments...)

	rt := s.runtime(t.ID)
	if !rt.Running {
		deltas, effects := r.startTurn(s, t, rt, in.Text, cfg, now)
		return deltas, effects, nil
	}

	switch in.IfBusy {
	case BusyEnqueue:
		if r.QueueCap > 0 && len(rt.Queue) >= r.QueueCap {
			return nil, nil, fmt.Errorf("%w: prompt queue is full", domain.ErrConflict)
		}
		rt.Enqueue(turn.QueuedPrompt{
			ID:       s.nextPromptID(),
			Text:     in.Text,
			Config:   cfg,
			QueuedAt: now,
		})
		return []Delta{s.threadDelta(t.ID)}, nil, nil

	case BusyCancel:
		s.PendingSend[t.ID] = &turn.QueuedPrompt{
			ID:       s.nextPromptID(),
			Text:     in.Text,
			Config:   cfg,
			QueuedAt: now,
		}
		var effects []Effect
		if !rt.Canceling {
			rt.Canceling = true
			effects = append(effects, StopTurn{ThreadID: t.ID, Invocation: rt.Invocation})
		}
		return []Delta{s.threadDelta(t.ID)}, effects, nil

	default:
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrTurnRunning, t.ID)
	}
}

func (s *State) nextPromptID() string {
	s.NextPromptID++
	return fmt.Sprintf("p%d", s.NextPromptID)
}

// nextToastID shares the prompt counter so replaying the same intent
// sequence yields the same ids.
func (s *State) nextToastID() string {
	s.NextPromptID++
	return fmt.Sprintf("n%d", s.NextPromptID)
}

// startTurn appends the user entry, resets the live item list and spawns
// a new invocation. Callers must have verified no turn is running.
func (r *Reducer) startTurn(s *State, t *thread.Thread, rt *turn.Runtime, text string, cfg turn.RunConfig, now time.Time) ([]Delta, []Effect) {
	entry := thread.Entry{
		ThreadID:  t.ID,
		Seq:       t.EntryCount + 1,
		Kind:      thread.EntryUser,
		User:      &thread.UserEvent{Text: text, Attachments: cfg.Attachments},
		CreatedAt: now,
	}
	t.EntryCount = entry.Seq
	t.UpdatedAt = now

	s.Items[t.ID] = item.NewList()
	inv := rt.Start(now)

	workDir := ""
	if w, ok := s.Workspaces[t.WorkspaceID]; ok {
		workDir = w.Path
	}
	effects := []Effect{
		PersistEntry{Entry: entry},
		PersistThread{Thread: *t},
		StartTurn{
			WorkspaceID: t.WorkspaceID,
			ThreadID:    t.ID,
			Invocation:  inv,
			Prompt:      text,
			WorkDir:     workDir,
			SessionID:   rt.SessionID,
			Config:      cfg,
		},
	}
	return []Delta{entryDelta(entry), s.threadDelta(t.ID)}, effects
}

func (r *Reducer) reorderQueuedPrompt(s *State, in ReorderQueuedPrompt) ([]Delta, []Effect, error) {
	rt, ok := s.Runtime[in.ThreadID]
	if !ok || !rt.Reorder(in.PromptID, in.Position) {
		return nil, nil, fmt.Errorf("%w: queued prompt %s", domain.ErrNotFound, in.PromptID)
	}
	return []Delta{s.threadDelta(in.ThreadID)}, nil, nil
}

func (r *Reducer) updateQueuedPrompt(s *State, in UpdateQueuedPrompt) ([]Delta, []Effect, error) {
	rt, ok := s.Runtime[in.ThreadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: queued prompt %s", domain.ErrNotFound, in.PromptID)
	}
	p := rt.Find(in.PromptID)
	if p == nil {
		return nil, nil, fmt.Errorf("%w: queued prompt %s", domain.ErrNotFound, in.PromptID)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, nil, fmt.Errorf("%w: prompt text is required", domain.ErrInvalidIntent)
	}
	p.Text = in.Text
	if in.Config != nil {
		p.Config = *in.Config
	}
	return []Delta{s.threadDelta(in.ThreadID)}, nil, nil
}

func (r *Reducer) removeQueuedPrompt(s *State, in RemoveQueuedPrompt) ([]Delta, []Effect, error) {
	rt, ok := s.Runtime[in.ThreadID]
	if !ok || !rt.Remove(in.PromptID) {
		return nil, nil, fmt.Errorf("%w: queued prompt %s", domain.ErrNotFound, in.PromptID)
	}
	return []Delta{s.threadDelta(in.ThreadID)}, nil, nil
}

func (r *Reducer) cancelTurn(s *State, in CancelTurn) ([]Delta, []Effect, error) {
	rt, ok := s.Runtime[in.ThreadID]
	if !ok || !rt.Running {
		return nil, nil, fmt.Errorf("%w: no running turn on thread %d", domain.ErrInvalidIntent, in.ThreadID)
	}
	if rt.Canceling {
		// Repeated cancel is a no-op: the stop signal is already out.
		return nil, nil, nil
	}
	rt.Canceling = true
	return []Delta{s.threadDelta(in.ThreadID)},
		[]Effect{StopTurn{ThreadID: in.ThreadID, Invocation: rt.Invocation}}, nil
}

func (r *Reducer) pauseQueue(s *State, in PauseQueue) ([]Delta, []Effect, error) {
	if _, ok := s.Threads[in.ThreadID]; !ok {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	rt := s.runtime(in.ThreadID)
	if rt.Paused {
		return nil, nil, nil
	}
	rt.Paused = true
	return []Delta{s.threadDelta(in.ThreadID)}, nil, nil
}

func (r *Reducer) resumeQueue(s *State, in ResumeQueue, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	rt := s.runtime(in.ThreadID)
	if rt.Running {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrTurnRunning, t.ID)
	}
	rt.Paused = false
	head, ok := rt.Dequeue()
	if !ok {
		return []Delta{s.threadDelta(t.ID)}, nil, nil
	}
	deltas, effects := r.startTurn(s, t, rt, head.Text, head.Config, now)
	return deltas, effects, nil
}

// --- configuration ---

func (r *Reducer) setThreadConfig(s *State, in SetThreadConfig, now time.Time) ([]Delta, []Effect, error) {
	t, ok := s.Threads[in.ThreadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: thread %d", domain.ErrNotFound, in.ThreadID)
	}
	if strings.TrimSpace(in.Config.Runner) == "" {
		return nil, nil, fmt.Errorf("%w: runner is required", domain.ErrInvalidIntent)
	}
	t.Config = in.Config
	t.UpdatedAt = now
	return []Delta{s.threadDelta(t.ID)}, []Effect{PersistThread{Thread: *t}}, nil
}

func (r *Reducer) setDefaults(s *State, in SetDefaults) ([]Delta, []Effect, error) {
	if strings.TrimSpace(in.Config.Runner) == "" {
		return nil, nil, fmt.Errorf("%w: runner is required", domain.ErrInvalidIntent)
	}
	s.Defaults = in.Config
	cfg := in.Config
	return []Delta{{Kind: DeltaDefaults, Defaults: &cfg}},
		[]Effect{PersistDefaults{Config: in.Config}}, nil
}

// --- runner follow-ups ---

// stale reports whether a runner callback belongs to a superseded
// invocation. Stale callbacks are dropped without error: the race is
// expected around cancellation.
func stale(rt *turn.Runtime, invocation uint64) bool {
	return rt == nil || !rt.Running || rt.Invocation != invocation
}

func (r *Reducer) turnItemSeen(s *State, in turnItemSeen, now time.Time) ([]Delta, []Effect, error) {
	rt := s.Runtime[in.ThreadID]
	if stale(rt, in.Invocation) {
		return nil, nil, nil
	}
	l, ok := s.Items[in.ThreadID]
	if !ok {
		l = item.NewList()
		s.Items[in.ThreadID] = l
	}
	l.Upsert(in.Item, now)
	stamped, _ := l.Get(in.Item.ID)
	return []Delta{itemDelta(in.ThreadID, stamped)}, nil, nil
}

func (r *Reducer) turnSessionBound(s *State, in turnSessionBound, now time.Time) ([]Delta, []Effect, error) {
	rt := s.Runtime[in.ThreadID]
	if stale(rt, in.Invocation) {
		return nil, nil, nil
	}
	t := s.Threads[in.ThreadID]
	if rt.SessionID == in.SessionID {
		return nil, nil, nil
	}
	rt.SessionID = in.SessionID
	t.AgentSessionID = in.SessionID
	t.UpdatedAt = now
	return []Delta{s.threadDelta(t.ID)}, []Effect{PersistThread{Thread: *t}}, nil
}

func (r *Reducer) turnEnded(s *State, in turnEnded, now time.Time) ([]Delta, []Effect, error) {
	rt := s.Runtime[in.ThreadID]
	if stale(rt, in.Invocation) {
		return nil, nil, nil
	}
	t := s.Threads[in.ThreadID]
	// Only a user-initiated cancel pauses a non-empty queue; failure
	// follows the same dequeue rules as natural completion.
	canceled := in.Outcome == item.OutcomeCanceled
	rt.Finish(canceled)

	var items []item.Item
	if l, ok := s.Items[in.ThreadID]; ok {
		items = l.Items()
	}
	agentEntry := thread.Entry{
		ThreadID: t.ID,
		Seq:      t.EntryCount + 1,
		Kind:     thread.EntryAgent,
		Agent: &thread.AgentEvent{
			Items:    items,
			Outcome:  in.Outcome,
			Duration: in.Duration,
			Error:    in.ErrorMsg,
		},
		CreatedAt: now,
	}
	t.EntryCount = agentEntry.Seq
	t.UpdatedAt = now

	deltas := []Delta{entryDelta(agentEntry)}
	effects := []Effect{PersistEntry{Entry: agentEntry}}

	if in.Outcome != item.OutcomeCompleted {
		sysEntry := thread.Entry{
			ThreadID: t.ID,
			Seq:      t.EntryCount + 1,
			Kind:     thread.EntrySystem,
			System: &thread.SystemEvent{
				Status:  string(in.Outcome),
				Message: in.ErrorMsg,
			},
			CreatedAt: now,
		}
		t.EntryCount = sysEntry.Seq
		deltas = append(deltas, entryDelta(sysEntry))
		effects = append(effects, PersistEntry{Entry: sysEntry})
	}
	effects = append(effects, PersistThread{Thread: *t})

	// A cancel-and-send prompt starts immediately; otherwise an unpaused
	// non-empty queue advances to its head.
	if pending, ok := s.PendingSend[t.ID]; ok {
		delete(s.PendingSend, t.ID)
		d, e := r.startTurn(s, t, rt, pending.Text, pending.Config, now)
		return append(deltas, d...), append(effects, e...), nil
	}
	if !rt.Paused {
		if head, ok := rt.Dequeue(); ok {
			d, e := r.startTurn(s, t, rt, head.Text, head.Config, now)
			return append(deltas, d...), append(effects, e...), nil
		}
	}
	return append(deltas, s.threadDelta(t.ID)), effects, nil
}

func (r *Reducer) effectFailed(s *State, in effectFailed) ([]Delta, []Effect, error) {
	msg := fmt.Sprintf("%s failed: %s", in.Op, in.Err)
	deltas := []Delta{toastDelta(s.nextToastID(), "error", msg)}
	if in.ThreadID != 0 {
		if _, ok := s.Threads[in.ThreadID]; ok {
			deltas = append(deltas, s.threadDelta(in.ThreadID))
		}
	}
	return deltas, nil, nil
}
