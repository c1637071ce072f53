package engine

import (
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
	"github.com/Strob0t/AgentDeck/internal/domain/thread"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/domain/workspace"
)

// State is the single mutable root of the application. Exactly one owner
// (the engine loop) mutates it; everything else reads snapshots or
// receives deltas.
//
// Durable entities (projects, workspaces, threads) and transient turn
// state live in separate maps so persisted and runtime-only concerns
// never tangle: Runtime and Items are keyed by thread id in side maps
// and are rebuilt empty on restart.
type State struct {
	Projects   map[int64]*workspace.Project
	Workspaces map[int64]*workspace.Workspace
	Threads    map[int64]*thread.Thread

	// Runtime holds per-thread turn/queue state for threads that have
	// ever started a turn this process lifetime.
	Runtime map[int64]*turn.Runtime
	// Items accumulates the collapsed canonical items of each thread's
	// in-flight invocation.
	Items map[int64]*item.List

	TabOrder     []int64
	ActiveThread int64

	Defaults turn.RunConfig

	// PendingSend holds, per thread, a prompt submitted via cancel-and-send
	// that must start as soon as the canceled turn's terminal marker lands.
	// It bypasses the queue and the paused flag.
	PendingSend map[int64]*turn.QueuedPrompt

	NextProjectID   int64
	NextWorkspaceID int64
	NextThreadID    int64
	NextPromptID    uint64
}

// NewState returns an empty state with id counters starting at 1.
func NewState() *State {
	return &State{
		Projects:        make(map[int64]*workspace.Project),
		Workspaces:      make(map[int64]*workspace.Workspace),
		Threads:         make(map[int64]*thread.Thread),
		Runtime:         make(map[int64]*turn.Runtime),
		Items:           make(map[int64]*item.List),
		PendingSend:     make(map[int64]*turn.QueuedPrompt),
		NextProjectID:   1,
		NextWorkspaceID: 1,
		NextThreadID:    1,
	}
}

// runtime returns the thread's transient turn state, creating it lazily.
func (s *State) runtime(threadID int64) *turn.Runtime {
	rt, ok := s.Runtime[threadID]
	if !ok {
		rt = &turn.Runtime{}
		s.Runtime[threadID] = rt
	}
	return rt
}

// openTabs returns how many threads are currently in the tab set.
func (s *State) openTabs() int { return len(s.TabOrder) }

// removeTab drops a thread from the tab order, if present.
func (s *State) removeTab(threadID int64) {
	for i, id := range s.TabOrder {
		if id == threadID {
			s.TabOrder = append(s.TabOrder[:i:i], s.TabOrder[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the state. Used by tests to check reducer
// determinism and by the engine to serve consistent snapshots.
func (s *State) Clone() *State {
	cp := NewState()
	for id, p := range s.Projects {
		v := *p
		cp.Projects[id] = &v
	}
	for id, w := range s.Workspaces {
		v := *w
		cp.Workspaces[id] = &v
	}
	for id, t := range s.Threads {
		v := *t
		if a := t.Config.Attachments; a != nil {
			v.Config.Attachments = append([]string(nil), a...)
		}
		cp.Threads[id] = &v
	}
	for id, rt := range s.Runtime {
		cp.Runtime[id] = rt.Clone()
	}
	for id, l := range s.Items {
		cp.Items[id] = l.Clone()
	}
	cp.TabOrder = append([]int64(nil), s.TabOrder...)
	cp.ActiveThread = s.ActiveThread
	cp.Defaults = s.Defaults
	if a := s.Defaults.Attachments; a != nil {
		cp.Defaults.Attachments = append([]string(nil), a...)
	}
	for id, p := range s.PendingSend {
		v := *p
		if a := p.Config.Attachments; a != nil {
			v.Config.Attachments = append([]string(nil), a...)
		}
		cp.PendingSend[id] = &v
	}
	cp.NextProjectID = s.NextProjectID
	cp.NextWorkspaceID = s.NextWorkspaceID
	cp.NextThreadID = s.NextThreadID
	cp.NextPromptID = s.NextPromptID
	return cp
}

// ThreadView is the per-thread slice of a snapshot: durable metadata plus
// derived turn status and the live queue.
type ThreadView struct {
	Thread    thread.Thread       `json:"thread"`
	Status    turn.Status         `json:"status"`
	Canceling bool                `json:"canceling,omitempty"`
	Queue     []turn.QueuedPrompt `json:"queue"`
	Items     []item.Item         `json:"items,omitempty"`
	StartedAt *time.Time          `json:"started_at,omitempty"`
}

// Snapshot is the full hydration payload served by the query interface.
type Snapshot struct {
	Revision     uint64                `json:"revision"`
	Projects     []workspace.Project   `json:"projects"`
	Workspaces   []workspace.Workspace `json:"workspaces"`
	Threads      []ThreadView          `json:"threads"`
	TabOrder     []int64               `json:"tab_order"`
	ActiveThread int64                 `json:"active_thread"`
	Defaults     turn.RunConfig        `json:"defaults"`
}

// threadView assembles the view of one thread.
func (s *State) threadView(t *thread.Thread) ThreadView {
	v := ThreadView{Thread: *t, Status: turn.StatusIdle}
	if rt, ok := s.Runtime[t.ID]; ok {
		v.Status = rt.Status()
		v.Canceling = rt.Canceling
		v.Queue = append([]turn.QueuedPrompt(nil), rt.Queue...)
		if rt.Running {
			at := rt.StartedAt
			v.StartedAt = &at
		}
	}
	if l, ok := s.Items[t.ID]; ok && l.Len() > 0 {
		v.Items = l.Items()
	}
	return v
}

// --- deltas ---

// Delta is one broadcastable state change. All deltas produced by a
// single accepted mutation travel in one stamped envelope.
type Delta struct {
	Kind string `json:"kind"`

	Project   *workspace.Project   `json:"project,omitempty"`
	Workspace *workspace.Workspace `json:"workspace,omitempty"`
	Thread    *ThreadView          `json:"thread,omitempty"`
	Entry     *thread.Entry        `json:"entry,omitempty"`
	Item      *item.Item           `json:"item,omitempty"`
	ThreadID  int64                `json:"thread_id,omitempty"`

	TabOrder     []int64 `json:"tab_order,omitempty"`
	ActiveThread int64   `json:"active_thread,omitempty"`

	Defaults *turn.RunConfig `json:"defaults,omitempty"`

	Toast *Toast `json:"toast,omitempty"`
}

// Toast is a fire-and-forget notification for observers.
type Toast struct {
	ID      string `json:"id"`
	Level   string `json:"level"` // "info", "warn", "error"
	Message string `json:"message"`
}

// Delta kind constants.
const (
	DeltaProject   = "project"
	DeltaWorkspace = "workspace"
	DeltaThread    = "thread"
	DeltaEntry     = "entry"
	DeltaItem      = "item"
	DeltaTabs      = "tabs"
	DeltaDefaults  = "defaults"
	DeltaToast     = "toast"
)

func projectDelta(p workspace.Project) Delta {
	return Delta{Kind: DeltaProject, Project: &p}
}

func workspaceDelta(w workspace.Workspace) Delta {
	return Delta{Kind: DeltaWorkspace, Workspace: &w}
}

func (s *State) threadDelta(threadID int64) Delta {
	v := s.threadView(s.Threads[threadID])
	return Delta{Kind: DeltaThread, Thread: &v}
}

func entryDelta(e thread.Entry) Delta {
	return Delta{Kind: DeltaEntry, Entry: &e}
}

func itemDelta(threadID int64, it item.Item) Delta {
	return Delta{Kind: DeltaItem, ThreadID: threadID, Item: &it}
}

func (s *State) tabsDelta() Delta {
	return Delta{Kind: DeltaTabs, TabOrder: append([]int64(nil), s.TabOrder...), ActiveThread: s.ActiveThread}
}

func toastDelta(id, level, msg string) Delta {
	return Delta{Kind: DeltaToast, Toast: &Toast{ID: id, Level: level, Message: msg}}
}
