// Package turn models the per-thread turn lifecycle and prompt queue.
//
// A turn is not a persisted entity: it is the execution of one agent
// runner invocation triggered by a user message. Its status is always
// derived from (running flag, queue contents, paused flag), never stored
// redundantly.
package turn

import "time"

// Status is the derived turn state of a thread.
type Status string

const (
	// StatusIdle means no turn is running and the queue is empty.
	StatusIdle Status = "idle"
	// StatusRunning means a runner invocation is in flight.
	StatusRunning Status = "running"
	// StatusAwaiting means no turn is running, the queue holds prompts
	// and the head will be dequeued automatically on the next advance.
	StatusAwaiting Status = "awaiting"
	// StatusPaused means no turn is running and the queue holds prompts
	// but automatic dequeue is suspended until an explicit resume.
	StatusPaused Status = "paused"
)

// RunConfig is the execution configuration captured for a prompt. Queued
// prompts keep the config they were enqueued with: later changes to
// thread or durable defaults never retroactively alter them.
type RunConfig struct {
	Runner      string   `json:"runner"`
	Model       string   `json:"model,omitempty"`
	Effort      string   `json:"effort,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// QueuedPrompt is a user message deferred because a turn was running.
type QueuedPrompt struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Config   RunConfig `json:"config"`
	QueuedAt time.Time `json:"queued_at"`
}

// Runtime is the transient per-thread turn state, keyed by the engine in
// a side map distinct from the durable thread log.
type Runtime struct {
	// Invocation is the sequence number of the current (or most recent)
	// runner invocation. Callbacks carrying a stale invocation number
	// are discarded by the engine.
	Invocation uint64 `json:"invocation"`

	// Running is true from turn start until the runner's terminal marker
	// (or the cancellation timeout) is observed.
	Running bool `json:"running"`

	// StartedAt is the wall-clock start of the running turn.
	StartedAt time.Time `json:"started_at,omitzero"`

	// Canceling is set once a stop signal has been dispatched. The turn
	// stays running until the terminal marker arrives.
	Canceling bool `json:"canceling,omitempty"`

	// SessionID is the external tool's continuity token, replayed on
	// subsequent invocations of the same thread.
	SessionID string `json:"session_id,omitempty"`

	Queue  []QueuedPrompt `json:"queue"`
	Paused bool           `json:"paused"`
}

// Status derives the turn status from the runtime fields.
func (r *Runtime) Status() Status {
	switch {
	case r.Running:
		return StatusRunning
	case len(r.Queue) == 0:
		return StatusIdle
	case r.Paused:
		return StatusPaused
	default:
		return StatusAwaiting
	}
}

// Enqueue appends a prompt, preserving insertion order.
func (r *Runtime) Enqueue(p QueuedPrompt) {
	r.Queue = append(r.Queue, p)
}

// Dequeue removes and returns the queue head.
func (r *Runtime) Dequeue() (QueuedPrompt, bool) {
	if len(r.Queue) == 0 {
		return QueuedPrompt{}, false
	}
	head := r.Queue[0]
	r.Queue = append([]QueuedPrompt(nil), r.Queue[1:]...)
	return head, true
}

// Remove deletes the queued prompt with the given id.
func (r *Runtime) Remove(id string) bool {
	for i := range r.Queue {
		if r.Queue[i].ID == id {
			r.Queue = append(r.Queue[:i:i], r.Queue[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns a pointer to the queued prompt with the given id.
func (r *Runtime) Find(id string) *QueuedPrompt {
	for i := range r.Queue {
		if r.Queue[i].ID == id {
			return &r.Queue[i]
		}
	}
	return nil
}

// Reorder moves the prompt with the given id to position target,
// preserving the relative order of all other prompts.
func (r *Runtime) Reorder(id string, target int) bool {
	from := -1
	for i := range r.Queue {
		if r.Queue[i].ID == id {
			from = i
			break
		}
	}
	if from == -1 {
		return false
	}
	if target < 0 {
		target = 0
	}
	if target >= len(r.Queue) {
		target = len(r.Queue) - 1
	}
	if target == from {
		return true
	}
	p := r.Queue[from]
	rest := append(r.Queue[:from:from], r.Queue[from+1:]...)
	r.Queue = append(rest[:target:target], append([]QueuedPrompt{p}, rest[target:]...)...)
	return true
}

// Start marks a new invocation running. Returns the invocation number
// the runner callbacks must carry.
func (r *Runtime) Start(at time.Time) uint64 {
	r.Invocation++
	r.Running = true
	r.Canceling = false
	r.StartedAt = at
	return r.Invocation
}

// Finish clears the running flag after a terminal marker. Cancellation
// pauses a non-empty queue so a user-initiated interruption never
// auto-continues; natural completion and failure leave the paused flag
// untouched and the queue eligible for automatic dequeue.
func (r *Runtime) Finish(canceled bool) {
	r.Running = false
	r.Canceling = false
	r.StartedAt = time.Time{}
	if canceled && len(r.Queue) > 0 {
		r.Paused = true
	}
}

// Clone returns a deep copy of the runtime.
func (r *Runtime) Clone() *Runtime {
	cp := *r
	cp.Queue = make([]QueuedPrompt, len(r.Queue))
	copy(cp.Queue, r.Queue)
	for i := range cp.Queue {
		if a := r.Queue[i].Config.Attachments; a != nil {
			cp.Queue[i].Config.Attachments = append([]string(nil), a...)
		}
	}
	return &cp
}
