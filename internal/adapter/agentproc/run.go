package agentproc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

// Run ties a Process to an Emitter and implements the invocation half of
// the runner contract. Adapters supply only the line parser.
type Run struct {
	Proc    *Process
	Emitter *Emitter

	stopped atomic.Bool
}

// NewRun wraps a started process.
func NewRun(proc *Process) *Run {
	return &Run{Proc: proc, Emitter: NewEmitter(64)}
}

// Events returns the canonical event stream.
func (r *Run) Events() <-chan item.Event { return r.Emitter.Events() }

// Stop requests cooperative termination. The terminal marker still
// arrives through Events; Stop returning is not the end of the turn.
func (r *Run) Stop(ctx context.Context) error {
	r.stopped.Store(true)
	return r.Proc.Stop(ctx)
}

// Pump drains the process stdout through handle and settles the terminal
// marker. If the parser already emitted one (the tool reported its own
// result), the fallback here is a no-op. Blocks until the process is
// reaped; run it in its own goroutine.
func (r *Run) Pump(handle func(line []byte)) {
	start := time.Now()
	err := r.Proc.Stream(handle)
	d := time.Since(start)
	switch {
	case r.stopped.Load():
		r.Emitter.Terminal(item.OutcomeCanceled, d, "")
	case err != nil:
		r.Emitter.Terminal(item.OutcomeFailed, d, err.Error())
	default:
		r.Emitter.Terminal(item.OutcomeFailed, d, "agent stream ended without a result")
	}
	r.Emitter.Close()
}
