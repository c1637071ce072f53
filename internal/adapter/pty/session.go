package pty

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// ErrSessionClosed indicates input or resize on a session whose shell
// has already exited.
var ErrSessionClosed = errors.New("pty session closed")

// Session is one live shell behind a pseudo-terminal. All attached
// observers see the same output stream; input and resize may come from
// any of them.
type Session struct {
	ID          string
	WorkspaceID int64

	log  *slog.Logger
	cmd  *exec.Cmd
	ptmx *os.File

	mu        sync.Mutex
	ring      *ring
	observers map[chan []byte]struct{}
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
}

// startSession spawns shell in dir under a new PTY and begins pumping
// its output into the ring and to observers.
func startSession(id string, workspaceID int64, shell, dir string, ringBytes int, log *slog.Logger) (*Session, error) {
	cmd := exec.Command(shell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          id,
		WorkspaceID: workspaceID,
		log:         log.With("session", id),
		cmd:         cmd,
		ptmx:        ptmx,
		ring:        newRing(ringBytes),
		observers:   make(map[chan []byte]struct{}),
		done:        make(chan struct{}),
	}

	go s.pump()
	return s, nil
}

// pump reads shell output until the PTY closes, buffering into the ring
// and fanning out to observers. A slow observer misses chunks instead of
// stalling the pump; its next attach replays the ring.
func (s *Session) pump() {
	defer s.Close()

	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.mu.Lock()
			s.ring.Write(chunk)
			for ch := range s.observers {
				select {
				case ch <- chunk:
				default:
				}
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Attach registers an observer and returns the ring replay, the live
// output channel, and a detach func.
func (s *Session) Attach() (replay []byte, out <-chan []byte, detach func()) {
	ch := make(chan []byte, 64)

	s.mu.Lock()
	replay = s.ring.Bytes()
	if s.closed {
		close(ch)
	} else {
		s.observers[ch] = struct{}{}
	}
	s.mu.Unlock()

	detach = func() {
		s.mu.Lock()
		if _, ok := s.observers[ch]; ok {
			delete(s.observers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return replay, ch, detach
}

// Write sends input bytes to the shell.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	_, err := s.ptmx.Write(p)
	return err
}

// Resize adjusts the PTY window size.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// Done is closed when the shell has exited and the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close terminates the shell and releases every observer.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for ch := range s.observers {
			delete(s.observers, ch)
			close(ch)
		}
		s.mu.Unlock()

		_ = s.ptmx.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
		close(s.done)
		s.log.Info("pty session closed")
	})
}
