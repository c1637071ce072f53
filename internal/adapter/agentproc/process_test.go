package agentproc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

func TestStreamDeliversLines(t *testing.T) {
	p, err := Start(Options{Bin: "sh", Args: []string{"-c", `printf 'one\ntwo\n\nthree\n'`}})
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	if err := p.Stream(func(line []byte) {
		lines = append(lines, string(line))
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines = %v, want %v", lines, want)
		}
	}
}

func TestStreamAttachesStderrTail(t *testing.T) {
	p, err := Start(Options{Bin: "sh", Args: []string{"-c", `echo broken >&2; exit 3`}})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Stream(func([]byte) {})
	if err == nil {
		t.Fatal("want exit error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("err = %v, want stderr tail attached", err)
	}
}

func TestStopInterruptsProcess(t *testing.T) {
	p, err := Start(Options{
		Bin:       "sh",
		Args:      []string{"-c", `echo ready; sleep 30`},
		StopGrace: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	ready := make(chan struct{})
	streamed := make(chan error, 1)
	go func() {
		streamed <- p.Stream(func(line []byte) {
			if string(line) == "ready" {
				close(ready)
			}
		})
	}()
	<-ready

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-streamed:
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not return after Stop")
	}
}

func TestEmitterTerminalExactlyOnce(t *testing.T) {
	e := NewEmitter(8)
	if !e.Terminal(item.OutcomeCanceled, time.Second, "") {
		t.Fatal("first terminal rejected")
	}
	if e.Terminal(item.OutcomeFailed, 0, "late") {
		t.Fatal("second terminal accepted")
	}
	e.Item(item.Item{ID: "x"}) // dropped after terminal
	e.Session("late")
	e.Close()

	var got []item.Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Type != item.EventTerminal || got[0].Outcome != item.OutcomeCanceled {
		t.Fatalf("events = %+v, want single canceled terminal", got)
	}
}
