package codex

import (
	"log/slog"
	"testing"

	"github.com/Strob0t/AgentDeck/internal/adapter/agentproc"
	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

func parseLines(t *testing.T, lines []string) []item.Event {
	t.Helper()
	emit := agentproc.NewEmitter(64)
	p := newParser(emit, slog.Default())
	for _, line := range lines {
		p.handleLine([]byte(line))
	}
	emit.Close()
	var events []item.Event
	for ev := range emit.Events() {
		events = append(events, ev)
	}
	return events
}

func TestParserFullTurn(t *testing.T) {
	events := parseLines(t, []string{
		`{"type":"thread.started","thread_id":"th_01"}`,
		`{"type":"turn.started"}`,
		`{"type":"item.started","item":{"id":"item_0","item_type":"reasoning","text":"planning"}}`,
		`{"type":"item.completed","item":{"id":"item_0","item_type":"reasoning","text":"planned","status":"completed"}}`,
		`{"type":"item.started","item":{"id":"item_1","item_type":"command_execution","command":"go vet ./...","status":"in_progress"}}`,
		`{"type":"item.completed","item":{"id":"item_1","item_type":"command_execution","command":"go vet ./...","aggregated_output":"ok","exit_code":0,"status":"completed"}}`,
		`{"type":"item.completed","item":{"id":"item_2","item_type":"agent_message","text":"Done.","status":"completed"}}`,
		`{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}`,
	})

	if events[0].Type != item.EventSession || events[0].SessionID != "th_01" {
		t.Fatalf("first event = %+v, want session th_01", events[0])
	}

	var items []item.Item
	var terminal *item.Event
	for i := range events {
		switch events[i].Type {
		case item.EventItem:
			items = append(items, events[i].Item)
		case item.EventTerminal:
			terminal = &events[i]
		}
	}
	if len(items) != 5 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Kind != item.KindReasoning || items[0].Status != item.StatusRunning {
		t.Errorf("reasoning start = %+v", items[0])
	}
	if items[1].ID != "item_0" || items[1].Status != item.StatusDone || items[1].Text != "planned" {
		t.Errorf("reasoning update = %+v", items[1])
	}
	cmd := items[3]
	if cmd.Kind != item.KindCommand || cmd.Output != "ok" || cmd.ExitCode == nil || *cmd.ExitCode != 0 {
		t.Errorf("command = %+v", cmd)
	}
	if terminal == nil || terminal.Outcome != item.OutcomeCompleted {
		t.Fatalf("terminal = %+v", terminal)
	}
}

func TestParserTurnFailed(t *testing.T) {
	events := parseLines(t, []string{
		`{"type":"error","message":"stream disconnected"}`,
		`{"type":"turn.failed","error":{"message":"stream disconnected before completion"}}`,
	})
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	ev := events[0]
	if ev.Type != item.EventTerminal || ev.Outcome != item.OutcomeFailed || ev.ErrorMsg != "stream disconnected before completion" {
		t.Fatalf("terminal = %+v", ev)
	}
}

func TestParserSkipsGarbage(t *testing.T) {
	events := parseLines(t, []string{
		`not json at all`,
		`{"type":"session.configured","weird":true}`,
		`{"type":"item.completed","item":{"id":"item_0","item_type":"hologram","status":"completed"}}`,
		`{"type":"item.completed"}`,
		`{"type":"item.completed","item":{"id":"item_1","item_type":"agent_message","text":"hi","status":"completed"}}`,
		`{"type":"turn.completed"}`,
	})
	if len(events) != 2 {
		t.Fatalf("events = %+v, want message and terminal only", events)
	}
	if events[0].Item.Text != "hi" || events[1].Type != item.EventTerminal {
		t.Fatalf("events = %+v", events)
	}
}

func TestParserItemVocabulary(t *testing.T) {
	tests := []struct {
		name string
		line string
		want func(t *testing.T, it item.Item)
	}{
		{
			"file change",
			`{"type":"item.completed","item":{"id":"i","item_type":"file_change","status":"completed","changes":[{"path":"a.go","kind":"update"},{"path":"b.go","kind":"add"}]}}`,
			func(t *testing.T, it item.Item) {
				if it.Kind != item.KindFileChange || len(it.Files) != 2 || it.Files[1].Kind != "add" {
					t.Fatalf("item = %+v", it)
				}
			},
		},
		{
			"mcp tool call",
			`{"type":"item.started","item":{"id":"i","item_type":"mcp_tool_call","server":"deploy","tool":"rollout","status":"in_progress"}}`,
			func(t *testing.T, it item.Item) {
				if it.Kind != item.KindToolCall || it.Tool != "deploy.rollout" || it.Status != item.StatusRunning {
					t.Fatalf("item = %+v", it)
				}
			},
		},
		{
			"todo list",
			`{"type":"item.updated","item":{"id":"i","item_type":"todo_list","status":"in_progress","items":[{"text":"fix","completed":true},{"text":"test","completed":false}]}}`,
			func(t *testing.T, it item.Item) {
				if it.Kind != item.KindTodoList || len(it.Todos) != 2 || !it.Todos[0].Completed {
					t.Fatalf("item = %+v", it)
				}
			},
		},
		{
			"web search",
			`{"type":"item.completed","item":{"id":"i","item_type":"web_search","query":"pgx batch insert","status":"completed"}}`,
			func(t *testing.T, it item.Item) {
				if it.Kind != item.KindWebSearch || it.Query != "pgx batch insert" {
					t.Fatalf("item = %+v", it)
				}
			},
		},
		{
			"error item",
			`{"type":"item.completed","item":{"id":"i","item_type":"error","text":"sandbox denied","status":"completed"}}`,
			func(t *testing.T, it item.Item) {
				if it.Kind != item.KindError || it.Status != item.StatusFailed || it.Text != "sandbox denied" {
					t.Fatalf("item = %+v", it)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := parseLines(t, []string{tc.line})
			if len(events) != 1 || events[0].Type != item.EventItem {
				t.Fatalf("events = %+v", events)
			}
			tc.want(t, events[0].Item)
		})
	}
}
