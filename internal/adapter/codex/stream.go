package codex

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/AgentDeck/internal/adapter/agentproc"
	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

// streamEvent is one line of the exec --json protocol.
type streamEvent struct {
	Type     string       `json:"type"`
	ThreadID string       `json:"thread_id"`
	Item     *streamItem  `json:"item"`
	Error    *streamError `json:"error"`
}

type streamError struct {
	Message string `json:"message"`
}

// streamItem is the tool's item shape. Codex reuses one envelope for all
// item types; only the fields of the declared item_type are populated.
type streamItem struct {
	ID       string `json:"id"`
	ItemType string `json:"item_type"`
	Status   string `json:"status"`

	// agent_message / reasoning
	Text string `json:"text"`

	// command_execution
	Command          string `json:"command"`
	AggregatedOutput string `json:"aggregated_output"`
	ExitCode         *int   `json:"exit_code"`

	// file_change
	Changes []struct {
		Path string `json:"path"`
		Kind string `json:"kind"`
	} `json:"changes"`

	// mcp_tool_call
	Server string `json:"server"`
	Tool   string `json:"tool"`

	// web_search
	Query string `json:"query"`

	// todo_list
	Items []struct {
		Text      string `json:"text"`
		Completed bool   `json:"completed"`
	} `json:"items"`
}

// parser translates the exec --json protocol into canonical items. The
// protocol already carries stable item ids and in-place updates, so the
// mapping is mostly a vocabulary translation.
type parser struct {
	log   *slog.Logger
	emit  *agentproc.Emitter
	start time.Time
}

func newParser(emit *agentproc.Emitter, log *slog.Logger) *parser {
	return &parser{log: log, emit: emit, start: time.Now()}
}

func (p *parser) handleLine(line []byte) {
	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		p.log.Debug("skipping unparseable stream line", "error", err)
		return
	}
	switch ev.Type {
	case "thread.started":
		if ev.ThreadID != "" {
			p.emit.Session(ev.ThreadID)
		}
	case "item.started", "item.updated", "item.completed":
		p.handleItem(ev.Item)
	case "turn.completed":
		p.emit.Terminal(item.OutcomeCompleted, time.Since(p.start), "")
	case "turn.failed":
		msg := "turn failed"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		p.emit.Terminal(item.OutcomeFailed, time.Since(p.start), msg)
	case "turn.started", "error":
		// turn.started carries nothing we track; bare error events are
		// followed by turn.failed.
	default:
		p.log.Debug("skipping unknown stream line", "event_type", ev.Type)
	}
}

func (p *parser) handleItem(si *streamItem) {
	if si == nil || si.ID == "" {
		return
	}
	it := item.Item{ID: si.ID, Status: mapStatus(si.Status)}
	switch si.ItemType {
	case "agent_message":
		it.Kind = item.KindMessage
		it.Text = si.Text
	case "reasoning":
		it.Kind = item.KindReasoning
		it.Text = si.Text
	case "command_execution":
		it.Kind = item.KindCommand
		it.Command = si.Command
		it.Output = si.AggregatedOutput
		it.ExitCode = si.ExitCode
	case "file_change":
		it.Kind = item.KindFileChange
		for _, c := range si.Changes {
			it.Files = append(it.Files, item.FileUpdate{Path: c.Path, Kind: c.Kind})
		}
	case "mcp_tool_call":
		it.Kind = item.KindToolCall
		it.Tool = si.Server + "." + si.Tool
	case "web_search":
		it.Kind = item.KindWebSearch
		it.Query = si.Query
	case "todo_list":
		it.Kind = item.KindTodoList
		for _, td := range si.Items {
			it.Todos = append(it.Todos, item.Todo{Text: td.Text, Completed: td.Completed})
		}
	case "error":
		it.Kind = item.KindError
		it.Text = si.Text
		it.Status = item.StatusFailed
	default:
		p.log.Debug("skipping unknown item type", "item_type", si.ItemType)
		return
	}
	p.emit.Item(it)
}

func mapStatus(s string) item.Status {
	switch s {
	case "completed":
		return item.StatusDone
	case "failed":
		return item.StatusFailed
	default:
		return item.StatusRunning
	}
}
