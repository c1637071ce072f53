package claude

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/AgentDeck/internal/adapter/agentproc"
	"github.com/Strob0t/AgentDeck/internal/domain/item"
)

// streamLine is one line of the stream-json protocol. Only the fields we
// consume are declared; everything else is ignored.
type streamLine struct {
	Type       string   `json:"type"`
	Subtype    string   `json:"subtype"`
	SessionID  string   `json:"session_id"`
	Message    *message `json:"message"`
	DurationMS int64    `json:"duration_ms"`
	IsError    bool     `json:"is_error"`
	Result     string   `json:"result"`
}

type message struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`

	// text / thinking blocks
	Text     string `json:"text"`
	Thinking string `json:"thinking"`

	// tool_use blocks
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`

	// tool_result blocks
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
	Content   json.RawMessage `json:"content"`
}

// parser translates the stream-json protocol into canonical items. Tool
// invocations arrive as a tool_use block and resolve later through a
// tool_result block carrying the matching tool_use_id, so in-flight
// tools are tracked by id.
type parser struct {
	log  *slog.Logger
	emit *agentproc.Emitter

	pending  map[string]item.Item
	blockSeq int
}

func newParser(emit *agentproc.Emitter, log *slog.Logger) *parser {
	return &parser{log: log, emit: emit, pending: make(map[string]item.Item)}
}

func (p *parser) handleLine(line []byte) {
	var msg streamLine
	if err := json.Unmarshal(line, &msg); err != nil {
		p.log.Debug("skipping unparseable stream line", "error", err)
		return
	}
	switch msg.Type {
	case "system":
		if msg.Subtype == "init" && msg.SessionID != "" {
			p.emit.Session(msg.SessionID)
		}
	case "assistant":
		p.handleAssistant(msg.Message)
	case "user":
		p.handleToolResults(msg.Message)
	case "result":
		p.handleResult(msg)
	default:
		p.log.Debug("skipping unknown stream line", "line_type", msg.Type)
	}
}

func (p *parser) handleAssistant(m *message) {
	if m == nil {
		return
	}
	for _, block := range m.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			p.emit.Item(item.Item{
				ID:     p.nextBlockID(m.ID),
				Kind:   item.KindMessage,
				Status: item.StatusDone,
				Text:   block.Text,
			})
		case "thinking":
			if block.Thinking == "" {
				continue
			}
			p.emit.Item(item.Item{
				ID:     p.nextBlockID(m.ID),
				Kind:   item.KindReasoning,
				Status: item.StatusDone,
				Text:   block.Thinking,
			})
		case "tool_use":
			it := classifyTool(block)
			p.pending[block.ID] = it
			p.emit.Item(it)
		}
	}
}

func (p *parser) handleToolResults(m *message) {
	if m == nil {
		return
	}
	for _, block := range m.Content {
		if block.Type != "tool_result" {
			continue
		}
		it, ok := p.pending[block.ToolUseID]
		if !ok {
			p.log.Debug("tool result without matching tool use", "tool_use_id", block.ToolUseID)
			continue
		}
		delete(p.pending, block.ToolUseID)
		if block.IsError {
			it.Status = item.StatusFailed
		} else {
			it.Status = item.StatusDone
		}
		if out := resultText(block.Content); out != "" {
			switch it.Kind {
			case item.KindCommand:
				it.Output = out
			case item.KindError:
				it.Text = out
			}
		}
		p.emit.Item(it)
	}
}

func (p *parser) handleResult(msg streamLine) {
	if msg.SessionID != "" {
		p.emit.Session(msg.SessionID)
	}
	d := time.Duration(msg.DurationMS) * time.Millisecond
	if msg.IsError || (msg.Subtype != "" && msg.Subtype != "success") {
		p.emit.Terminal(item.OutcomeFailed, d, failureMessage(msg))
		return
	}
	p.emit.Terminal(item.OutcomeCompleted, d, "")
}

func failureMessage(msg streamLine) string {
	if msg.Result != "" {
		return msg.Result
	}
	if msg.Subtype != "" {
		return msg.Subtype
	}
	return "turn failed"
}

func (p *parser) nextBlockID(msgID string) string {
	p.blockSeq++
	if msgID == "" {
		msgID = "msg"
	}
	return fmt.Sprintf("%s-%d", msgID, p.blockSeq)
}

// classifyTool maps a tool_use block onto the canonical item vocabulary.
// Unknown tools degrade to a generic tool_call rather than being dropped.
func classifyTool(block contentBlock) item.Item {
	it := item.Item{ID: block.ID, Status: item.StatusRunning}
	switch block.Name {
	case "Bash":
		var in struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal(block.Input, &in)
		it.Kind = item.KindCommand
		it.Command = in.Command
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		var in struct {
			FilePath string `json:"file_path"`
		}
		_ = json.Unmarshal(block.Input, &in)
		it.Kind = item.KindFileChange
		kind := "update"
		if block.Name == "Write" {
			kind = "add"
		}
		if in.FilePath != "" {
			it.Files = []item.FileUpdate{{Path: in.FilePath, Kind: kind}}
		}
	case "TodoWrite":
		var in struct {
			Todos []struct {
				Content string `json:"content"`
				Status  string `json:"status"`
			} `json:"todos"`
		}
		_ = json.Unmarshal(block.Input, &in)
		it.Kind = item.KindTodoList
		for _, td := range in.Todos {
			it.Todos = append(it.Todos, item.Todo{Text: td.Content, Completed: td.Status == "completed"})
		}
	case "WebSearch":
		var in struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(block.Input, &in)
		it.Kind = item.KindWebSearch
		it.Query = in.Query
	default:
		it.Kind = item.KindToolCall
		it.Tool = block.Name
		it.Args = compactJSON(block.Input)
	}
	return it
}

// resultText extracts the textual payload of a tool_result content field,
// which the protocol serializes either as a bare string or as a list of
// text blocks.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	out := ""
	for _, b := range blocks {
		if b.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}
