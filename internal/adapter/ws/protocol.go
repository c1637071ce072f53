package ws

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/engine"
)

// Outbound frame types.
const (
	frameEvent = "event"
	frameAck   = "ack"
	frameError = "error"
)

// inboundFrame is one client-to-server message: an intent with a frame
// id the reply will echo.
type inboundFrame struct {
	ID      string          `json:"id"`
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload"`
}

// outboundFrame is one server-to-client message: either a broadcast
// event or the ack/error reply to an inbound frame.
type outboundFrame struct {
	Type string `json:"type"`

	// frameEvent fields.
	Event    string `json:"event,omitempty"`
	Revision uint64 `json:"revision,omitempty"`
	Payload  any    `json:"payload,omitempty"`

	// frameAck / frameError fields.
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

func ackFrame(id string) outboundFrame {
	return outboundFrame{Type: frameAck, ID: id}
}

func errorFrame(id, msg string) outboundFrame {
	return outboundFrame{Type: frameError, ID: id, Message: msg}
}

// decodeIntent maps a wire intent name plus JSON payload onto the engine
// intent union.
func decodeIntent(name string, payload json.RawMessage) (engine.Intent, error) {
	build, ok := intentCodecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown intent %q", name)
	}
	return build(payload)
}

type intentBuilder func(json.RawMessage) (engine.Intent, error)

func decodeAs[T any](payload json.RawMessage, into func(T) engine.Intent) (engine.Intent, error) {
	var wire T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
	}
	return into(wire), nil
}

var intentCodecs = map[string]intentBuilder{
	"create_project": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			Name    string `json:"name"`
			RepoURL string `json:"repo_url"`
		}) engine.Intent {
			return engine.CreateProject{Name: w.Name, RepoURL: w.RepoURL}
		})
	},
	"rename_project": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ProjectID int64  `json:"project_id"`
			Name      string `json:"name"`
		}) engine.Intent {
			return engine.RenameProject{ProjectID: w.ProjectID, Name: w.Name}
		})
	},
	"archive_project": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ProjectID int64 `json:"project_id"`
		}) engine.Intent {
			return engine.ArchiveProject{ProjectID: w.ProjectID}
		})
	},
	"create_workspace": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ProjectID int64  `json:"project_id"`
			Name      string `json:"name"`
			Path      string `json:"path"`
		}) engine.Intent {
			return engine.CreateWorkspace{ProjectID: w.ProjectID, Name: w.Name, Path: w.Path}
		})
	},
	"rename_workspace": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			WorkspaceID int64  `json:"workspace_id"`
			Name        string `json:"name"`
		}) engine.Intent {
			return engine.RenameWorkspace{WorkspaceID: w.WorkspaceID, Name: w.Name}
		})
	},
	"archive_workspace": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			WorkspaceID int64 `json:"workspace_id"`
		}) engine.Intent {
			return engine.ArchiveWorkspace{WorkspaceID: w.WorkspaceID}
		})
	},
	"create_thread": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			WorkspaceID int64  `json:"workspace_id"`
			Title       string `json:"title"`
		}) engine.Intent {
			return engine.CreateThread{WorkspaceID: w.WorkspaceID, Title: w.Title}
		})
	},
	"rename_thread": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64  `json:"thread_id"`
			Title    string `json:"title"`
		}) engine.Intent {
			return engine.RenameThread{ThreadID: w.ThreadID, Title: w.Title}
		})
	},
	"close_tab": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.CloseTab{ThreadID: w.ThreadID}
		})
	},
	"restore_tab": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.RestoreTab{ThreadID: w.ThreadID}
		})
	},
	"move_tab": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
			Position int   `json:"position"`
		}) engine.Intent {
			return engine.MoveTab{ThreadID: w.ThreadID, Position: w.Position}
		})
	},
	"activate_tab": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.ActivateTab{ThreadID: w.ThreadID}
		})
	},
	"send_message": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID    int64    `json:"thread_id"`
			Text        string   `json:"text"`
			Attachments []string `json:"attachments"`
			IfBusy      string   `json:"if_busy"`
		}) engine.Intent {
			return engine.SendMessage{
				ThreadID:    w.ThreadID,
				Text:        w.Text,
				Attachments: w.Attachments,
				IfBusy:      engine.BusyPolicy(w.IfBusy),
			}
		})
	},
	"reorder_queued_prompt": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64  `json:"thread_id"`
			PromptID string `json:"prompt_id"`
			Position int    `json:"position"`
		}) engine.Intent {
			return engine.ReorderQueuedPrompt{ThreadID: w.ThreadID, PromptID: w.PromptID, Position: w.Position}
		})
	},
	"update_queued_prompt": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64           `json:"thread_id"`
			PromptID string          `json:"prompt_id"`
			Text     string          `json:"text"`
			Config   *turn.RunConfig `json:"config"`
		}) engine.Intent {
			return engine.UpdateQueuedPrompt{ThreadID: w.ThreadID, PromptID: w.PromptID, Text: w.Text, Config: w.Config}
		})
	},
	"remove_queued_prompt": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64  `json:"thread_id"`
			PromptID string `json:"prompt_id"`
		}) engine.Intent {
			return engine.RemoveQueuedPrompt{ThreadID: w.ThreadID, PromptID: w.PromptID}
		})
	},
	"cancel_turn": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.CancelTurn{ThreadID: w.ThreadID}
		})
	},
	"pause_queue": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.PauseQueue{ThreadID: w.ThreadID}
		})
	},
	"resume_queue": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64 `json:"thread_id"`
		}) engine.Intent {
			return engine.ResumeQueue{ThreadID: w.ThreadID}
		})
	},
	"set_thread_config": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			ThreadID int64          `json:"thread_id"`
			Config   turn.RunConfig `json:"config"`
		}) engine.Intent {
			return engine.SetThreadConfig{ThreadID: w.ThreadID, Config: w.Config}
		})
	},
	"set_defaults": func(p json.RawMessage) (engine.Intent, error) {
		return decodeAs(p, func(w struct {
			Config turn.RunConfig `json:"config"`
		}) engine.Intent {
			return engine.SetDefaults{Config: w.Config}
		})
	},
}
