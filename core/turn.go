package core

import (
	"strings"
	"time"
)

// Conversation roles recorded on turns.
const (
	RoleUser    = "user"
	RoleHandler = "handler"
	RoleTool    = "tool"
	RoleSystem  = "system"
)

// Turn is one conversational exchange unit. Turns are immutable once appended
// to a session; the session history preserves strict chronological order.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Handler   *string   `json:"handler,omitempty"` // authoring handler for handler turns
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a bare turn with a fresh id and UTC timestamp.
func NewTurn(role string) Turn {
	return Turn{ID: NewID(), Role: role, Timestamp: time.Now().UTC()}
}

// NewUserTurn creates a user-authored text turn, optionally carrying
// attachment references.
func NewUserTurn(text string, attachmentIDs ...string) Turn {
	t := NewTurn(RoleUser)
	t.Parts = []Part{TextPart{Text: text}}
	for _, id := range attachmentIDs {
		t.Parts = append(t.Parts, AttachmentPart{ID: id})
	}
	return t
}

// NewHandlerTurn creates a handler-authored text turn.
func NewHandlerTurn(kind HandlerKind, text string) Turn {
	t := NewTurn(RoleHandler)
	name := kind.String()
	t.Handler = &name
	t.Parts = []Part{TextPart{Text: text}}
	return t
}

// NewToolResultTurn records tool invocation outcomes as a tool-role turn so
// they survive in history for the continuation phase and later context.
func NewToolResultTurn(kind HandlerKind, results ...ToolResult) Turn {
	t := NewTurn(RoleTool)
	name := kind.String()
	t.Handler = &name
	for _, r := range results {
		t.Parts = append(t.Parts, ToolResultPart{Result: r})
	}
	return t
}

// Text concatenates all text parts of the turn in order.
func (t Turn) Text() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// AttachmentIDs returns the ids of all attachment parts in order.
func (t Turn) AttachmentIDs() []string {
	var ids []string
	for _, p := range t.Parts {
		if ap, ok := p.(AttachmentPart); ok {
			ids = append(ids, ap.ID)
		}
	}
	return ids
}

// ToolCalls returns any tool invocation requests recorded on the turn.
func (t Turn) ToolCalls() []ToolInvocationRequest {
	var calls []ToolInvocationRequest
	for _, p := range t.Parts {
		if cp, ok := p.(ToolCallPart); ok {
			calls = append(calls, cp.Call)
		}
	}
	return calls
}

// ToolResults returns any tool result annotations recorded on the turn.
func (t Turn) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range t.Parts {
		if rp, ok := p.(ToolResultPart); ok {
			results = append(results, rp.Result)
		}
	}
	return results
}

// HandlerKind resolves the authoring handler of a handler or tool turn.
func (t Turn) HandlerKind() (HandlerKind, bool) {
	if t.Handler == nil {
		return 0, false
	}
	k, err := ParseHandlerKind(*t.Handler)
	if err != nil {
		return 0, false
	}
	return k, true
}
