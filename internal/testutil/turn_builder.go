package testutil

import (
	"time"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// TurnBuilder provides a fluent helper for constructing turns in tests.
// Example:
//
//	turn := NewTurnBuilder().UserText("hello").Attachment("doc-1").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TurnBuilder struct {
	id        string
	role      string
	handler   *string
	parts     []core.Part
	timestamp *time.Time
}

// NewTurnBuilder creates a builder with default role "user".
func NewTurnBuilder() *TurnBuilder { return &TurnBuilder{role: core.RoleUser} }

// ID overrides the auto-generated turn ID (chainable).
func (b *TurnBuilder) ID(id string) *TurnBuilder { b.id = id; return b }

// Role sets the turn role (chainable).
func (b *TurnBuilder) Role(r string) *TurnBuilder { b.role = r; return b }

// Handler records the authoring handler and sets role to handler (chainable).
func (b *TurnBuilder) Handler(kind core.HandlerKind) *TurnBuilder {
	name := kind.String()
	b.handler = &name
	b.role = core.RoleHandler
	return b
}

// At pins the turn timestamp, mainly for recency-sensitive tests (chainable).
func (b *TurnBuilder) At(ts time.Time) *TurnBuilder { b.timestamp = &ts; return b }

// UserText appends a text part and sets role to user (chainable).
func (b *TurnBuilder) UserText(t string) *TurnBuilder {
	b.role = core.RoleUser
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// HandlerText appends a text part authored by the given handler (chainable).
func (b *TurnBuilder) HandlerText(kind core.HandlerKind, t string) *TurnBuilder {
	b.Handler(kind)
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Attachment appends an attachment reference part (chainable).
func (b *TurnBuilder) Attachment(id string) *TurnBuilder {
	b.parts = append(b.parts, core.AttachmentPart{ID: id})
	return b
}

// ToolCall appends a tool invocation request part (chainable).
func (b *TurnBuilder) ToolCall(id, name, args string) *TurnBuilder {
	b.parts = append(b.parts, core.ToolCallPart{Call: core.ToolInvocationRequest{ID: id, Name: name, Arguments: args}})
	return b
}

// ToolResult appends a tool result part and sets role to tool (chainable).
func (b *TurnBuilder) ToolResult(r core.ToolResult) *TurnBuilder {
	b.role = core.RoleTool
	b.parts = append(b.parts, core.ToolResultPart{Result: r})
	return b
}

// AddPart appends a custom content part (chainable).
func (b *TurnBuilder) AddPart(p core.Part) *TurnBuilder {
	b.parts = append(b.parts, p)
	return b
}

// Build returns the constructed turn.
func (b *TurnBuilder) Build() core.Turn {
	t := core.NewTurn(b.role)
	if b.id != "" {
		t.ID = b.id
	}
	if b.timestamp != nil {
		t.Timestamp = *b.timestamp
	}
	t.Handler = b.handler
	t.Parts = append(t.Parts, b.parts...)
	return t
}
