package testutil

import (
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").ActiveHandler(core.HandlerClinical).Turns(t1, t2).Build()
type SessionBuilder struct {
	id          string
	handler     *core.HandlerKind
	turns       []core.Turn
	attachments []string
	metadata    map[string]string
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, metadata: map[string]string{}}
}

// ActiveHandler sets the handler owning the session (chainable).
func (b *SessionBuilder) ActiveHandler(k core.HandlerKind) *SessionBuilder {
	b.handler = &k
	return b
}

// Turn appends a single turn to the session history (chainable).
func (b *SessionBuilder) Turn(t core.Turn) *SessionBuilder {
	b.turns = append(b.turns, t)
	return b
}

// Turns appends multiple turns to the session history (chainable).
func (b *SessionBuilder) Turns(ts ...core.Turn) *SessionBuilder {
	b.turns = append(b.turns, ts...)
	return b
}

// Exchange appends a user turn and a handler reply in one call (chainable).
func (b *SessionBuilder) Exchange(userText string, kind core.HandlerKind, handlerText string) *SessionBuilder {
	b.turns = append(b.turns, core.NewUserTurn(userText), core.NewHandlerTurn(kind, handlerText))
	return b
}

// PendingAttachments registers unresolved attachment ids (chainable).
func (b *SessionBuilder) PendingAttachments(ids ...string) *SessionBuilder {
	b.attachments = append(b.attachments, ids...)
	return b
}

// Metadata sets a metadata key/value pair (chainable).
func (b *SessionBuilder) Metadata(key, val string) *SessionBuilder {
	b.metadata[key] = val
	return b
}

// Build returns a *core.Session with pre-populated history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	if b.handler != nil {
		s.SetActiveHandler(*b.handler)
	}
	for _, t := range b.turns {
		s.AppendTurn(t)
	}
	s.AddPendingAttachments(b.attachments...)
	for k, v := range b.metadata {
		s.Metadata[k] = v
	}
	return s
}
