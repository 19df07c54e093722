package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore.Load when no session exists
// for the requested id. The router recovers by creating a fresh session.
var ErrSessionNotFound = errors.New("session not found")

// Session is the conversational container: identity, active handler, ordered
// turn history and mutable bookkeeping metadata. It is owned exclusively by
// the routing layer; exactly one handler is active per session at any time.
// Safe for concurrent access.
//
// Contract:
//   - Turns are append-only and preserve strict chronological order
//   - Mutations update the Updated timestamp
//   - GetTurns returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of slices/maps for safe divergence
type Session struct {
	ID                 string            `json:"id"`
	ActiveHandler      *HandlerKind      `json:"active_handler,omitempty"`
	Turns              []Turn            `json:"turns"`
	PendingAttachments []string          `json:"pending_attachments,omitempty"`
	TokenEstimate      int               `json:"token_estimate"`
	Created            time.Time         `json:"created"`
	Updated            time.Time         `json:"updated"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	mu                 sync.RWMutex
}

// NewSession creates an empty session with no active handler.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Turns: []Turn{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// AppendTurn appends a turn to the history updating the Updated timestamp.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
	s.Updated = time.Now().UTC()
}

// GetTurns returns a defensive copy of the full turn history.
func (s *Session) GetTurns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// TurnCount returns the number of turns recorded.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Turns)
}

// ActiveHandlerKind returns the currently active handler, if any.
func (s *Session) ActiveHandlerKind() (HandlerKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ActiveHandler == nil {
		return 0, false
	}
	return *s.ActiveHandler, true
}

// SetActiveHandler records the handler now owning the session. The switch is
// atomic with respect to callers of ActiveHandlerKind.
func (s *Session) SetActiveHandler(k HandlerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveHandler = &k
	s.Updated = time.Now().UTC()
}

// AddPendingAttachments registers uploaded attachment ids awaiting processing.
func (s *Session) AddPendingAttachments(ids ...string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingAttachments = append(s.PendingAttachments, ids...)
	s.Updated = time.Now().UTC()
}

// PendingAttachmentIDs returns a copy of the unresolved attachment ids.
func (s *Session) PendingAttachmentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.PendingAttachments))
	copy(ids, s.PendingAttachments)
	return ids
}

// ClearPendingAttachments marks all pending attachments as processed.
func (s *Session) ClearPendingAttachments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PendingAttachments = nil
	s.Updated = time.Now().UTC()
}

// SetTokenEstimate records the running token estimate for the session.
func (s *Session) SetTokenEstimate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TokenEstimate = n
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:            s.ID,
		Turns:         make([]Turn, len(s.Turns)),
		TokenEstimate: s.TokenEstimate,
		Created:       s.Created,
		Updated:       s.Updated,
		Metadata:      make(map[string]string, len(s.Metadata)),
	}
	if s.ActiveHandler != nil {
		k := *s.ActiveHandler
		clone.ActiveHandler = &k
	}
	copy(clone.Turns, s.Turns)
	clone.PendingAttachments = append(clone.PendingAttachments, s.PendingAttachments...)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions and their evolving turn history. Physical
// storage is an external concern; the engine only reads and writes through
// this interface.
type SessionStore interface {
	// Load returns the session for id or ErrSessionNotFound.
	Load(id string) (*Session, error)
	// Save persists a full session snapshot.
	Save(s *Session) error
	// Delete removes a session. The engine itself never calls this; it is
	// part of the external storage contract.
	Delete(id string) error
	// AppendTurn appends a single turn to an existing session's history.
	AppendTurn(sessionID string, t Turn) error
}

// AttachmentMetadata describes an uploaded document resolved by id.
type AttachmentMetadata struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
}

// AttachmentResolver resolves opaque attachment ids to metadata. Used to
// detect pending attachments for the routing override rule.
type AttachmentResolver interface {
	ResolveByIDs(ctx context.Context, ids []string) ([]AttachmentMetadata, error)
}
