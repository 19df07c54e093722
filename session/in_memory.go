// Package session provides SessionStore implementations: a volatile
// in-memory store for tests and ephemeral deployments and a SQLite backed
// store for durable single-node deployments.
package session

import (
	"sync"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions
// in a process local map. It is safe for concurrent access and best suited
// for tests or ephemeral demo servers. Each returned session is cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Load returns a clone of an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Load(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Save stores a clone of the provided session snapshot.
func (s *InMemoryStore) Save(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// AppendTurn adds a turn to an existing session's history.
func (s *InMemoryStore) AppendTurn(sessionID string, t core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}
	sess.AppendTurn(t)
	return nil
}
