package core

import "sync"

// SessionCache holds the typed per-session sub-caches: resolved entities and
// tool results. It is scoped to the session lifetime and mutated only by the
// owning session's processing path.
type SessionCache struct {
	mu          sync.RWMutex
	entities    map[string]Entity
	toolResults map[string]ToolResult
}

func newSessionCache() *SessionCache {
	return &SessionCache{
		entities:    map[string]Entity{},
		toolResults: map[string]ToolResult{},
	}
}

// Entity returns a cached resolved entity by its normalized value.
func (c *SessionCache) Entity(value string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[value]
	return e, ok
}

// PutEntities stores resolved entities keyed by normalized value.
func (c *SessionCache) PutEntities(entities []Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		c.entities[e.Value] = e
	}
}

// EntityCount returns the number of cached entities.
func (c *SessionCache) EntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// ToolResult returns a cached tool result by invocation key.
func (c *SessionCache) ToolResult(key string) (ToolResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.toolResults[key]
	return r, ok
}

// PutToolResult caches a tool result by invocation key.
func (c *SessionCache) PutToolResult(key string, r ToolResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolResults[key] = r
}

// SessionCaches is the session-keyed arena of typed caches. Cross-session
// state is never shared; dropping a session discards its caches.
type SessionCaches struct {
	mu sync.Mutex
	m  map[string]*SessionCache
}

// NewSessionCaches constructs an empty cache arena.
func NewSessionCaches() *SessionCaches {
	return &SessionCaches{m: map[string]*SessionCache{}}
}

// For returns the cache for a session, creating it on first use.
func (s *SessionCaches) For(sessionID string) *SessionCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[sessionID]
	if !ok {
		c = newSessionCache()
		s.m[sessionID] = c
	}
	return c
}

// Drop discards all cached state for a session.
func (s *SessionCaches) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
}
