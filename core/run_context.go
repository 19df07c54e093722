package core

import (
	"context"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
)

// RunContext carries the mutable per-turn execution scope passed to the
// classifier, the streaming engine and tool invocations. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID) and the active handler
//   - The incoming user text
//   - The chunk emission channel toward the caller
//   - The backing SessionStore and a working Session snapshot
//   - The per-turn model call budget and session-scoped caches
type RunContext struct {
	Context   context.Context
	SessionID string
	RunID     string
	Handler   HandlerKind
	UserText  string
	Emit      chan<- OutputChunk
	Sessions  SessionStore
	Session   *Session
	Budget    *ModelBudget
	Cache     *SessionCache

	*loggerAdapter
}

// NewRunContext constructs a RunContext for one turn.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	handler HandlerKind,
	userText string,
	emit chan<- OutputChunk,
	sess *Session,
	sessions SessionStore,
	budget *ModelBudget,
	cache *SessionCache,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Handler:       handler,
		UserText:      userText,
		Emit:          emit,
		Sessions:      sessions,
		Session:       sess,
		Budget:        budget,
		Cache:         cache,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// WithContext returns a shallow copy of the run context bound to a different
// cancellation context. Used to hand tools a detached, timeout-bounded scope.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	clone := *rc
	clone.Context = ctx
	return &clone
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// History returns the full turn history of the working session snapshot.
func (rc *RunContext) History() []Turn {
	if rc.Session == nil {
		return []Turn{}
	}
	return rc.Session.GetTurns()
}

// EmitChunk delivers a chunk to the caller, honoring cancellation. After the
// caller disconnects chunks are dropped without error so in-flight work can
// finish and be discarded.
func (rc *RunContext) EmitChunk(ch OutputChunk) error {
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ch:
		return nil
	}
}
