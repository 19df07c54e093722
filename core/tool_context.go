package core

import (
	"context"
	"fmt"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked during a streaming execution. Tools see the
// session history and the session-scoped result cache but cannot mutate the
// session or emit chunks directly.
type ToolContext struct {
	runCtx *RunContext
	callID string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// the unique id of the originating tool invocation request.
func NewToolContext(runCtx *RunContext, callID string) *ToolContext {
	return &ToolContext{
		runCtx:        runCtx,
		callID:        callID,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation. The
// streaming engine hands tools a detached context so a caller disconnect
// does not abort work mid-flight; the per-tool timeout still applies.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the owning session id.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the turn's run id.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// CallID returns the tool invocation request id.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// History returns the session's turn history for context-aware tools.
func (tc *ToolContext) History() []Turn { return tc.runCtx.History() }

// CachedResult returns a previously cached result for an identical
// invocation within this session, if any.
func (tc *ToolContext) CachedResult(key string) (ToolResult, bool) {
	if tc.runCtx.Cache == nil {
		return ToolResult{}, false
	}
	return tc.runCtx.Cache.ToolResult(key)
}

// CacheResult stores a result in the session-scoped tool result cache.
func (tc *ToolContext) CacheResult(key string, r ToolResult) {
	if tc.runCtx.Cache != nil {
		tc.runCtx.Cache.PutToolResult(key, r)
	}
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.callID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
