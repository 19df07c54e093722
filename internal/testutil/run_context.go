package testutil

import (
	"context"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
)

// RunContextFixture bundles a RunContext with the channel its chunks arrive
// on so tests can drive the streaming layers directly.
type RunContextFixture struct {
	RunCtx *core.RunContext
	Chunks chan core.OutputChunk
	Cancel context.CancelFunc
}

// NewRunContextFixture builds a ready-to-use run context around the given
// session. The chunk channel is generously buffered so single-goroutine
// tests never block on emission.
func NewRunContextFixture(sess *core.Session, userText string) *RunContextFixture {
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan core.OutputChunk, 256)

	handler := core.HandlerSocratic
	if k, ok := sess.ActiveHandlerKind(); ok {
		handler = k
	}

	runCtx := core.NewRunContext(
		ctx,
		sess.ID,
		core.NewID(),
		handler,
		userText,
		chunks,
		sess,
		nil,
		core.NewModelBudget(100),
		core.NewSessionCaches().For(sess.ID),
		logging.NoOpLogger{},
	)

	return &RunContextFixture{RunCtx: runCtx, Chunks: chunks, Cancel: cancel}
}

// NewToolContext builds a tool context bound to a throwaway run context.
func NewToolContext(callID string) *core.ToolContext {
	fixture := NewRunContextFixture(core.NewSession("sess-test"), "")
	return core.NewToolContext(fixture.RunCtx, callID)
}

// DrainChunks collects all chunks currently buffered on the channel without
// blocking.
func (f *RunContextFixture) DrainChunks() []core.OutputChunk {
	var out []core.OutputChunk
	for {
		select {
		case ch := <-f.Chunks:
			out = append(out, ch)
		default:
			return out
		}
	}
}
