package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/session"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/tool"
)

type fixture struct {
	router *Router
	stub   *model.StubModel
	store  *session.InMemoryStore
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Inference.RetryBaseDelay = time.Millisecond
	return newFixtureWithConfig(t, cfg)
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	stub := model.NewStubModel()
	catalog, err := tool.Catalog(tool.NewLiteratureSearchTool(&tool.StaticSearchProvider{
		Results: []tool.SearchResult{{Title: "CBT outcomes review", Source: "J Clin Psych"}},
	}))
	require.NoError(t, err)
	reg, err := handler.NewRegistry(cfg, stub, catalog)
	require.NoError(t, err)

	store := session.NewInMemoryStore()
	return &fixture{
		router: New(cfg, reg, store),
		stub:   stub,
		store:  store,
		cfg:    cfg,
	}
}

// enqueueClassification scripts the combined call's structured response.
func (f *fixture) enqueueClassification(action, rationale, focus string, entities ...core.ToolInvocationRequest) {
	calls := []core.ToolInvocationRequest{{
		ID:        core.NewID(),
		Name:      action,
		Arguments: fmt.Sprintf(`{"rationale":%q,"focus":%q}`, rationale, focus),
	}}
	calls = append(calls, entities...)
	f.stub.EnqueueToolCalls("", calls...)
}

func collect(t *testing.T, ch <-chan core.OutputChunk) []core.OutputChunk {
	t.Helper()
	var out []core.OutputChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-timeout:
			t.Fatal("chunk stream did not close")
		}
	}
}

func requestText(req model.Request) string {
	var b strings.Builder
	for _, msg := range req.Messages {
		for _, p := range msg.Parts {
			if tp, ok := p.(core.TextPart); ok {
				b.WriteString(tp.Text)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func textOf(chunks []core.OutputChunk) string {
	var b strings.Builder
	for _, ch := range chunks {
		if tc, ok := ch.(core.TextChunk); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestRouteTurnClinicalAcceptance(t *testing.T) {
	f := newFixture(t)
	f.enqueueClassification("route_clinical", "case discussion", "formulation",
		core.ToolInvocationRequest{ID: "e1", Name: "tag_entity", Arguments: `{"type":"condition","value":"panic disorder","salience":0.9}`},
	)
	f.stub.EnqueueText("Let us map the panic cycle together.")

	runID, ch, err := f.router.RouteTurn(context.Background(), "s1", "my patient with panic disorder needs a new treatment plan")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	chunks := collect(t, ch)
	assert.Equal(t, "Let us map the panic cycle together.", textOf(chunks))

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerClinical, kind)

	turns := sess.GetTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, core.RoleHandler, turns[1].Role)
}

func TestRouteTurnClarification(t *testing.T) {
	f := newFixture(t)
	// A well-formed classification of a short turn with none of the handler
	// vocabulary stays below the adjusted threshold.
	f.enqueueClassification("route_clinical", "unclear request", "general")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "ok")
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 1)
	clarification, ok := chunks[0].(core.ClarificationChunk)
	require.True(t, ok)
	assert.Equal(t, core.HandlerSocratic, clarification.Proposed)
	assert.NotEmpty(t, clarification.Message)

	// The user's turn is preserved even without a handler response.
	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	turns := sess.GetTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	_, hasHandler := sess.ActiveHandlerKind()
	assert.False(t, hasHandler)

	// Only the classification call was spent.
	assert.Equal(t, 1, f.stub.CallCount())
}

func TestRouteTurnExplicitSwitch(t *testing.T) {
	f := newFixture(t)
	f.stub.EnqueueText("Academic mode it is. What shall we look up?")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "switch to academic mode")
	require.NoError(t, err)
	chunks := collect(t, ch)
	assert.NotEmpty(t, textOf(chunks))

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerAcademic, kind)

	// No classification call was made and the command itself is not part of
	// the conversation history.
	assert.Equal(t, 1, f.stub.CallCount())
	turns := sess.GetTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleHandler, turns[0].Role)
}

func TestRouteTurnExplicitSwitchSpanish(t *testing.T) {
	f := newFixture(t)
	f.stub.EnqueueText("Modo clínico activado.")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "activa el modo clínico por favor")
	require.NoError(t, err)
	collect(t, ch)

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerClinical, kind)
}

func TestRouteTurnExplicitSwitchDocumentationMode(t *testing.T) {
	f := newFixture(t)
	f.stub.EnqueueText("Documentation mode ready. Which document shall we work on?")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "activate documentation mode")
	require.NoError(t, err)
	chunks := collect(t, ch)
	assert.NotEmpty(t, textOf(chunks))

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerAcademic, kind)

	// The descriptive name routes like the handler name: no classification
	// call, and the command stays out of the history.
	assert.Equal(t, 1, f.stub.CallCount())
	turns := sess.GetTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleHandler, turns[0].Role)
}

func TestRouteTurnHandoffSeedsFullHistory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Inference.RetryBaseDelay = time.Millisecond
	cfg.Compressor.TargetTokens = 60
	cfg.Compressor.HighWaterTokens = 45
	f := newFixtureWithConfig(t, cfg)

	sess := core.NewSession("s1")
	sess.AppendTurn(core.NewUserTurn("we reviewed the bipolar diagnosis from the intake interview"))
	sess.AppendTurn(core.NewHandlerTurn(core.HandlerSocratic, "how did that history shape your view of the presentation"))
	for i := 0; i < 5; i++ {
		filler := strings.Repeat("tema ", 10)
		sess.AppendTurn(core.NewUserTurn(fmt.Sprintf("session note %d %s", i, filler)))
		sess.AppendTurn(core.NewHandlerTurn(core.HandlerSocratic, fmt.Sprintf("reflection %d %s", i, filler)))
	}
	sess.SetActiveHandler(core.HandlerSocratic)
	require.NoError(t, f.store.Save(sess))

	f.enqueueClassification("route_clinical", "case shift", "treatment planning")
	f.stub.EnqueueText("Let us revisit the full picture before planning.")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1",
		"my patient needs a new treatment plan for her symptoms")
	require.NoError(t, err)
	collect(t, ch)

	sess, err = f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerClinical, kind)

	// Classification sees only the compressed window; the handoff generation
	// call is seeded with the complete shared history.
	reqs := f.stub.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, requestText(reqs[0]), "bipolar")
	assert.Contains(t, requestText(reqs[1]), "bipolar")
	assert.Contains(t, reqs[1].Instructions, "transferred")
}

func TestRouteTurnFallbackOnClassificationFailure(t *testing.T) {
	f := newFixture(t)
	for i := 0; i <= f.cfg.Inference.MaxRetries; i++ {
		f.stub.EnqueueError(errors.New("inference down"))
	}
	f.stub.EnqueueText("Let us explore that together.")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "I feel stuck with this case")
	require.NoError(t, err)

	chunks := collect(t, ch)
	assert.Equal(t, "Let us explore that together.", textOf(chunks))
	for _, chunk := range chunks {
		_, isErr := chunk.(core.ErrorChunk)
		assert.False(t, isErr, "degraded classification must not surface an error chunk")
	}

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerSocratic, kind)
}

func TestRouteTurnAttachmentOverride(t *testing.T) {
	f := newFixture(t)
	// Borderline classification toward clinical while documents are pending:
	// the combined score lands just inside the override band.
	f.enqueueClassification("route_clinical", "unclear request", "general")
	f.stub.EnqueueText("I reviewed the uploaded document.")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "ok", WithAttachments("doc-1"))
	require.NoError(t, err)
	collect(t, ch)

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	kind, ok := sess.ActiveHandlerKind()
	require.True(t, ok)
	assert.Equal(t, core.HandlerAcademic, kind)

	// The academic handler consumed the pending uploads.
	assert.Empty(t, sess.PendingAttachmentIDs())

	turns := sess.GetTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, []string{"doc-1"}, turns[0].AttachmentIDs())
}

func TestRouteTurnGenerationFailureEmitsErrorChunk(t *testing.T) {
	f := newFixture(t)
	f.enqueueClassification("route_socratic", "reflection", "exploration")
	for i := 0; i <= f.cfg.Inference.MaxRetries; i++ {
		f.stub.EnqueueError(errors.New("inference down"))
	}

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "why do I keep avoiding this topic, what does it say about my perspective")
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.NotEmpty(t, chunks)
	errChunk, ok := chunks[len(chunks)-1].(core.ErrorChunk)
	require.True(t, ok)
	assert.True(t, errChunk.Retryable)
}

func TestRouteTurnOrderingAcrossTurns(t *testing.T) {
	f := newFixture(t)
	const n = 5
	for i := 0; i < n; i++ {
		f.enqueueClassification("route_socratic", "reflection", "exploration")
		f.stub.EnqueueText(fmt.Sprintf("reply %d", i))
	}

	for i := 0; i < n; i++ {
		_, ch, err := f.router.RouteTurn(context.Background(), "s1",
			fmt.Sprintf("I want to reflect on supervision topic %d and explore why it matters", i))
		require.NoError(t, err)
		collect(t, ch)
	}

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	turns := sess.GetTurns()
	require.Len(t, turns, 2*n)
	for i := 0; i < n; i++ {
		assert.Equal(t, core.RoleUser, turns[2*i].Role)
		assert.Contains(t, turns[2*i].Text(), fmt.Sprintf("topic %d", i))
		assert.Equal(t, core.RoleHandler, turns[2*i+1].Role)
		assert.Equal(t, fmt.Sprintf("reply %d", i), turns[2*i+1].Text())
	}
}

func TestRouteTurnToolResultsAnnotated(t *testing.T) {
	f := newFixture(t)
	f.enqueueClassification("route_academic", "literature request", "find studies",
		core.ToolInvocationRequest{ID: "e1", Name: "tag_entity", Arguments: `{"type":"topic","value":"CBT outcomes","salience":0.9}`},
	)
	f.stub.EnqueueToolCalls("Searching. ", core.ToolInvocationRequest{
		ID: "c1", Name: "search_literature", Arguments: `{"query":"CBT outcomes"}`,
	})
	f.stub.EnqueueText("Found one review.")

	_, ch, err := f.router.RouteTurn(context.Background(), "s1", "find research literature and evidence on CBT outcomes")
	require.NoError(t, err)
	chunks := collect(t, ch)
	assert.Equal(t, "Searching. Found one review.", textOf(chunks))

	sess, err := f.store.Load("s1")
	require.NoError(t, err)
	turns := sess.GetTurns()
	require.Len(t, turns, 3)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, core.RoleTool, turns[1].Role)
	require.Len(t, turns[1].ToolResults(), 1)
	assert.Equal(t, core.RoleHandler, turns[2].Role)
}

func TestRouteTurnValidation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.router.RouteTurn(context.Background(), "", "hello")
	assert.Error(t, err)

	_, _, err = f.router.RouteTurn(context.Background(), "s1", "   ")
	assert.Error(t, err)
}

func TestCancelUnknownRun(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.router.Cancel("nope"), ErrRunNotFound)
}

func TestDetectExplicitSwitch(t *testing.T) {
	cases := map[string]struct {
		kind core.HandlerKind
		ok   bool
	}{
		"switch to academic mode":           {core.HandlerAcademic, true},
		"please activate the clinical":      {core.HandlerClinical, true},
		"activate documentation mode":       {core.HandlerAcademic, true},
		"enable research mode":              {core.HandlerAcademic, true},
		"Activa el modo socrático":          {core.HandlerSocratic, true},
		"activa el modo de documentación":   {core.HandlerAcademic, true},
		"cambiar al modo académico":         {core.HandlerAcademic, true},
		"my patient switched medications":   {0, false},
		"the academic literature suggests":  {0, false},
		"the documentation for this client": {0, false},
	}
	for text, want := range cases {
		kind, ok := detectExplicitSwitch(text)
		assert.Equal(t, want.ok, ok, text)
		if want.ok {
			assert.Equal(t, want.kind, kind, text)
		}
	}
}
