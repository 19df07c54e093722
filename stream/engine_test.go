package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/internal/testutil"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/tool"
)

func newTestEngine() *Engine {
	cfg := config.DefaultConfig()
	cfg.Inference.RetryBaseDelay = time.Millisecond
	return New(cfg.Stream, cfg.Inference, logging.NoOpLogger{})
}

func academicDef(stub *model.StubModel, tools ...tool.Tool) *handler.Definition {
	catalog, _ := tool.Catalog(tools...)
	return &handler.Definition{
		Kind:       core.HandlerAcademic,
		Name:       "academic",
		ActionName: "route_academic",
		Tools:      catalog,
		Model:      stub,
	}
}

func streamRequest() model.Request {
	return model.Request{Messages: []model.Message{model.UserText("find studies")}, Stream: true}
}

func TestRunPlainText(t *testing.T) {
	stub := model.NewStubModel()
	stub.EnqueueText("hello there")
	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "find studies")
	defer fixture.Cancel()

	result, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub), streamRequest())
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, PhaseDone, result.Phase)
	assert.Empty(t, result.ToolResults)

	chunks := fixture.DrainChunks()
	require.Len(t, chunks, 1)
	assert.Equal(t, core.TextChunk{Text: "hello there"}, chunks[0])
}

func TestRunChunkOrderingWithTools(t *testing.T) {
	search := tool.NewLiteratureSearchTool(&tool.StaticSearchProvider{Results: []tool.SearchResult{
		{Title: "EMDR efficacy review", Source: "J Trauma"},
	}})
	stub := model.NewStubModel()
	stub.EnqueueToolCalls("Let me look that up. ", core.ToolInvocationRequest{
		ID: "c1", Name: "search_literature", Arguments: `{"query":"EMDR"}`,
	})
	stub.EnqueueText("One review found.")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "find studies")
	defer fixture.Cancel()

	result, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub, search), streamRequest())
	require.NoError(t, err)

	assert.Equal(t, "Let me look that up. One review found.", result.Text)
	require.Len(t, result.ToolResults, 1)
	assert.False(t, result.ToolResults[0].Failed())

	chunks := fixture.DrainChunks()
	require.Len(t, chunks, 4)
	assert.Equal(t, core.TextChunk{Text: "Let me look that up. "}, chunks[0])

	started, ok := chunks[1].(core.ProgressChunk)
	require.True(t, ok)
	assert.Equal(t, core.ProgressToolStarted, started.Stage)
	assert.Equal(t, []string{"search_literature"}, started.Tools)

	completed, ok := chunks[2].(core.ProgressChunk)
	require.True(t, ok)
	assert.Equal(t, core.ProgressToolCompleted, completed.Stage)
	assert.Equal(t, 1, completed.Succeeded)
	assert.Equal(t, 0, completed.Failed)

	assert.Equal(t, core.TextChunk{Text: "One review found."}, chunks[3])
}

func TestRunContinuationSeesToolResults(t *testing.T) {
	search := tool.NewLiteratureSearchTool(&tool.StaticSearchProvider{})
	stub := model.NewStubModel()
	stub.EnqueueToolCalls("", core.ToolInvocationRequest{
		ID: "c1", Name: "search_literature", Arguments: `{"query":"x"}`,
	})
	stub.EnqueueText("done")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	_, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub, search), streamRequest())
	require.NoError(t, err)

	reqs := stub.Requests()
	require.Len(t, reqs, 2)
	continuation := reqs[1]
	require.Len(t, continuation.Messages, 3)

	assert.Equal(t, model.RoleAssistant, continuation.Messages[1].Role)
	require.Len(t, continuation.Messages[1].Parts, 1)
	_, isCall := continuation.Messages[1].Parts[0].(core.ToolCallPart)
	assert.True(t, isCall)

	assert.Equal(t, model.RoleTool, continuation.Messages[2].Role)
	_, isResult := continuation.Messages[2].Parts[0].(core.ToolResultPart)
	assert.True(t, isResult)
}

func TestRunEmptyTurnEmitsTerminalChunk(t *testing.T) {
	stub := model.NewStubModel()
	stub.Enqueue([]model.Response{{FinishReason: "stop"}})

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	result, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub), streamRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Text)

	chunks := fixture.DrainChunks()
	require.Len(t, chunks, 1)
	assert.Equal(t, core.TextChunk{}, chunks[0])
}

func TestRunRetriesBeforeFirstChunk(t *testing.T) {
	stub := model.NewStubModel()
	stub.EnqueueError(errors.New("transient"))
	stub.EnqueueText("recovered")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	result, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub), streamRequest())
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 2, stub.CallCount())
}

func TestRunNoRetryAfterStreamingBegan(t *testing.T) {
	stub := model.NewStubModel()
	stub.EnqueueWithError([]model.Response{{Partial: true, Text: "partial "}}, errors.New("mid-stream drop"))
	stub.EnqueueText("should never be used")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	_, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub), streamRequest())
	require.Error(t, err)
	assert.Equal(t, 1, stub.CallCount())

	// The partial text was already forwarded before the failure.
	chunks := fixture.DrainChunks()
	require.Len(t, chunks, 1)
	assert.Equal(t, core.TextChunk{Text: "partial "}, chunks[0])
}

func TestRunExhaustsRetries(t *testing.T) {
	cfg := config.DefaultConfig()
	stub := model.NewStubModel()
	for i := 0; i <= cfg.Inference.MaxRetries; i++ {
		stub.EnqueueError(errors.New("down"))
	}

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	_, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub), streamRequest())
	require.Error(t, err)
	assert.Equal(t, cfg.Inference.MaxRetries+1, stub.CallCount())
}

func TestRunBudgetBoundsToolRounds(t *testing.T) {
	search := tool.NewLiteratureSearchTool(&tool.StaticSearchProvider{})
	stub := model.NewStubModel()
	for i := 0; i < 10; i++ {
		stub.EnqueueToolCalls("", core.ToolInvocationRequest{
			ID: "c", Name: "search_literature", Arguments: `{"query":"x"}`,
		})
	}

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()
	fixture.RunCtx.Budget = core.NewModelBudget(3)

	_, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub, search), streamRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
	assert.Equal(t, 3, stub.CallCount())
}

func TestRunToolTimeoutContinues(t *testing.T) {
	fast := tool.NewFunctionTool("fast_lookup", "answers immediately", map[string]any{"type": "object"},
		func(*core.ToolContext, map[string]any) (any, error) {
			return "found it", nil
		})
	slow := tool.NewFunctionTool("slow_lookup", "blocks until cancelled", map[string]any{"type": "object"},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			<-tc.Context().Done()
			return nil, tc.Context().Err()
		})

	cfg := config.DefaultConfig()
	cfg.Inference.RetryBaseDelay = time.Millisecond
	cfg.Stream.ToolTimeout = 30 * time.Millisecond
	engine := New(cfg.Stream, cfg.Inference, logging.NoOpLogger{})

	stub := model.NewStubModel()
	stub.EnqueueToolCalls("Checking two sources. ",
		core.ToolInvocationRequest{ID: "c1", Name: "fast_lookup", Arguments: `{}`},
		core.ToolInvocationRequest{ID: "c2", Name: "slow_lookup", Arguments: `{}`},
	)
	stub.EnqueueText("One source answered in time.")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	result, err := engine.Run(fixture.RunCtx, academicDef(stub, fast, slow), streamRequest())
	require.NoError(t, err)

	// The timed-out call becomes a failure payload; the round still reaches
	// the continuation.
	assert.Equal(t, "Checking two sources. One source answered in time.", result.Text)
	require.Len(t, result.ToolResults, 2)
	assert.False(t, result.ToolResults[0].Failed())
	assert.Equal(t, "found it", result.ToolResults[0].Payload)
	require.True(t, result.ToolResults[1].Failed())
	assert.Contains(t, result.ToolResults[1].Error, tool.CodeTimeout)

	var completed core.ProgressChunk
	for _, ch := range fixture.DrainChunks() {
		if pc, ok := ch.(core.ProgressChunk); ok && pc.Stage == core.ProgressToolCompleted {
			completed = pc
		}
	}
	assert.Equal(t, 1, completed.Succeeded)
	assert.Equal(t, 1, completed.Failed)
}

func TestRunFailedToolReportedNotFatal(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "fails", map[string]any{"type": "object"},
		func(*core.ToolContext, map[string]any) (any, error) {
			return nil, errors.New("nope")
		})
	stub := model.NewStubModel()
	stub.EnqueueToolCalls("", core.ToolInvocationRequest{ID: "c1", Name: "boom", Arguments: `{}`})
	stub.EnqueueText("handled the failure")

	fixture := testutil.NewRunContextFixture(core.NewSession("s1"), "q")
	defer fixture.Cancel()

	result, err := newTestEngine().Run(fixture.RunCtx, academicDef(stub, boom), streamRequest())
	require.NoError(t, err)

	require.Len(t, result.ToolResults, 1)
	assert.True(t, result.ToolResults[0].Failed())

	var completed core.ProgressChunk
	for _, ch := range fixture.DrainChunks() {
		if pc, ok := ch.(core.ProgressChunk); ok && pc.Stage == core.ProgressToolCompleted {
			completed = pc
		}
	}
	assert.Equal(t, 1, completed.Failed)
	assert.Equal(t, 0, completed.Succeeded)
}
