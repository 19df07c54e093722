// Package stream implements the streaming execution engine: it forwards
// model text deltas as they arrive, buffers mid-stream tool invocation
// requests, executes them in bounded parallel and merges the continuation
// into one ordered chunk stream.
package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
)

// Phase tracks the engine's position in the turn lifecycle.
type Phase int

const (
	// PhaseInitial covers the first generation call up to the first tool
	// invocation request or completion.
	PhaseInitial Phase = iota
	// PhaseAwaitingTools covers buffered tool execution.
	PhaseAwaitingTools
	// PhaseContinuation covers generation resumed over tool results.
	PhaseContinuation
	// PhaseDone marks a completed turn.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseAwaitingTools:
		return "awaiting_tools"
	case PhaseContinuation:
		return "continuation"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Result is the aggregate outcome of one streamed turn, used by the router
// to append the handler turn and tool annotations to the session.
type Result struct {
	Text        string
	ToolResults []core.ToolResult
	Phase       Phase
}

// Engine drives one handler generation per turn. It is stateless across
// turns and safe for concurrent use; all per-turn state lives on the stack.
type Engine struct {
	cfg    config.StreamConfig
	infer  config.InferenceConfig
	exec   *executor
	logger logging.Logger
}

// New constructs an engine with the given stream and inference bounds.
func New(cfg config.StreamConfig, infer config.InferenceConfig, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{
		cfg:    cfg,
		infer:  infer,
		exec:   newExecutor(executorConfig{maxParallel: cfg.MaxInflightTools, timeout: cfg.ToolTimeout}),
		logger: logger,
	}
}

// Run executes the turn against the handler's model, emitting chunks on the
// run context as they become available. Transient inference failures are
// retried silently only before the first chunk reaches the caller; once
// streaming has begun a failure is surfaced to the router.
//
// Every generation round counts against the run's model call budget, so a
// model that keeps requesting tools terminates after a bounded number of
// rounds.
func (e *Engine) Run(runCtx *core.RunContext, def *handler.Definition, req model.Request) (*Result, error) {
	var (
		text        strings.Builder
		toolResults []core.ToolResult
		phase       = PhaseInitial
		streamed    bool
	)

	for {
		if err := runCtx.Budget.Spend(); err != nil {
			return nil, fmt.Errorf("model call budget: %w", err)
		}

		final, err := e.generate(runCtx, def, req, &text, &streamed, phase)
		if err != nil {
			return nil, err
		}

		if len(final.ToolCalls) == 0 {
			break
		}

		phase = PhaseAwaitingTools
		runCtx.LogInfo("tools.buffered", "phase", phase.String(), "count", len(final.ToolCalls))

		names := make([]string, 0, len(final.ToolCalls))
		for _, call := range final.ToolCalls {
			names = append(names, call.Name)
		}
		if err := runCtx.EmitChunk(core.ProgressChunk{Stage: core.ProgressToolStarted, Tools: names}); err != nil {
			return nil, err
		}
		streamed = true

		results := e.exec.Execute(runCtx, def.Tools, final.ToolCalls)
		toolResults = append(toolResults, results...)

		succeeded, failed := 0, 0
		for _, r := range results {
			if r.Failed() {
				failed++
			} else {
				succeeded++
			}
		}
		if err := runCtx.EmitChunk(core.ProgressChunk{
			Stage:     core.ProgressToolCompleted,
			Tools:     names,
			Succeeded: succeeded,
			Failed:    failed,
		}); err != nil {
			return nil, err
		}

		req = continuationRequest(req, final.ToolCalls, results)
		phase = PhaseContinuation
	}

	// A turn that produced no text still closes the stream with an explicit
	// empty terminal chunk.
	if text.Len() == 0 {
		if err := runCtx.EmitChunk(core.TextChunk{}); err != nil {
			return nil, err
		}
	}

	return &Result{Text: text.String(), ToolResults: toolResults, Phase: PhaseDone}, nil
}

// generate performs one model call, forwarding text deltas immediately and
// returning the final response. Retries apply only while nothing has been
// forwarded yet.
func (e *Engine) generate(
	runCtx *core.RunContext,
	def *handler.Definition,
	req model.Request,
	text *strings.Builder,
	streamed *bool,
	phase Phase,
) (*model.Response, error) {
	var final *model.Response

	attempt := func() error {
		respCh, errCh := def.Model.Generate(runCtx.Context, req)

		for respCh != nil || errCh != nil {
			select {
			case r, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}
				if r.Partial && r.Text != "" {
					if err := runCtx.EmitChunk(core.TextChunk{Text: r.Text}); err != nil {
						return backoff.Permanent(err)
					}
					text.WriteString(r.Text)
					*streamed = true
				}
				if !r.Partial {
					final = &r
					if !req.Stream && r.Text != "" {
						// Non-streaming responses carry the whole text on the
						// final chunk.
						if err := runCtx.EmitChunk(core.TextChunk{Text: r.Text}); err != nil {
							return backoff.Permanent(err)
						}
						text.WriteString(r.Text)
						*streamed = true
					}
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					if *streamed || runCtx.Err() != nil {
						return backoff.Permanent(err)
					}
					return err
				}
			case <-runCtx.Done():
				return backoff.Permanent(runCtx.Err())
			}
		}
		if final == nil {
			return errors.New("model produced no final response")
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(e.infer.RetryBaseDelay),
	), uint64(e.infer.MaxRetries))

	if err := backoff.Retry(attempt, backoff.WithContext(policy, runCtx.Context)); err != nil {
		e.logger.Error("generation failed",
			"session_id", runCtx.SessionID,
			"run_id", runCtx.RunID,
			"phase", phase.String(),
			"error", err.Error(),
		)
		return nil, err
	}
	return final, nil
}

// continuationRequest extends the conversation with the tool calls and their
// results so the resumed generation sees what happened.
func continuationRequest(req model.Request, calls []core.ToolInvocationRequest, results []core.ToolResult) model.Request {
	callParts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		callParts = append(callParts, core.ToolCallPart{Call: c})
	}
	resultParts := make([]core.Part, 0, len(results))
	for _, r := range results {
		resultParts = append(resultParts, core.ToolResultPart{Result: r})
	}

	next := req
	next.Messages = append(append([]model.Message{}, req.Messages...),
		model.Message{Role: model.RoleAssistant, Parts: callParts},
		model.Message{Role: model.RoleTool, Parts: resultParts},
	)
	return next
}
