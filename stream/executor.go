package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/tool"
)

// executorConfig configures the parallel tool executor.
type executorConfig struct {
	maxParallel int           // 0 or <1 => no explicit limit (len(calls))
	timeout     time.Duration // per-call bound; 0 => no bound
}

// executor runs a buffered batch of tool invocations in bounded parallel and
// returns one result per call in the original request order. It must:
//   - Respect runCtx.Context cancellation between launches
//   - Never panic (recover internally into a failed result)
//   - Produce exactly one ToolResult per incoming invocation
type executor struct {
	cfg executorConfig
}

func newExecutor(cfg executorConfig) *executor { return &executor{cfg: cfg} }

// Execute runs the batch on a detached context so a caller disconnect does
// not abort in-flight work; results are simply discarded by the emitter in
// that case. The per-call timeout still applies.
func (e *executor) Execute(
	runCtx *core.RunContext,
	catalog map[string]tool.Tool,
	calls []core.ToolInvocationRequest,
) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	detached := context.WithoutCancel(runCtx.Context)

	// Fast path: single call, execute inline.
	if n == 1 {
		return []core.ToolResult{e.executeSingle(runCtx, detached, catalog, calls[0])}
	}

	maxPar := e.cfg.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.ToolResult, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if runCtx.Context.Err() != nil { // pre-check cancellation
			results[i] = cancelledResult(calls[i])
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolInvocationRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(runCtx, detached, catalog, call)
		}(i, calls[i])
	}

	wg.Wait()

	runCtx.LogDebug(
		"tools.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *executor) executeSingle(
	runCtx *core.RunContext,
	detached context.Context,
	catalog map[string]tool.Tool,
	call core.ToolInvocationRequest,
) core.ToolResult {
	callCtx := detached
	var cancel context.CancelFunc
	if e.cfg.timeout > 0 {
		callCtx, cancel = context.WithTimeout(detached, e.cfg.timeout)
		defer cancel()
	}

	scoped := runCtx.WithContext(callCtx)
	toolCtx := core.NewToolContext(scoped, call.ID)

	runCtx.LogInfo("tool.start", "tool", call.Name, "call_id", call.ID)

	start := time.Now()
	var (
		payload any
		err     error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("tool.panic", "tool", call.Name, "recover", r)
			}
		}()
		payload, err = invoke(catalog, toolCtx, call)
	}()

	// An expired per-call deadline is reported uniformly as a timeout,
	// whether the tool returned the context error or overran silently.
	if callCtx.Err() == context.DeadlineExceeded {
		err = tool.NewToolError(call.Name, "execution timed out", tool.CodeTimeout)
	}

	runCtx.LogInfo(
		"tool.executed",
		"tool", call.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	result := core.ToolResult{ID: call.ID, Name: call.Name, Payload: payload}
	if err != nil {
		result.Error = err.Error()
		result.Payload = nil
	}
	return result
}

// invoke centralizes tool lookup, argument decoding and execution.
func invoke(catalog map[string]tool.Tool, toolCtx *core.ToolContext, call core.ToolInvocationRequest) (any, error) {
	impl, ok := catalog[call.Name]
	if !ok {
		return nil, tool.NewToolError(call.Name, "tool not found", tool.CodeNotFound)
	}

	var args map[string]any
	if call.Arguments == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, tool.NewToolError(call.Name, fmt.Sprintf("decode arguments: %v", err), tool.CodeValidation)
	}

	return impl.Call(toolCtx, args)
}

func cancelledResult(call core.ToolInvocationRequest) core.ToolResult {
	return core.ToolResult{ID: call.ID, Name: call.Name, Error: "cancelled before execution"}
}

// panicError converts a recovered panic value to an error without losing the
// stack for the log line.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
