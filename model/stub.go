package model

import (
	"context"
	"sync"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// StubModel is a deterministic scripted Model for tests. Each Generate call
// consumes the next enqueued script in FIFO order; text responses are
// streamed rune-delta by rune-delta when the request asks for streaming.
type StubModel struct {
	mu       sync.Mutex
	scripts  [][]Response
	errs     []error
	requests []Request
}

// NewStubModel constructs an empty stub. Generate on an exhausted stub emits
// a single empty final response.
func NewStubModel() *StubModel { return &StubModel{} }

// EnqueueText scripts a plain streamed text completion.
func (m *StubModel) EnqueueText(text string) {
	final := Response{FinishReason: "stop"}
	m.Enqueue([]Response{{Partial: true, Text: text}, final})
}

// EnqueueToolCalls scripts a completion that emits tool invocation requests
// after optional leading text.
func (m *StubModel) EnqueueToolCalls(text string, calls ...core.ToolInvocationRequest) {
	var script []Response
	if text != "" {
		script = append(script, Response{Partial: true, Text: text})
	}
	script = append(script, Response{FinishReason: "tool_calls", ToolCalls: calls})
	m.Enqueue(script)
}

// Enqueue scripts one Generate call's full response sequence.
func (m *StubModel) Enqueue(script []Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script)
	m.errs = append(m.errs, nil)
}

// EnqueueError scripts a Generate call that fails immediately.
func (m *StubModel) EnqueueError(err error) {
	m.EnqueueWithError(nil, err)
}

// EnqueueWithError scripts a Generate call that emits the given responses
// and then fails. Used to exercise mid-stream failures.
func (m *StubModel) EnqueueWithError(script []Response, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script)
	m.errs = append(m.errs, err)
}

// Requests returns all requests seen so far, in call order.
func (m *StubModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// CallCount returns the number of Generate calls made.
func (m *StubModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *StubModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var script []Response
	var scriptErr error
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		scriptErr = m.errs[0]
		m.scripts = m.scripts[1:]
		m.errs = m.errs[1:]
	}
	m.mu.Unlock()

	out := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if len(script) == 0 && scriptErr == nil {
			out <- Response{FinishReason: "stop"}
			return
		}
		for _, resp := range script {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- resp:
			}
		}
		if scriptErr != nil {
			errCh <- scriptErr
		}
	}()

	return out, errCh
}

// Info implements Model.
func (m *StubModel) Info() Info {
	return Info{Name: "stub", Provider: "stub", SupportsTools: true}
}
