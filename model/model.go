package model

import (
	"context"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// Message is one role-tagged content unit of a model request, converted to
// provider message formats by the adapters.
type Message struct {
	Role  string      `json:"role"` // user, handler, tool, system
	Parts []core.Part `json:"parts"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// For classification the same mechanism carries the decision grammar: one
// definition per allowed structured output ("action").
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Tool choice modes for a request.
const (
	// ToolChoiceAuto lets the model decide whether to invoke tools.
	ToolChoiceAuto = "auto"
	// ToolChoiceRequired constrains the model to emit structured outputs
	// only. Used by the combined classification call.
	ToolChoiceRequired = "required"
)

// Request captures the normalized model input produced by the orchestration
// layer.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	ToolChoice   string           `json:"tool_choice,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	MaxTokens    int64            `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by the inference service.
// In streaming mode Text carries an incremental delta on partial chunks and
// is empty on the final chunk; in non-streaming mode the single final chunk
// carries the complete text. Tool invocation requests always arrive fully
// aggregated on the final chunk.
type Response struct {
	Partial      bool                         `json:"partial"`
	Text         string                       `json:"text,omitempty"`
	ToolCalls    []core.ToolInvocationRequest `json:"tool_calls,omitempty"`
	FinishReason string                       `json:"finish_reason,omitempty"`
	Usage        *TokenUsage                  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "stub", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal inference-service contract required by the engine.
// Generate returns a response channel and an error channel; both are closed
// when the call terminates. Every call boundary is a suspension point.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
