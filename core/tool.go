package core

// ToolInvocationRequest is a structured request, emitted mid-generation, for
// the orchestration layer to call an external capability. Ephemeral; scoped
// to one streaming execution.
type ToolInvocationRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON payload
}

// ToolResult is the outcome of a ToolInvocationRequest. A failed invocation
// carries a structured error message rather than aborting the turn.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the invocation produced an error payload.
func (r ToolResult) Failed() bool { return r.Error != "" }
