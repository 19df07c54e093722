package core

// OutputChunk is one element of the ordered incremental output stream
// delivered to callers of RouteTurn. Concrete chunk types implement the
// unexported isOutputChunk marker enabling a closed set.
type OutputChunk interface{ isOutputChunk() }

// TextChunk carries an incremental text delta from the active handler's
// generation. Within a turn, text chunks arrive strictly in emission order.
// A stream that produced no text at all ends with a single empty TextChunk
// so callers never hang on a silent turn.
type TextChunk struct {
	Text string
}

func (TextChunk) isOutputChunk() {}

// ProgressStage labels out-of-band progress events emitted around tool
// execution. Started and completed events always bracket the corresponding
// execution phase.
type ProgressStage int

const (
	// ProgressToolStarted is emitted once before buffered tool requests execute.
	ProgressToolStarted ProgressStage = iota
	// ProgressToolCompleted is emitted once after all tool requests finished.
	ProgressToolCompleted
)

// String returns the wire label of the stage.
func (s ProgressStage) String() string {
	switch s {
	case ProgressToolStarted:
		return "tool_started"
	case ProgressToolCompleted:
		return "tool_completed"
	}
	return "unknown"
}

// ProgressChunk reports tool execution progress without interrupting the
// logical text stream.
type ProgressChunk struct {
	Stage     ProgressStage
	Tools     []string // tool names in request order
	Succeeded int      // populated on ProgressToolCompleted
	Failed    int      // populated on ProgressToolCompleted
}

func (ProgressChunk) isOutputChunk() {}

// ReferencesChunk surfaces the contextual references that informed this turn
// after compression, so clients can render cross-turn callbacks.
type ReferencesChunk struct {
	References []ContextualReference
}

func (ReferencesChunk) isOutputChunk() {}

// ClarificationChunk flags that combined routing confidence fell below the
// acceptance threshold. The caller should surface a disambiguation prompt;
// the user's turn has already been preserved in history.
type ClarificationChunk struct {
	Proposed HandlerKind // configured fallback handler
	Message  string
}

func (ClarificationChunk) isOutputChunk() {}

// ErrorChunk reports an inference-service failure after bounded retries.
// This is the only user-visible failure category; everything else degrades
// with best-effort continuation.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (ErrorChunk) isOutputChunk() {}
