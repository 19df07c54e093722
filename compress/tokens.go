package compress

import "github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"

// perTurnOverhead approximates the serialization envelope around each turn
// in a model request.
const perTurnOverhead = 4

// EstimateTokens approximates the token count of a text span. The inference
// services used here average roughly four characters per token for mixed
// English and Spanish clinical text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateTurn approximates the token footprint of one turn including tool
// call and result payload text.
func EstimateTurn(t core.Turn) int {
	n := perTurnOverhead
	n += EstimateTokens(t.Text())
	for _, call := range t.ToolCalls() {
		n += EstimateTokens(call.Name) + EstimateTokens(call.Arguments)
	}
	for _, r := range t.ToolResults() {
		n += EstimateTokens(r.Name) + EstimateTokens(r.Error)
	}
	n += len(t.AttachmentIDs()) * perTurnOverhead
	return n
}

// EstimateTurns sums the footprint of a turn slice.
func EstimateTurns(turns []core.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTurn(t)
	}
	return total
}
