// Package compress bounds the conversation context sent to the inference
// service per turn. Long histories are reduced to the trailing exchanges
// plus compact references extracted from the dropped turns, so routing cost
// stays flat as sessions grow.
package compress

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
)

// callbackMarkers are demonstrative phrases that signal a cross-turn
// callback worth preserving when the turn carrying the antecedent is
// dropped. Spanish forms included since sessions mix both languages.
var callbackMarkers = []string{
	"that approach", "the approach", "that plan", "the plan we",
	"that technique", "the file", "that document", "the document we",
	"as we discussed", "we talked about", "you mentioned",
	"ese enfoque", "el plan que", "ese documento", "como hablamos",
}

const snippetLimit = 160

// Compressor selects the bounded subsequence of history used for
// classification and generation. It is stateless and safe for concurrent
// use across sessions.
type Compressor struct {
	cfg    config.CompressorConfig
	logger logging.Logger
}

// New constructs a Compressor with the given bounds.
func New(cfg config.CompressorConfig, logger logging.Logger) *Compressor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Compressor{cfg: cfg, logger: logger}
}

// Compress returns the context window for the next model call. Short
// histories pass through untouched; once the estimate crosses the target the
// trailing exchanges are kept verbatim and references are extracted from
// what gets dropped. The kept history fits the target; the incoming turn is
// never cut, so only an oversized incoming turn can push the estimate past
// the target.
func (c *Compressor) Compress(turns []core.Turn, incoming string) core.CompressedContext {
	incomingTokens := EstimateTokens(incoming)
	total := EstimateTurns(turns) + incomingTokens

	if total <= c.cfg.TargetTokens {
		kept := make([]core.Turn, len(turns))
		copy(kept, turns)
		return core.CompressedContext{Turns: kept, TokenEstimate: total, Compressed: false}
	}

	keepExchanges := c.cfg.RecentExchanges
	if total >= c.cfg.HighWaterTokens+c.cfg.TargetTokens {
		keepExchanges = c.cfg.MinRecentExchanges
	}

	cut := exchangeBoundary(turns, keepExchanges)
	dropped := turns[:cut]
	kept := make([]core.Turn, len(turns)-cut)
	copy(kept, turns[cut:])

	// The trailing window can itself exceed the target for very long turns.
	// An incoming turn consuming the whole target leaves no room for
	// history at all.
	budget := c.cfg.TargetTokens - incomingTokens
	for len(kept) > 1 && EstimateTurns(kept) > budget {
		dropped = turns[:len(turns)-len(kept)+1]
		kept = kept[1:]
	}
	if len(kept) == 1 {
		if budget <= perTurnOverhead {
			dropped = turns
			kept = nil
		} else if EstimateTurn(kept[0]) > budget {
			kept[0] = truncateTurn(kept[0], budget)
		}
	}

	refs := c.extractReferences(dropped, incoming)

	estimate := EstimateTurns(kept) + incomingTokens
	c.logger.Debug("context compressed",
		"dropped_turns", len(dropped),
		"kept_turns", len(kept),
		"references", len(refs),
		"token_estimate", estimate,
	)

	return core.CompressedContext{
		Turns:         kept,
		References:    refs,
		TokenEstimate: estimate,
		Compressed:    true,
	}
}

// exchangeBoundary returns the index of the first turn to keep so that the
// suffix contains the last n user-initiated exchanges.
func exchangeBoundary(turns []core.Turn, n int) int {
	if n <= 0 {
		return len(turns)
	}
	seen := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == core.RoleUser {
			seen++
			if seen == n {
				return i
			}
		}
	}
	return 0
}

// truncateTurn shortens a single oversized turn's text to fit the token
// budget, keeping the tail where the most recent content lives. The cut
// lands on a rune boundary.
func truncateTurn(t core.Turn, budget int) core.Turn {
	text := t.Text()
	maxChars := (budget - perTurnOverhead) * 4
	if maxChars < 0 {
		maxChars = 0
	}
	if len(text) > maxChars {
		cut := len(text) - maxChars
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}
		text = text[cut:]
	}
	out := t
	out.Parts = []core.Part{core.TextPart{Text: text}}
	return out
}

// extractReferences scans the dropped prefix for content worth carrying
// forward: explicit callbacks, attachment mentions and topically overlapping
// turns. Relevance combines lexical overlap with recency decay.
func (c *Compressor) extractReferences(dropped []core.Turn, incoming string) []core.ContextualReference {
	if len(dropped) == 0 {
		return nil
	}

	incomingTerms := termSet(incoming)
	seen := map[string]bool{}
	var refs []core.ContextualReference

	add := func(kind, snippet string, relevance float64) {
		snippet = clip(snippet)
		if snippet == "" || seen[snippet] || relevance < c.cfg.MinRelevance {
			return
		}
		seen[snippet] = true
		refs = append(refs, core.ContextualReference{Kind: kind, Snippet: snippet, Relevance: relevance})
	}

	for i, t := range dropped {
		// Later dropped turns decay less.
		decay := 0.5 + 0.5*float64(i+1)/float64(len(dropped))
		text := t.Text()
		lower := strings.ToLower(text)

		for _, id := range t.AttachmentIDs() {
			add(core.ReferenceAttachment, "attachment "+id, decay)
		}

		if text == "" {
			continue
		}

		marked := false
		for _, marker := range callbackMarkers {
			if strings.Contains(lower, marker) {
				add(core.ReferenceCallback, text, decay)
				marked = true
				break
			}
		}
		if marked {
			continue
		}

		if overlap := lexicalOverlap(termSet(text), incomingTerms); overlap > 0 {
			add(core.ReferenceTopic, text, overlap*decay)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Relevance > refs[j].Relevance })
	if len(refs) > c.cfg.MaxReferences {
		refs = refs[:c.cfg.MaxReferences]
	}
	return refs
}

// clip bounds a snippet to a readable length, cutting on a word boundary
// and never inside a rune.
func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetLimit {
		return s
	}
	end := snippetLimit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if idx := strings.LastIndexByte(cut, ' '); idx > snippetLimit/2 {
		cut = cut[:idx]
	}
	return cut
}

// termSet tokenizes text into a lowercase term set, skipping short stopword
// sized tokens.
func termSet(text string) map[string]struct{} {
	terms := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?()[]\"'¿¡")
		if len(f) < 4 {
			continue
		}
		terms[f] = struct{}{}
	}
	return terms
}

// lexicalOverlap returns the share of the incoming turn's terms present in
// the candidate.
func lexicalOverlap(candidate, incoming map[string]struct{}) float64 {
	if len(incoming) == 0 {
		return 0
	}
	hits := 0
	for term := range incoming {
		if _, ok := candidate[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(incoming))
}
