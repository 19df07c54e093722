package intent

import (
	"fmt"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
)

// Signals carries the contextual inputs to a routing decision that do not
// come from the classification itself.
type Signals struct {
	// PendingAttachments is true when uploaded documents await processing.
	PendingAttachments bool
	// CompressionApplied is true when the context window was compressed.
	CompressionApplied bool
}

// Decision is the scored outcome for one turn. Exactly one of Accepted and
// ClarificationNeeded is true.
type Decision struct {
	Handler             core.HandlerKind
	Combined            float64
	Threshold           float64
	Accepted            bool
	ClarificationNeeded bool
	ForcedByAttachments bool
	// ExplicitSwitch marks a literal mode change request, which bypasses
	// classification and is not recorded as a conversation turn.
	ExplicitSwitch bool
	Fallback       bool
	Rationale      string
}

// Scorer combines intent and entity confidence and compares the result
// against a dynamically adjusted threshold. Scoring is deterministic: the
// same classification and signals always produce the same decision.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer constructs a scorer over the tuned constants.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates a classification for the proposed handler definition.
func (s *Scorer) Score(def *handler.Definition, res *core.ClassificationResult, sig Signals) Decision {
	combined := s.combine(def, res)
	threshold := s.threshold(def, res)

	d := Decision{
		Handler:   def.Kind,
		Combined:  combined,
		Threshold: threshold,
		Rationale: res.Rationale,
	}

	switch {
	case combined >= threshold:
		d.Accepted = true
	case s.cfg.AttachmentOverride && sig.PendingAttachments &&
		combined >= threshold-s.cfg.AttachmentOverrideBand:
		// Pending documents break the tie just below threshold toward the
		// documentation handler.
		d.Handler = core.HandlerAcademic
		d.Accepted = true
		d.ForcedByAttachments = true
	default:
		d.ClarificationNeeded = true
	}
	return d
}

// FallbackDecision produces the synthetic accepted decision used when
// classification degrades (model failure, no routing action).
func (s *Scorer) FallbackDecision(fallback *handler.Definition, reason string) Decision {
	return Decision{
		Handler:   fallback.Kind,
		Combined:  s.cfg.FallbackConfidence,
		Threshold: s.cfg.BaseThreshold,
		Accepted:  true,
		Fallback:  true,
		Rationale: fmt.Sprintf("degraded to %s: %s", fallback.Name, reason),
	}
}

// combine blends raw intent confidence with entity extraction confidence
// using the handler's weights. Without entities the intent confidence
// stands alone.
func (s *Scorer) combine(def *handler.Definition, res *core.ClassificationResult) float64 {
	if len(res.Entities) == 0 {
		return clamp01(res.Confidence)
	}

	// Primary entities weigh double; specialized ones get a small boost.
	var sum, weight float64
	for _, e := range res.Entities {
		w := 1.0
		if e.Primary {
			w = 2.0
		}
		conf := e.Confidence
		if def.HasSpecialized(e.Kind) {
			conf = clamp01(conf + 0.10)
		}
		sum += w * conf
		weight += w
	}
	entityScore := sum / weight

	return clamp01(def.IntentWeight*res.Confidence + def.EntityWeight*entityScore)
}

// threshold computes the adjusted acceptance threshold for this turn:
// the base lowered by the handler offset, entity density and specialized
// entity presence, raised again when the raw intent confidence is marginal,
// and clamped at the floor.
func (s *Scorer) threshold(def *handler.Definition, res *core.ClassificationResult) float64 {
	t := s.cfg.BaseThreshold - def.ThresholdOffset

	density := s.cfg.DensityBonusStep * float64(len(res.Entities))
	if density > s.cfg.DensityBonusCap {
		density = s.cfg.DensityBonusCap
	}
	t -= density

	for _, e := range res.Entities {
		if def.HasSpecialized(e.Kind) {
			t -= s.cfg.SpecializedBonus
			break
		}
	}

	switch {
	case res.Confidence >= s.cfg.QualityHigh:
		t -= s.cfg.QualityBonus
	case res.Confidence <= s.cfg.QualityMarginal:
		t += s.cfg.QualityPenalty
	}

	if t < s.cfg.ThresholdFloor {
		t = s.cfg.ThresholdFloor
	}
	return t
}
