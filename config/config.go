// Package config defines the explicit configuration struct constructed once
// at process start and injected into the orchestration components. All
// empirically tuned routing constants live here rather than in code, so they
// can be revisited without touching the scorer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScoringConfig holds the confidence scorer and threshold engine constants.
type ScoringConfig struct {
	// BaseThreshold is the starting acceptance threshold before per-handler
	// and contextual adjustments.
	BaseThreshold float64 `yaml:"base_threshold"`
	// ThresholdFloor clamps the adjusted threshold from below.
	ThresholdFloor float64 `yaml:"threshold_floor"`
	// DensityBonusStep lowers the threshold per extracted entity.
	DensityBonusStep float64 `yaml:"density_bonus_step"`
	// DensityBonusCap bounds the total entity density bonus.
	DensityBonusCap float64 `yaml:"density_bonus_cap"`
	// SpecializedBonus lowers the threshold when entities of a
	// handler-specific category are present.
	SpecializedBonus float64 `yaml:"specialized_bonus"`
	// QualityHigh / QualityMarginal bracket the raw intent confidence bands
	// that adjust the threshold: very high confidence lowers it by
	// QualityBonus, marginal confidence raises it by QualityPenalty.
	QualityHigh     float64 `yaml:"quality_high"`
	QualityMarginal float64 `yaml:"quality_marginal"`
	QualityBonus    float64 `yaml:"quality_bonus"`
	QualityPenalty  float64 `yaml:"quality_penalty"`
	// PrimaryCutoff partitions entities into primary/secondary by salience.
	PrimaryCutoff float64 `yaml:"primary_cutoff"`
	// IntentBaseline is the prior baseline for derived intent confidence.
	// Kept low enough that a schema-conforming response with no keyword
	// overlap still lands below every adjusted threshold.
	IntentBaseline float64 `yaml:"intent_baseline"`
	// AttachmentOverride enables force-routing borderline turns to the
	// documentation handler while attachments are pending.
	AttachmentOverride bool `yaml:"attachment_override"`
	// AttachmentOverrideBand is the width of the band just below threshold
	// in which the override applies.
	AttachmentOverrideBand float64 `yaml:"attachment_override_band"`
	// FallbackConfidence is the synthetic confidence attached when
	// classification degrades to the fallback handler.
	FallbackConfidence float64 `yaml:"fallback_confidence"`
}

// CompressorConfig bounds the context window sent per turn.
type CompressorConfig struct {
	// RecentExchanges is the number of trailing exchanges kept verbatim.
	RecentExchanges int `yaml:"recent_exchanges"`
	// MinRecentExchanges replaces RecentExchanges once the estimate passes
	// the high-water mark.
	MinRecentExchanges int `yaml:"min_recent_exchanges"`
	// TargetTokens is the hard bound on the compressed context estimate.
	TargetTokens int `yaml:"target_tokens"`
	// HighWaterTokens triggers the aggressive retention policy.
	HighWaterTokens int `yaml:"high_water_tokens"`
	// MinRelevance is the cutoff for contextual reference extraction.
	MinRelevance float64 `yaml:"min_relevance"`
	// MaxReferences caps the extracted reference list.
	MaxReferences int `yaml:"max_references"`
}

// StreamConfig tunes the streaming execution engine.
type StreamConfig struct {
	// MaxInflightTools bounds concurrent tool execution within one turn.
	MaxInflightTools int `yaml:"max_inflight_tools"`
	// ToolTimeout bounds each tool invocation; a timeout yields a failure
	// payload, not a fatal error.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// ChunkBufferSize sets channel buffering for output chunks.
	ChunkBufferSize int `yaml:"chunk_buffer_size"`
}

// InferenceConfig governs calls to the inference service.
type InferenceConfig struct {
	// MaxRetries bounds silent retries on inference-service failures before
	// an error chunk is surfaced.
	MaxRetries int `yaml:"max_retries"`
	// RetryBaseDelay seeds the exponential backoff between retries.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// RequestsPerSecond / Burst configure the shared rate limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// MaxModelCallsPerTurn caps inference calls spent on a single turn.
	MaxModelCallsPerTurn int `yaml:"max_model_calls_per_turn"`
}

// HandlerConfig describes one member of the closed handler set.
type HandlerConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	// Keywords feed lexical overlap scoring for intent confidence.
	Keywords []string `yaml:"keywords"`
	// IntentWeight and EntityWeight must sum to 1; handlers needing more
	// semantic nuance weight entities higher.
	IntentWeight float64 `yaml:"intent_weight"`
	EntityWeight float64 `yaml:"entity_weight"`
	// ThresholdOffset lowers the acceptance threshold for this handler.
	ThresholdOffset float64 `yaml:"threshold_offset"`
	// SpecializedEntities names the entity kinds that trigger the
	// specialized bonus for this handler.
	SpecializedEntities []string `yaml:"specialized_entities"`
	// Model parameters for this handler's generation calls.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	// Tools lists the tool names from the catalog available to the handler.
	Tools []string `yaml:"tools"`
}

// Config is the root configuration injected into the router at construction.
type Config struct {
	// DefaultHandler receives turns when classification degrades.
	DefaultHandler string                   `yaml:"default_handler"`
	Scoring        ScoringConfig            `yaml:"scoring"`
	Compressor     CompressorConfig         `yaml:"compressor"`
	Stream         StreamConfig             `yaml:"stream"`
	Inference      InferenceConfig          `yaml:"inference"`
	Handlers       map[string]HandlerConfig `yaml:"handlers"`
}

// DefaultConfig returns the tuned defaults for the three-handler set.
func DefaultConfig() *Config {
	return &Config{
		DefaultHandler: "socratic",
		Scoring: ScoringConfig{
			BaseThreshold:          0.65,
			ThresholdFloor:         0.35,
			DensityBonusStep:       0.03,
			DensityBonusCap:        0.09,
			SpecializedBonus:       0.05,
			QualityHigh:            0.85,
			QualityMarginal:        0.50,
			QualityBonus:           0.05,
			QualityPenalty:         0.05,
			PrimaryCutoff:          0.60,
			IntentBaseline:         0.30,
			AttachmentOverride:     true,
			AttachmentOverrideBand: 0.08,
			FallbackConfidence:     0.30,
		},
		Compressor: CompressorConfig{
			RecentExchanges:    4,
			MinRecentExchanges: 2,
			TargetTokens:       6000,
			HighWaterTokens:    4500,
			MinRelevance:       0.35,
			MaxReferences:      6,
		},
		Stream: StreamConfig{
			MaxInflightTools: 4,
			ToolTimeout:      20 * time.Second,
			ChunkBufferSize:  100,
		},
		Inference: InferenceConfig{
			MaxRetries:           2,
			RetryBaseDelay:       500 * time.Millisecond,
			RequestsPerSecond:    4,
			Burst:                8,
			MaxModelCallsPerTurn: 6,
		},
		Handlers: map[string]HandlerConfig{
			"socratic": {
				SystemPrompt: "You guide the clinician through reflective, question-led supervision dialogue.",
				Keywords: []string{
					"think", "reflect", "explore", "why", "feel", "perspective",
					"supervision", "stuck", "dilemma",
				},
				IntentWeight:    0.75,
				EntityWeight:    0.25,
				ThresholdOffset: 0.05,
				Temperature:     0.8,
				MaxTokens:       2048,
			},
			"clinical": {
				SystemPrompt: "You support case conceptualization and clinical reasoning grounded in the shared history.",
				Keywords: []string{
					"patient", "case", "diagnosis", "symptom", "treatment",
					"intervention", "assessment", "formulation",
				},
				IntentWeight:        0.60,
				EntityWeight:        0.40,
				ThresholdOffset:     0.03,
				SpecializedEntities: []string{"condition", "intervention", "instrument"},
				Temperature:         0.5,
				MaxTokens:           2048,
			},
			"academic": {
				SystemPrompt: "You assist with documentation, literature review and evidence synthesis.",
				Keywords: []string{
					"research", "literature", "study", "paper", "document",
					"reference", "evidence", "citation", "review",
				},
				IntentWeight:        0.55,
				EntityWeight:        0.45,
				ThresholdOffset:     0.02,
				SpecializedEntities: []string{"document", "topic"},
				Temperature:         0.3,
				MaxTokens:           3072,
				Tools:               []string{"search_literature"},
			},
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns defaults
// unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural invariants the scorer depends on.
func (c *Config) Validate() error {
	if _, ok := c.Handlers[c.DefaultHandler]; !ok {
		return fmt.Errorf("default handler %q has no handler config", c.DefaultHandler)
	}
	for name, h := range c.Handlers {
		sum := h.IntentWeight + h.EntityWeight
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("handler %q weights must sum to 1, got %.3f", name, sum)
		}
	}
	if c.Scoring.ThresholdFloor > c.Scoring.BaseThreshold {
		return fmt.Errorf("threshold floor %.2f above base threshold %.2f",
			c.Scoring.ThresholdFloor, c.Scoring.BaseThreshold)
	}
	if c.Compressor.MinRecentExchanges > c.Compressor.RecentExchanges {
		return fmt.Errorf("min recent exchanges exceeds recent exchanges")
	}
	return nil
}
