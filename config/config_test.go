package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "socratic", cfg.DefaultHandler)
	assert.Len(t, cfg.Handlers, 3)
	assert.Contains(t, cfg.Handlers, "clinical")
	assert.Contains(t, cfg.Handlers, "academic")
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copilot.yaml")
	data := `
default_handler: clinical
scoring:
  base_threshold: 0.70
compressor:
  target_tokens: 4000
inference:
  retry_base_delay: 50ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clinical", cfg.DefaultHandler)
	assert.InDelta(t, 0.70, cfg.Scoring.BaseThreshold, 1e-9)
	assert.Equal(t, 4000, cfg.Compressor.TargetTokens)
	assert.Equal(t, 50*time.Millisecond, cfg.Inference.RetryBaseDelay)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.35, cfg.Scoring.ThresholdFloor, 1e-9)
	assert.Equal(t, 4, cfg.Stream.MaxInflightTools)
	assert.Len(t, cfg.Handlers, 3)
}

func TestLoadRejectsInvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copilot.yaml")
	data := "default_handler: concierge\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concierge")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateWeightSum(t *testing.T) {
	cfg := DefaultConfig()
	h := cfg.Handlers["clinical"]
	h.IntentWeight = 0.5
	h.EntityWeight = 0.4
	cfg.Handlers["clinical"] = h

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1")
}

func TestValidateFloorAboveBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.ThresholdFloor = 0.90

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold floor")
}

func TestValidateExchangeBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compressor.MinRecentExchanges = 10

	require.Error(t, cfg.Validate())
}
