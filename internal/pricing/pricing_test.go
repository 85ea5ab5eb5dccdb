package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkforge/inkforge/internal/models"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-5-nano", tbl.ModelForTier(models.TierSmall))
	assert.Equal(t, "gpt-5", tbl.ModelForTier(models.TierLarge))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	tbl, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", tbl.ModelForTier(models.TierMedium))
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  large:
    id: custom-xl
    input_per_1k: 0.002
    output_per_1k: 0.02
`), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-xl", tbl.ModelForTier(models.TierLarge))
	// Unmentioned tiers keep defaults.
	assert.Equal(t, "gpt-5-nano", tbl.ModelForTier(models.TierSmall))

	cost := tbl.Cost(models.TierLarge, models.TokenUsage{InputTokens: 1000, OutputTokens: 1000})
	assert.InDelta(t, 0.022, cost, 1e-9)
}

func TestLoadRejectsMissingModelID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  small:
    input_per_1k: 0.001
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestCostUnknownTierFallsBackToSmall(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	usage := models.TokenUsage{InputTokens: 1000, OutputTokens: 1000}
	assert.InDelta(t, tbl.Cost(models.TierSmall, usage), tbl.Cost(models.ModelTier("huge"), usage), 1e-12)
}
