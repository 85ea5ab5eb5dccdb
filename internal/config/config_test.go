package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, 0.95, cfg.Validation.MinVerifiedRatio)
	assert.Equal(t, 3, cfg.Validation.MinLiveSources)
	assert.Equal(t, 5, cfg.Validation.MinCitations)
	assert.Equal(t, 2, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 5, cfg.Pools.Search.MaxConcurrent)
	assert.Equal(t, "inkforge-pipeline", cfg.Temporal.TaskQueue)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://provider:9000"
  max_retries: 5
validation:
  min_verified_ratio: 0.8
pipeline:
  max_iterations: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://provider:9000", cfg.Provider.BaseURL)
	assert.Equal(t, 5, cfg.Provider.MaxRetries)
	assert.Equal(t, 0.8, cfg.Validation.MinVerifiedRatio)
	assert.Equal(t, 4, cfg.Pipeline.MaxIterations)
}

func TestLoadRequiresProviderURL(t *testing.T) {
	t.Setenv("INKFORGE_PROVIDER_URL", "")
	t.Setenv("INKFORGE_PROVIDER_BASE_URL", "")

	path := writeConfig(t, `
search:
  top_k: 4
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.base_url")
}

func TestLoadProviderURLFromEnv(t *testing.T) {
	t.Setenv("INKFORGE_PROVIDER_URL", "http://from-env:8000")

	path := writeConfig(t, `
search:
  top_k: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.Provider.BaseURL)
}

func TestValidateRejectsBadRatio(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8000"
validation:
  min_verified_ratio: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_verified_ratio")
}

func TestValidateRejectsNonPositivePools(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: "http://localhost:8000"
pools:
  content:
    max_concurrent: 0
`)
	_, err := Load(path)
	assert.Error(t, err)
}
