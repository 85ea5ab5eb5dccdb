package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/models"
)

func testBundle() Bundle {
	return Bundle{
		RunID:   "run-abc",
		Topic:   "solar energy",
		Article: "# Solar\n\nCapacity grew 42% [report](https://example.com/r).\n",
		SEO:     "title: Solar outlook\ndescription: Where solar is heading\nslug: solar-outlook\n",
		Metrics: "word_count: 1800\nreading_time_minutes: 8\n",
		Summary: "- Solar grew fast\n",
		Social:  "twitter: Solar is booming\n",
		Validation: models.ValidationResult{
			Approved:      true,
			VerifiedRatio: 1.0,
			LiveSources:   3,
			CitationCount: 6,
			Verifications: []models.ClaimVerification{
				{
					Claim:   models.Claim{Span: "42%", Type: models.ClaimNumeric, CitationURL: "https://example.com/r"},
					Verdict: models.VerdictVerified,
					Method:  models.MatchExact,
				},
			},
		},
		Sources: map[string]*models.SourceDocument{
			"https://example.com/r": {URL: "https://example.com/r", Content: "ok", Tier: 2, Status: 200},
		},
		Totals: budget.Totals{
			Tokens:  5000,
			CostUSD: 0.12,
			ByRole:  []budget.RoleUsage{{Role: "writer", Calls: 1, InputTokens: 2000, OutputTokens: 3000, CostUSD: 0.12}},
		},
		Iterations:  1,
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteProducesArtifacts(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, zap.NewNop())

	dir, err := w.Write(testBundle())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-abc"), dir)

	for _, name := range []string{"article.md", "summary.md", "social.md", "metadata.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	article, err := os.ReadFile(filepath.Join(dir, "article.md"))
	require.NoError(t, err)
	assert.Contains(t, string(article), "Capacity grew 42%")
}

func TestWriteMetadataRoundTrips(t *testing.T) {
	w := NewWriter(t.TempDir(), zap.NewNop())
	dir, err := w.Write(testBundle())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "metadata.yaml"))
	require.NoError(t, err)

	var meta map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &meta))

	assert.Equal(t, "run-abc", meta["run_id"])
	assert.Equal(t, "solar energy", meta["topic"])

	seo, ok := meta["seo"].(map[string]interface{})
	require.True(t, ok, "structured seo block")
	assert.Equal(t, "Solar outlook", seo["title"])

	verification, ok := meta["verification"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, verification["approved"])

	cost, ok := meta["cost"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 5000, cost["tokens"])
}

func TestWriteDegradedBlockKeptAsRawText(t *testing.T) {
	b := testBundle()
	b.SEO = "seo metadata unavailable"

	w := NewWriter(t.TempDir(), zap.NewNop())
	dir, err := w.Write(b)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "metadata.yaml"))
	require.NoError(t, err)

	var meta map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &meta))
	assert.Equal(t, "seo metadata unavailable", meta["seo"])
}

func TestWriteSkipsEmptySections(t *testing.T) {
	b := testBundle()
	b.Summary = ""

	w := NewWriter(t.TempDir(), zap.NewNop())
	dir, err := w.Write(b)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "summary.md"))
	assert.True(t, os.IsNotExist(err))
}
