package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/pool"
)

func TestLookupKnownRoles(t *testing.T) {
	for _, id := range []string{
		WebResearcher, BackgroundResearcher, Synthesizer, Writer,
		SEOEditor, MetricsAnalyst, Summarizer, SocialWriter, FactChecker,
	} {
		tmpl, err := Lookup(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, tmpl.ID)
		assert.NotEmpty(t, tmpl.Tier, id)
		assert.Greater(t, tmpl.MaxTokens, 0, id)
	}
}

func TestLookupUnknownRole(t *testing.T) {
	_, err := Lookup("interpretive_dancer")
	assert.Error(t, err)
}

func TestDescriptorBindsPrompt(t *testing.T) {
	tmpl, err := Lookup(Writer)
	require.NoError(t, err)

	d := tmpl.Descriptor("write about solar")
	assert.Equal(t, Writer, d.Role)
	assert.Equal(t, "write about solar", d.Prompt)
	assert.Equal(t, models.TierLarge, d.Tier)
	assert.Equal(t, pool.Content, d.Pool)
}

func TestResearcherUsesSearchPool(t *testing.T) {
	tmpl, err := Lookup(WebResearcher)
	require.NoError(t, err)
	assert.Equal(t, pool.Search, tmpl.Pool)
}

func TestWritePromptCarriesCorrections(t *testing.T) {
	prompt := WritePrompt("solar", 1500, "brief text", []string{
		`claim "42%" is not supported by https://example.com: cite a source that states it or drop it`,
	})

	assert.Contains(t, prompt, "about 1500 words")
	assert.Contains(t, prompt, "brief text")
	assert.Contains(t, prompt, "fact-check of the previous draft failed")
	assert.Contains(t, prompt, `claim "42%"`)
}

func TestWritePromptFirstPassHasNoCorrectionBlock(t *testing.T) {
	prompt := WritePrompt("solar", 1500, "brief", nil)
	assert.NotContains(t, prompt, "fact-check of the previous draft")
}

func TestSynthesisPromptMarksMissingBranches(t *testing.T) {
	prompt := SynthesisPrompt("solar", "", "background notes", nil)
	assert.Contains(t, prompt, "(no findings available)")
	assert.Contains(t, prompt, "background notes")
	assert.NotContains(t, prompt, "Knowledge base passages")
}
