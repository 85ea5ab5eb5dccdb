// Package roles defines the closed set of generation roles the pipeline
// uses. Each role is a tagged template resolved into TaskDescriptors at
// the call site; there is no runtime string dispatch and no external role
// files.
package roles

import (
	"fmt"

	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/pool"
)

// Role identifiers.
const (
	WebResearcher        = "web_researcher"
	BackgroundResearcher = "background_researcher"
	Synthesizer          = "synthesizer"
	Writer               = "writer"
	SEOEditor            = "seo_editor"
	MetricsAnalyst       = "metrics_analyst"
	Summarizer           = "summarizer"
	SocialWriter         = "social_writer"
	FactChecker          = "fact_checker"
)

// Template is one role's fixed execution profile.
type Template struct {
	ID        string
	Tier      models.ModelTier
	Effort    models.ReasoningEffort
	Verbosity models.Verbosity
	MaxTokens int
	Pool      string
}

var catalog = map[string]Template{
	WebResearcher: {
		ID: WebResearcher, Tier: models.TierMedium,
		Effort: models.EffortMedium, Verbosity: models.VerbosityMedium,
		MaxTokens: 4096, Pool: pool.Search,
	},
	BackgroundResearcher: {
		ID: BackgroundResearcher, Tier: models.TierMedium,
		Effort: models.EffortMedium, Verbosity: models.VerbosityMedium,
		MaxTokens: 4096, Pool: pool.Content,
	},
	Synthesizer: {
		ID: Synthesizer, Tier: models.TierMedium,
		Effort: models.EffortHigh, Verbosity: models.VerbosityMedium,
		MaxTokens: 4096, Pool: pool.Content,
	},
	Writer: {
		ID: Writer, Tier: models.TierLarge,
		Effort: models.EffortHigh, Verbosity: models.VerbosityHigh,
		MaxTokens: 8192, Pool: pool.Content,
	},
	SEOEditor: {
		ID: SEOEditor, Tier: models.TierSmall,
		Effort: models.EffortLow, Verbosity: models.VerbosityLow,
		MaxTokens: 1024, Pool: pool.Content,
	},
	MetricsAnalyst: {
		ID: MetricsAnalyst, Tier: models.TierSmall,
		Effort: models.EffortLow, Verbosity: models.VerbosityLow,
		MaxTokens: 1024, Pool: pool.Content,
	},
	Summarizer: {
		ID: Summarizer, Tier: models.TierSmall,
		Effort: models.EffortLow, Verbosity: models.VerbosityMedium,
		MaxTokens: 1024, Pool: pool.Content,
	},
	SocialWriter: {
		ID: SocialWriter, Tier: models.TierSmall,
		Effort: models.EffortLow, Verbosity: models.VerbosityLow,
		MaxTokens: 1024, Pool: pool.Content,
	},
	FactChecker: {
		ID: FactChecker, Tier: models.TierSmall,
		Effort: models.EffortMinimal, Verbosity: models.VerbosityLow,
		MaxTokens: 8, Pool: pool.Content,
	},
}

// Lookup resolves a role identifier.
func Lookup(id string) (Template, error) {
	t, ok := catalog[id]
	if !ok {
		return Template{}, fmt.Errorf("unknown role %q", id)
	}
	return t, nil
}

// Descriptor binds a prompt to the role's profile.
func (t Template) Descriptor(prompt string) models.TaskDescriptor {
	return models.TaskDescriptor{
		Role:      t.ID,
		Prompt:    prompt,
		Tier:      t.Tier,
		Effort:    t.Effort,
		Verbosity: t.Verbosity,
		MaxTokens: t.MaxTokens,
		Pool:      t.Pool,
	}
}
