// Package activities implements the Temporal activities behind the
// article pipeline. Activities hold all process-level dependencies; the
// workflow stays deterministic and talks to them by name.
package activities

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/claims"
	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/fetcher"
	"github.com/inkforge/inkforge/internal/gateway"
	"github.com/inkforge/inkforge/internal/knowledge"
	"github.com/inkforge/inkforge/internal/metrics"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/output"
	"github.com/inkforge/inkforge/internal/store"
)

// Activities bundles every activity implementation and its dependencies.
type Activities struct {
	gw        *gateway.Client
	knowledge *knowledge.Client
	fetcher   *fetcher.Fetcher
	ledger    *budget.Ledger
	store     *store.Store
	writer    *output.Writer
	cfg       *config.Config
	logger    *zap.Logger
}

// New wires the activity set. store may be nil; run history is then not
// persisted.
func New(gw *gateway.Client, kn *knowledge.Client, f *fetcher.Fetcher, ledger *budget.Ledger, st *store.Store, writer *output.Writer, cfg *config.Config, logger *zap.Logger) *Activities {
	return &Activities{
		gw:        gw,
		knowledge: kn,
		fetcher:   f,
		ledger:    ledger,
		store:     st,
		writer:    writer,
		cfg:       cfg,
		logger:    logger,
	}
}

// BeginRunInput starts run accounting.
type BeginRunInput struct {
	RunID string `json:"run_id"`
	Topic string `json:"topic"`
}

// BeginRun records the start of a run.
func (a *Activities) BeginRun(ctx context.Context, in BeginRunInput) error {
	metrics.RunsStarted.Inc()
	if a.store == nil {
		return nil
	}
	return a.store.BeginRun(ctx, in.RunID, in.Topic, time.Now())
}

// FinishRun records the terminal state of a run, releases its per-run
// caches, and returns the final usage totals for the outcome.
func (a *Activities) FinishRun(ctx context.Context, outcome models.RunOutcome) (budget.Totals, error) {
	totals := a.ledger.Totals(outcome.RunID)
	outcome.TokensUsed = totals.Tokens
	outcome.CostUSD = totals.CostUSD

	metrics.RunsCompleted.WithLabelValues(string(outcome.Status)).Inc()
	metrics.RunIterations.Observe(float64(outcome.Iterations))

	a.ledger.Release(outcome.RunID)
	a.fetcher.ReleaseRun(outcome.RunID)

	if a.store != nil {
		if err := a.store.FinishRun(ctx, outcome, time.Now()); err != nil {
			a.logger.Warn("Run record not persisted", zap.Error(err))
		}
	}
	return totals, nil
}

// ExecuteTaskInput is one generation task bound to its run.
type ExecuteTaskInput struct {
	RunID string                `json:"run_id"`
	Task  models.TaskDescriptor `json:"task"`
}

// RunAgentTask executes one generation task through the gateway. Provider
// failure comes back as a TaskResult with Success false and a nil
// activity error; the workflow owns the policy for each phase.
func (a *Activities) RunAgentTask(ctx context.Context, in ExecuteTaskInput) (models.TaskResult, error) {
	result, err := a.gw.Invoke(ctx, in.Task)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		a.logger.Warn("Task failed",
			zap.String("run_id", in.RunID),
			zap.String("role", in.Task.Role),
			zap.Error(err),
		)
	}
	metrics.TaskExecutions.WithLabelValues(in.Task.Role, outcome).Inc()
	metrics.TaskDuration.WithLabelValues(in.Task.Role).Observe(float64(result.DurationMs) / 1000)

	if result.Success {
		a.ledger.Record(in.RunID, in.Task.Role, in.Task.Tier, result.Usage)
	}
	if a.store != nil {
		if serr := a.store.RecordTask(ctx, in.RunID, result); serr != nil {
			a.logger.Warn("Task record not persisted", zap.Error(serr))
		}
	}
	return result, nil
}

// KnowledgeSearchInput is a query against the knowledge base.
type KnowledgeSearchInput struct {
	Query string `json:"query"`
}

// SearchKnowledge queries the cached semantic-search service. Backend
// unavailability yields an explicit empty result, never an error.
func (a *Activities) SearchKnowledge(ctx context.Context, in KnowledgeSearchInput) (knowledge.Result, error) {
	return a.knowledge.Search(ctx, in.Query)
}

// ValidateDraftInput carries one draft through the verification gate.
type ValidateDraftInput struct {
	RunID     string `json:"run_id"`
	Draft     string `json:"draft"`
	Iteration int    `json:"iteration"`
	Quick     bool   `json:"quick"`
}

// ValidateDraftOutput is the gate verdict plus the source states that
// produced it.
type ValidateDraftOutput struct {
	Validation models.ValidationResult           `json:"validation"`
	Sources    map[string]*models.SourceDocument `json:"sources"`
}

// ValidateDraft extracts claims from the draft, resolves their cited
// sources, verifies each claim, and folds the verdicts into the approval
// decision.
func (a *Activities) ValidateDraft(ctx context.Context, in ValidateDraftInput) (ValidateDraftOutput, error) {
	extraction := claims.Extract(in.Draft)
	metrics.ClaimsExtracted.Observe(float64(len(extraction.Claims)))

	urls := distinctCited(extraction.Claims)
	sources := a.fetcher.FetchAll(ctx, in.RunID, urls)

	var matcher claims.SemanticMatcher
	if a.cfg.Validation.SemanticCheck {
		matcher = claims.NewLLMMatcher(a.gw)
	}
	verifier := claims.NewVerifier(a.fetcher, matcher, a.logger)
	verifications := verifier.VerifyAll(ctx, in.RunID, extraction.Claims)

	for _, v := range verifications {
		metrics.ClaimVerdicts.WithLabelValues(string(v.Verdict), string(v.Method)).Inc()
	}

	thresholds := claims.Thresholds{
		MinVerifiedRatio: a.cfg.Validation.MinVerifiedRatio,
		MinLiveSources:   a.cfg.Validation.MinLiveSources,
		MinCitations:     a.cfg.Validation.MinCitations,
	}
	if in.Quick && a.cfg.Validation.QuickMinLiveSources > 0 {
		thresholds.MinLiveSources = a.cfg.Validation.QuickMinLiveSources
	}

	validation := claims.Aggregate(verifications, sources, len(extraction.CitationURLs), thresholds)

	outcome := "rejected"
	if validation.Approved {
		outcome = "approved"
	}
	metrics.ValidationOutcomes.WithLabelValues(outcome).Inc()

	a.logger.Info("Draft validated",
		zap.String("run_id", in.RunID),
		zap.Int("iteration", in.Iteration),
		zap.Bool("approved", validation.Approved),
		zap.Float64("verified_ratio", validation.VerifiedRatio),
		zap.Int("live_sources", validation.LiveSources),
		zap.Int("citations", validation.CitationCount),
	)

	if a.store != nil {
		if err := a.store.RecordValidation(ctx, in.RunID, in.Iteration, validation); err != nil {
			a.logger.Warn("Validation record not persisted", zap.Error(err))
		}
	}

	return ValidateDraftOutput{Validation: validation, Sources: sources}, nil
}

// PersistArtifactsInput is everything the distribution phase writes out.
type PersistArtifactsInput struct {
	RunID      string                            `json:"run_id"`
	Topic      string                            `json:"topic"`
	Article    string                            `json:"article"`
	SEO        string                            `json:"seo"`
	Metrics    string                            `json:"metrics"`
	Summary    string                            `json:"summary"`
	Social     string                            `json:"social"`
	Validation models.ValidationResult           `json:"validation"`
	Sources    map[string]*models.SourceDocument `json:"sources"`
	Iterations int                               `json:"iterations"`
	Quick      bool                              `json:"quick"`
	OutputDir  string                            `json:"output_dir,omitempty"`
}

// PersistArtifacts writes the approved run's artifact bundle and returns
// the artifact directory.
func (a *Activities) PersistArtifacts(ctx context.Context, in PersistArtifactsInput) (string, error) {
	writer := a.writer
	if in.OutputDir != "" {
		writer = output.NewWriter(in.OutputDir, a.logger)
	}
	return writer.Write(output.Bundle{
		RunID:       in.RunID,
		Topic:       in.Topic,
		Article:     in.Article,
		SEO:         in.SEO,
		Metrics:     in.Metrics,
		Summary:     in.Summary,
		Social:      in.Social,
		Validation:  in.Validation,
		Sources:     in.Sources,
		Totals:      a.ledger.Totals(in.RunID),
		Iterations:  in.Iterations,
		Quick:       in.Quick,
		GeneratedAt: time.Now(),
	})
}

func distinctCited(cs []models.Claim) []string {
	seen := make(map[string]bool, len(cs))
	var urls []string
	for _, c := range cs {
		if c.Uncited || seen[c.CitationURL] {
			continue
		}
		seen[c.CitationURL] = true
		urls = append(urls, c.CitationURL)
	}
	return urls
}
