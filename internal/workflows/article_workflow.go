// Package workflows holds the Temporal workflow driving one article run
// through its phases: research, synthesis, writing, enhancement,
// validation with bounded rewrite iterations, and distribution.
package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/inkforge/inkforge/internal/activities"
	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/constants"
	"github.com/inkforge/inkforge/internal/knowledge"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/roles"
)

// ArticleWorkflowName is the registered workflow type.
const ArticleWorkflowName = "ArticleWorkflow"

const (
	taskTimeout     = 5 * time.Minute
	validateTimeout = 10 * time.Minute

	// maxCorrections bounds the failed-claim detail fed back to the
	// writer on iteration.
	maxCorrections = 10
)

// Degraded placeholders stand in when a non-critical enhancement or
// distribution task fails. The run proceeds; the artifact says so.
const (
	seoUnavailable     = "seo metadata unavailable"
	metricsUnavailable = "content metrics unavailable"
	summaryUnavailable = "summary unavailable"
	socialUnavailable  = "social variants unavailable"
)

type evidencePackage struct {
	Web        string
	Background string
	Knowledge  []string
}

// ArticleWorkflow produces one long-form article. It fails fast when all
// research branches come back empty or the synthesis/draft tasks fail,
// iterates on validation rejection up to the input's cap, and only an
// approved draft reaches distribution.
func ArticleWorkflow(ctx workflow.Context, in models.RunInput) (models.RunOutcome, error) {
	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID

	outcome := models.RunOutcome{RunID: runID, Status: models.RunStatusFailed}

	if strings.TrimSpace(in.Topic) == "" {
		return outcome, temporal.NewNonRetryableApplicationError("topic is required", "InvalidInput", nil)
	}
	if in.WordTarget <= 0 {
		in.WordTarget = 1800
	}
	if in.MaxIterations < 0 {
		in.MaxIterations = 0
	}

	taskCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: taskTimeout,
		// The gateway already retries transient provider errors with
		// backoff; a second retry layer here would multiply them.
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	storeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	validateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: validateTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	// Run accounting is best effort; a history hiccup never kills a run.
	if err := workflow.ExecuteActivity(storeCtx, constants.BeginRunActivity,
		activities.BeginRunInput{RunID: runID, Topic: in.Topic}).Get(ctx, nil); err != nil {
		logger.Warn("Run start not recorded", "error", err)
	}

	logger.Info("Phase started", "phase", models.PhaseResearch)
	evidence, err := runResearch(taskCtx, runID, in.Topic)
	if err != nil {
		finishRun(storeCtx, &outcome)
		return outcome, err
	}

	logger.Info("Phase started", "phase", models.PhaseSynthesis)
	brief, err := runSynthesis(taskCtx, runID, in.Topic, evidence)
	if err != nil {
		finishRun(storeCtx, &outcome)
		return outcome, err
	}

	var (
		draft      string
		seo        string
		contentRpt string
		validation models.ValidationResult
		sources    map[string]*models.SourceDocument
		approved   bool
	)
	corrections := []string(nil)

	for iteration := 0; ; iteration++ {
		outcome.Iterations = iteration

		logger.Info("Phase started", "phase", models.PhaseWrite, "iteration", iteration)
		draft, err = runWrite(taskCtx, runID, in, brief, corrections)
		if err != nil {
			finishRun(storeCtx, &outcome)
			return outcome, err
		}

		logger.Info("Phase started", "phase", models.PhaseEnhance, "iteration", iteration)
		seo, contentRpt = runEnhance(taskCtx, runID, in, draft)

		logger.Info("Phase started", "phase", models.PhaseValidate, "iteration", iteration)
		var out activities.ValidateDraftOutput
		if err = workflow.ExecuteActivity(validateCtx, constants.ValidateDraftActivity, activities.ValidateDraftInput{
			RunID:     runID,
			Draft:     draft,
			Iteration: iteration,
			Quick:     in.Quick,
		}).Get(ctx, &out); err != nil {
			finishRun(storeCtx, &outcome)
			return outcome, fmt.Errorf("validate draft: %w", err)
		}
		validation = out.Validation
		sources = out.Sources

		if validation.Approved {
			approved = true
			break
		}
		if iteration >= in.MaxIterations {
			break
		}

		corrections = buildCorrections(validation)
		logger.Info("Draft rejected, iterating",
			"iteration", iteration,
			"reasons", validation.Reasons,
		)
	}

	outcome.Validation = &validation
	outcome.Reasons = validation.Reasons

	if !approved {
		outcome.Status = models.RunStatusExhausted
		finishRun(storeCtx, &outcome)
		return outcome, nil
	}

	logger.Info("Phase started", "phase", models.PhaseDistribute)
	artifactDir, err := runDistribute(taskCtx, runID, in, draft, seo, contentRpt, validation, sources, outcome.Iterations)
	if err != nil {
		finishRun(storeCtx, &outcome)
		return outcome, err
	}

	outcome.Status = models.RunStatusApproved
	outcome.ArtifactDir = artifactDir
	finishRun(storeCtx, &outcome)
	return outcome, nil
}

// runResearch fans out the three research branches in parallel and fails
// only when every branch came back empty.
func runResearch(ctx workflow.Context, runID, topic string) (evidencePackage, error) {
	webTmpl, _ := roles.Lookup(roles.WebResearcher)
	bgTmpl, _ := roles.Lookup(roles.BackgroundResearcher)

	webFut := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  webTmpl.Descriptor(roles.WebResearchPrompt(topic)),
	})
	bgFut := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  bgTmpl.Descriptor(roles.BackgroundResearchPrompt(topic)),
	})
	knFut := workflow.ExecuteActivity(ctx, constants.SearchKnowledgeActivity, activities.KnowledgeSearchInput{Query: topic})

	var web, bg models.TaskResult
	var kn knowledge.Result
	webErr := webFut.Get(ctx, &web)
	bgErr := bgFut.Get(ctx, &bg)
	knErr := knFut.Get(ctx, &kn)

	var ev evidencePackage
	if webErr == nil && web.Success {
		ev.Web = web.Text
	}
	if bgErr == nil && bg.Success {
		ev.Background = bg.Text
	}
	if knErr == nil && !kn.Unavailable {
		for _, p := range kn.Passages {
			ev.Knowledge = append(ev.Knowledge, p.Passage)
		}
	}

	if ev.Web == "" && ev.Background == "" && len(ev.Knowledge) == 0 {
		return ev, temporal.NewNonRetryableApplicationError(
			"all research branches failed", "ResearchFailed", nil)
	}
	return ev, nil
}

func runSynthesis(ctx workflow.Context, runID, topic string, ev evidencePackage) (string, error) {
	tmpl, _ := roles.Lookup(roles.Synthesizer)
	var result models.TaskResult
	err := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  tmpl.Descriptor(roles.SynthesisPrompt(topic, ev.Web, ev.Background, ev.Knowledge)),
	}).Get(ctx, &result)
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	if !result.Success {
		return "", temporal.NewNonRetryableApplicationError(
			"synthesis failed: "+result.Error, "SynthesisFailed", nil)
	}
	return result.Text, nil
}

func runWrite(ctx workflow.Context, runID string, in models.RunInput, brief string, corrections []string) (string, error) {
	tmpl, _ := roles.Lookup(roles.Writer)
	var result models.TaskResult
	err := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  tmpl.Descriptor(roles.WritePrompt(in.Topic, in.WordTarget, brief, corrections)),
	}).Get(ctx, &result)
	if err != nil {
		return "", fmt.Errorf("write draft: %w", err)
	}
	if !result.Success {
		return "", temporal.NewNonRetryableApplicationError(
			"draft failed: "+result.Error, "WriteFailed", nil)
	}
	return result.Text, nil
}

// runEnhance runs the SEO and metrics tasks in parallel. Either failing
// degrades to a placeholder; enhancement never blocks the run. Quick mode
// skips the metrics task entirely.
func runEnhance(ctx workflow.Context, runID string, in models.RunInput, draft string) (seo, contentRpt string) {
	seoTmpl, _ := roles.Lookup(roles.SEOEditor)

	seoFut := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  seoTmpl.Descriptor(roles.SEOPrompt(in.Topic, draft)),
	})

	var metFut workflow.Future
	if !in.Quick {
		metTmpl, _ := roles.Lookup(roles.MetricsAnalyst)
		metFut = workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
			RunID: runID,
			Task:  metTmpl.Descriptor(roles.MetricsPrompt(draft)),
		})
	}

	seo = textOrPlaceholder(ctx, seoFut, seoUnavailable)
	contentRpt = metricsUnavailable
	if metFut != nil {
		contentRpt = textOrPlaceholder(ctx, metFut, metricsUnavailable)
	}
	return seo, contentRpt
}

// runDistribute generates the summary and social variants in parallel and
// persists the artifact bundle. Only approved drafts reach this phase.
func runDistribute(ctx workflow.Context, runID string, in models.RunInput, draft, seo, contentRpt string,
	validation models.ValidationResult, sources map[string]*models.SourceDocument, iterations int) (string, error) {

	sumTmpl, _ := roles.Lookup(roles.Summarizer)
	socTmpl, _ := roles.Lookup(roles.SocialWriter)

	sumFut := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  sumTmpl.Descriptor(roles.SummaryPrompt(draft)),
	})
	socFut := workflow.ExecuteActivity(ctx, constants.RunAgentTaskActivity, activities.ExecuteTaskInput{
		RunID: runID,
		Task:  socTmpl.Descriptor(roles.SocialPrompt(in.Topic, draft)),
	})

	summary := textOrPlaceholder(ctx, sumFut, summaryUnavailable)
	social := textOrPlaceholder(ctx, socFut, socialUnavailable)

	var dir string
	err := workflow.ExecuteActivity(ctx, constants.PersistArtifactsActivity, activities.PersistArtifactsInput{
		RunID:      runID,
		Topic:      in.Topic,
		Article:    draft,
		SEO:        seo,
		Metrics:    contentRpt,
		Summary:    summary,
		Social:     social,
		Validation: validation,
		Sources:    sources,
		Iterations: iterations,
		Quick:      in.Quick,
		OutputDir:  in.OutputDir,
	}).Get(ctx, &dir)
	if err != nil {
		return "", fmt.Errorf("persist artifacts: %w", err)
	}
	return dir, nil
}

func textOrPlaceholder(ctx workflow.Context, fut workflow.Future, placeholder string) string {
	var result models.TaskResult
	if err := fut.Get(ctx, &result); err != nil || !result.Success {
		workflow.GetLogger(ctx).Warn("Task degraded to placeholder", "placeholder", placeholder)
		return placeholder
	}
	return result.Text
}

// buildCorrections turns a rejection into concrete writer instructions:
// the gate reasons first, then the individual failed claims.
func buildCorrections(v models.ValidationResult) []string {
	corrections := append([]string(nil), v.ReasonMessages...)

	added := 0
	for _, cv := range v.Verifications {
		if cv.Verdict == models.VerdictVerified {
			continue
		}
		if added >= maxCorrections {
			break
		}
		switch {
		case cv.Claim.Uncited:
			corrections = append(corrections,
				fmt.Sprintf("uncited claim %q: add a real citation or remove it", cv.Claim.Span))
		case cv.Verdict == models.VerdictContradicted:
			corrections = append(corrections,
				fmt.Sprintf("claim %q contradicts its source %s: correct the value", cv.Claim.Span, cv.Claim.CitationURL))
		default:
			corrections = append(corrections,
				fmt.Sprintf("claim %q is not supported by %s: cite a source that states it or drop it", cv.Claim.Span, cv.Claim.CitationURL))
		}
		added++
	}
	return corrections
}

// finishRun closes out run accounting and folds the final token and cost
// totals into the outcome. Best effort.
func finishRun(ctx workflow.Context, outcome *models.RunOutcome) {
	var totals budget.Totals
	if err := workflow.ExecuteActivity(ctx, constants.FinishRunActivity, *outcome).Get(ctx, &totals); err != nil {
		workflow.GetLogger(ctx).Warn("Run finish not recorded", "error", err)
		return
	}
	outcome.TokensUsed = totals.Tokens
	outcome.CostUSD = totals.CostUSD
}
