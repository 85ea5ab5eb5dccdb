package workflows

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/inkforge/inkforge/internal/activities"
	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/constants"
	"github.com/inkforge/inkforge/internal/gateway"
	"github.com/inkforge/inkforge/internal/knowledge"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/roles"
)

type ArticleWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
}

func TestArticleWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ArticleWorkflowTestSuite))
}

// stubConfig parametrizes the activity stubs for one test.
type stubConfig struct {
	agent         func(in activities.ExecuteTaskInput) (models.TaskResult, error)
	validate      func(in activities.ValidateDraftInput) (activities.ValidateDraftOutput, error)
	knowledge     func(in activities.KnowledgeSearchInput) (knowledge.Result, error)
	persisted     *activities.PersistArtifactsInput
	writerPrompts *[]string
}

func successfulTask(role string) models.TaskResult {
	return models.TaskResult{
		Role:    role,
		Text:    "generated " + role + " text",
		Usage:   models.TokenUsage{InputTokens: 100, OutputTokens: 400},
		Success: true,
	}
}

func approvedValidation() activities.ValidateDraftOutput {
	return activities.ValidateDraftOutput{
		Validation: models.ValidationResult{
			Approved:      true,
			VerifiedRatio: 1.0,
			LiveSources:   3,
			CitationCount: 6,
		},
	}
}

func rejectedValidation() activities.ValidateDraftOutput {
	return activities.ValidateDraftOutput{
		Validation: models.ValidationResult{
			Approved:      false,
			VerifiedRatio: 0.5,
			LiveSources:   3,
			CitationCount: 6,
			Reasons:       []string{models.ReasonInsufficientVerifiedRatio},
			ReasonMessages: []string{
				"verified claim ratio 0.50 below required 0.95 (1/2 verified)",
			},
			Verifications: []models.ClaimVerification{
				{
					Claim:   models.Claim{Span: "42%", Type: models.ClaimNumeric, CitationURL: "https://example.com/r"},
					Verdict: models.VerdictUnverified,
				},
			},
		},
	}
}

func (s *ArticleWorkflowTestSuite) newEnv(cfg stubConfig) *testsuite.TestWorkflowEnvironment {
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(ArticleWorkflow, workflow.RegisterOptions{Name: ArticleWorkflowName})

	if cfg.agent == nil {
		cfg.agent = func(in activities.ExecuteTaskInput) (models.TaskResult, error) {
			return successfulTask(in.Task.Role), nil
		}
	}
	if cfg.validate == nil {
		cfg.validate = func(activities.ValidateDraftInput) (activities.ValidateDraftOutput, error) {
			return approvedValidation(), nil
		}
	}
	if cfg.knowledge == nil {
		cfg.knowledge = func(activities.KnowledgeSearchInput) (knowledge.Result, error) {
			return knowledge.Result{Passages: []gateway.Passage{{Passage: "known fact", Score: 0.9}}}, nil
		}
	}

	env.RegisterActivityWithOptions(
		func(_ context.Context, _ activities.BeginRunInput) error { return nil },
		activity.RegisterOptions{Name: constants.BeginRunActivity},
	)
	env.RegisterActivityWithOptions(
		func(_ context.Context, _ models.RunOutcome) (budget.Totals, error) {
			return budget.Totals{Tokens: 4200, CostUSD: 0.42}, nil
		},
		activity.RegisterOptions{Name: constants.FinishRunActivity},
	)
	env.RegisterActivityWithOptions(
		func(_ context.Context, in activities.ExecuteTaskInput) (models.TaskResult, error) {
			if in.Task.Role == roles.Writer && cfg.writerPrompts != nil {
				*cfg.writerPrompts = append(*cfg.writerPrompts, in.Task.Prompt)
			}
			return cfg.agent(in)
		},
		activity.RegisterOptions{Name: constants.RunAgentTaskActivity},
	)
	env.RegisterActivityWithOptions(
		func(_ context.Context, in activities.KnowledgeSearchInput) (knowledge.Result, error) {
			return cfg.knowledge(in)
		},
		activity.RegisterOptions{Name: constants.SearchKnowledgeActivity},
	)
	env.RegisterActivityWithOptions(
		func(_ context.Context, in activities.ValidateDraftInput) (activities.ValidateDraftOutput, error) {
			return cfg.validate(in)
		},
		activity.RegisterOptions{Name: constants.ValidateDraftActivity},
	)
	env.RegisterActivityWithOptions(
		func(_ context.Context, in activities.PersistArtifactsInput) (string, error) {
			if cfg.persisted != nil {
				*cfg.persisted = in
			}
			return "runs/" + in.RunID, nil
		},
		activity.RegisterOptions{Name: constants.PersistArtifactsActivity},
	)
	return env
}

func defaultInput() models.RunInput {
	return models.RunInput{Topic: "solar energy", WordTarget: 1800, MaxIterations: 2}
}

func (s *ArticleWorkflowTestSuite) TestApprovedRunDistributes() {
	var persisted activities.PersistArtifactsInput
	env := s.newEnv(stubConfig{persisted: &persisted})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var outcome models.RunOutcome
	s.NoError(env.GetWorkflowResult(&outcome))
	s.Equal(models.RunStatusApproved, outcome.Status)
	s.Equal(0, outcome.Iterations)
	s.Equal("runs/"+outcome.RunID, outcome.ArtifactDir)
	s.Equal(4200, outcome.TokensUsed)
	s.InDelta(0.42, outcome.CostUSD, 1e-9)

	s.Equal("solar energy", persisted.Topic)
	s.NotEmpty(persisted.Article)
	s.NotEmpty(persisted.Summary)
}

func (s *ArticleWorkflowTestSuite) TestRejectionIteratesWithCorrections() {
	var writerPrompts []string
	calls := 0
	env := s.newEnv(stubConfig{
		writerPrompts: &writerPrompts,
		validate: func(activities.ValidateDraftInput) (activities.ValidateDraftOutput, error) {
			calls++
			if calls == 1 {
				return rejectedValidation(), nil
			}
			return approvedValidation(), nil
		},
	})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var outcome models.RunOutcome
	s.NoError(env.GetWorkflowResult(&outcome))
	s.Equal(models.RunStatusApproved, outcome.Status)
	s.Equal(1, outcome.Iterations)

	s.Require().Len(writerPrompts, 2)
	s.NotContains(writerPrompts[0], "fact-check of the previous draft")
	s.Contains(writerPrompts[1], "fact-check of the previous draft")
	s.Contains(writerPrompts[1], `claim "42%"`)
}

func (s *ArticleWorkflowTestSuite) TestExhaustionSkipsDistribution() {
	var persisted activities.PersistArtifactsInput
	var writerPrompts []string
	env := s.newEnv(stubConfig{
		persisted:     &persisted,
		writerPrompts: &writerPrompts,
		validate: func(activities.ValidateDraftInput) (activities.ValidateDraftOutput, error) {
			return rejectedValidation(), nil
		},
	})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var outcome models.RunOutcome
	s.NoError(env.GetWorkflowResult(&outcome))
	s.Equal(models.RunStatusExhausted, outcome.Status)
	s.Equal(2, outcome.Iterations)
	s.Contains(outcome.Reasons, models.ReasonInsufficientVerifiedRatio)
	s.Empty(outcome.ArtifactDir)

	// Initial draft plus two rewrites; nothing persisted.
	s.Len(writerPrompts, 3)
	s.Empty(persisted.RunID)
}

func (s *ArticleWorkflowTestSuite) TestAllResearchFailureFailsRun() {
	env := s.newEnv(stubConfig{
		agent: func(in activities.ExecuteTaskInput) (models.TaskResult, error) {
			return models.TaskResult{Role: in.Task.Role, Success: false, Error: "provider down"}, nil
		},
		knowledge: func(activities.KnowledgeSearchInput) (knowledge.Result, error) {
			return knowledge.Result{Unavailable: true}, nil
		},
	})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	s.Require().Error(err)
	s.Contains(err.Error(), "all research branches failed")
}

func (s *ArticleWorkflowTestSuite) TestKnowledgeOnlyResearchProceeds() {
	env := s.newEnv(stubConfig{
		agent: func(in activities.ExecuteTaskInput) (models.TaskResult, error) {
			switch in.Task.Role {
			case roles.WebResearcher, roles.BackgroundResearcher:
				return models.TaskResult{Role: in.Task.Role, Success: false, Error: "provider down"}, nil
			}
			return successfulTask(in.Task.Role), nil
		},
	})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var outcome models.RunOutcome
	s.NoError(env.GetWorkflowResult(&outcome))
	s.Equal(models.RunStatusApproved, outcome.Status)
}

func (s *ArticleWorkflowTestSuite) TestEnhanceFailureDegradesToPlaceholder() {
	var persisted activities.PersistArtifactsInput
	env := s.newEnv(stubConfig{
		persisted: &persisted,
		agent: func(in activities.ExecuteTaskInput) (models.TaskResult, error) {
			if in.Task.Role == roles.SEOEditor {
				return models.TaskResult{Role: in.Task.Role, Success: false, Error: "timeout"}, nil
			}
			return successfulTask(in.Task.Role), nil
		},
	})

	env.ExecuteWorkflow(ArticleWorkflowName, defaultInput())

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())

	var outcome models.RunOutcome
	s.NoError(env.GetWorkflowResult(&outcome))
	s.Equal(models.RunStatusApproved, outcome.Status)
	s.Equal(seoUnavailable, persisted.SEO)
	s.True(strings.HasPrefix(persisted.Metrics, "generated"))
}

func (s *ArticleWorkflowTestSuite) TestEmptyTopicRejectedUpFront() {
	env := s.newEnv(stubConfig{})

	env.ExecuteWorkflow(ArticleWorkflowName, models.RunInput{Topic: "   "})

	s.True(env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	s.Require().Error(err)
	s.Contains(err.Error(), "topic is required")
}

func (s *ArticleWorkflowTestSuite) TestQuickModeFlagsValidationAndSkipsMetrics() {
	var sawQuick bool
	var persisted activities.PersistArtifactsInput
	var mu sync.Mutex
	rolesRun := map[string]bool{}
	env := s.newEnv(stubConfig{
		persisted: &persisted,
		agent: func(in activities.ExecuteTaskInput) (models.TaskResult, error) {
			mu.Lock()
			rolesRun[in.Task.Role] = true
			mu.Unlock()
			return successfulTask(in.Task.Role), nil
		},
		validate: func(in activities.ValidateDraftInput) (activities.ValidateDraftOutput, error) {
			sawQuick = in.Quick
			return approvedValidation(), nil
		},
	})

	input := defaultInput()
	input.Quick = true
	env.ExecuteWorkflow(ArticleWorkflowName, input)

	s.True(env.IsWorkflowCompleted())
	s.NoError(env.GetWorkflowError())
	s.True(sawQuick)
	s.False(rolesRun[roles.MetricsAnalyst])
	s.True(rolesRun[roles.SEOEditor])
	s.Equal(metricsUnavailable, persisted.Metrics)
}
