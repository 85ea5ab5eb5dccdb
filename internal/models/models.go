package models

import (
	"time"
)

// Phase identifies a stage of the article pipeline. Phases advance strictly
// in the order declared by the workflow; parallel siblings share a phase.
type Phase string

const (
	PhaseInit            Phase = "INIT"
	PhaseResearch        Phase = "RESEARCH"
	PhaseEvidencePackage Phase = "EVIDENCE_PACKAGE"
	PhaseSynthesis       Phase = "SYNTHESIS"
	PhaseWrite           Phase = "WRITE"
	PhaseEnhance         Phase = "ENHANCE"
	PhaseValidate        Phase = "VALIDATE"
	PhaseIterate         Phase = "ITERATE"
	PhaseDistribute      Phase = "DISTRIBUTE"
	PhaseDone            Phase = "DONE"
)

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusApproved  RunStatus = "APPROVED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusExhausted RunStatus = "EXHAUSTED"
)

// ModelTier selects the capability class of the generation model.
type ModelTier string

const (
	TierSmall  ModelTier = "small"
	TierMedium ModelTier = "medium"
	TierLarge  ModelTier = "large"
)

// ReasoningEffort mirrors the provider's reasoning knob.
type ReasoningEffort string

const (
	EffortMinimal ReasoningEffort = "minimal"
	EffortLow     ReasoningEffort = "low"
	EffortMedium  ReasoningEffort = "medium"
	EffortHigh    ReasoningEffort = "high"
)

// Verbosity mirrors the provider's verbosity knob.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// TaskDescriptor is one named unit of generation work. Immutable once
// constructed; iteration builds a fresh descriptor rather than mutating.
type TaskDescriptor struct {
	Role      string          `json:"role"`
	Prompt    string          `json:"prompt"`
	Tier      ModelTier       `json:"model_tier"`
	Effort    ReasoningEffort `json:"reasoning_effort"`
	Verbosity Verbosity       `json:"verbosity"`
	MaxTokens int             `json:"max_tokens"`
	Pool      string          `json:"pool,omitempty"`
}

// TokenUsage is the provider-reported token accounting for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// TaskResult is the outcome of executing one TaskDescriptor. A retry
// produces a new TaskResult; existing ones are never mutated.
type TaskResult struct {
	Role       string     `json:"role"`
	Text       string     `json:"text"`
	Usage      TokenUsage `json:"usage"`
	Model      string     `json:"model,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Success    bool       `json:"success"`
	Degraded   bool       `json:"degraded,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ClaimType classifies what kind of factual assertion a claim is.
type ClaimType string

const (
	ClaimNumeric ClaimType = "numeric"
	ClaimQuote   ClaimType = "quote"
	ClaimDated   ClaimType = "dated"
)

// Claim is an atomic factual assertion extracted from draft text.
type Claim struct {
	Sentence    string    `json:"sentence"`
	Span        string    `json:"span"`
	Type        ClaimType `json:"type"`
	CitationURL string    `json:"citation_url,omitempty"`
	// Uncited is set when the claim carries no citation at all; such
	// claims fail verification without a fetch.
	Uncited bool `json:"uncited,omitempty"`
}

// SourceDocument is a fetched (or failed) remote source. Cached per run;
// a URL is fetched at most once per run.
type SourceDocument struct {
	URL       string    `json:"url"`
	Content   string    `json:"content,omitempty"`
	Failed    bool      `json:"failed"`
	Reason    string    `json:"reason,omitempty"`
	Status    int       `json:"status,omitempty"`
	Tier      int       `json:"tier"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Live reports whether the source returned usable content.
func (d *SourceDocument) Live() bool { return d != nil && !d.Failed && d.Content != "" }

// Verdict is the outcome of verifying a single claim.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictUnverified   Verdict = "unverified"
	VerdictContradicted Verdict = "contradicted"
)

// MatchMethod names the strategy that settled a claim.
type MatchMethod string

const (
	MatchExact    MatchMethod = "exact"
	MatchFuzzy    MatchMethod = "fuzzy"
	MatchSemantic MatchMethod = "semantic"
	MatchNone     MatchMethod = "none"
)

// ClaimVerification pairs a claim with its verdict.
type ClaimVerification struct {
	Claim      Claim       `json:"claim"`
	Verdict    Verdict     `json:"verdict"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence"`
	Detail     string      `json:"detail,omitempty"`
}

// Rejection reason codes. Machine-readable, stable.
const (
	ReasonInsufficientVerifiedRatio = "INSUFFICIENT_VERIFIED_RATIO"
	ReasonTooFewLiveSources         = "TOO_FEW_LIVE_SOURCES"
	ReasonTooFewCitations           = "TOO_FEW_CITATIONS"
)

// ValidationResult is the aggregate verdict for one draft.
type ValidationResult struct {
	Approved       bool                `json:"approved"`
	Verifications  []ClaimVerification `json:"verifications"`
	VerifiedRatio  float64             `json:"verified_ratio"`
	LiveSources    int                 `json:"live_sources"`
	CitationCount  int                 `json:"citation_count"`
	Reasons        []string            `json:"reasons,omitempty"`
	ReasonMessages []string            `json:"reason_messages,omitempty"`
}

// RunInput is the workflow input for one article-generation attempt. The
// submitting client resolves configuration into explicit values so the
// workflow itself stays deterministic.
type RunInput struct {
	Topic         string `json:"topic"`
	WordTarget    int    `json:"word_target"`
	MaxIterations int    `json:"max_iterations"`
	Quick         bool   `json:"quick"`
	OutputDir     string `json:"output_dir,omitempty"`
}

// RunOutcome is the workflow result.
type RunOutcome struct {
	RunID       string            `json:"run_id"`
	Status      RunStatus         `json:"status"`
	Iterations  int               `json:"iterations"`
	Reasons     []string          `json:"reasons,omitempty"`
	ArtifactDir string            `json:"artifact_dir,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	TokensUsed  int               `json:"tokens_used"`
	CostUSD     float64           `json:"cost_usd"`
}
