package claims

import (
	"fmt"

	"github.com/inkforge/inkforge/internal/models"
)

// Thresholds are the approval gates for one draft. The effective values
// may differ per run (quick mode relaxes the live-source floor).
type Thresholds struct {
	MinVerifiedRatio float64
	MinLiveSources   int
	MinCitations     int
}

// Aggregate folds per-claim verdicts into the run's ValidationResult.
// Approval requires every gate to pass; each unmet gate contributes a
// machine-readable reason. Deterministic given identical verifications
// and documents.
func Aggregate(verifications []models.ClaimVerification, docs map[string]*models.SourceDocument, citationCount int, t Thresholds) models.ValidationResult {
	result := models.ValidationResult{
		Verifications: verifications,
		CitationCount: citationCount,
	}

	verified := 0
	for _, v := range verifications {
		if v.Verdict == models.VerdictVerified {
			verified++
		}
	}
	if len(verifications) > 0 {
		result.VerifiedRatio = float64(verified) / float64(len(verifications))
	} else {
		// No checkable claims at all: the ratio gate passes vacuously,
		// the citation gate still applies.
		result.VerifiedRatio = 1.0
	}

	seen := make(map[string]bool, len(docs))
	for url, doc := range docs {
		if doc.Live() && !seen[url] {
			seen[url] = true
			result.LiveSources++
		}
	}

	if result.VerifiedRatio < t.MinVerifiedRatio {
		result.Reasons = append(result.Reasons, models.ReasonInsufficientVerifiedRatio)
		result.ReasonMessages = append(result.ReasonMessages,
			fmt.Sprintf("verified claim ratio %.2f below required %.2f (%d/%d verified)",
				result.VerifiedRatio, t.MinVerifiedRatio, verified, len(verifications)))
	}
	if result.LiveSources < t.MinLiveSources {
		result.Reasons = append(result.Reasons, models.ReasonTooFewLiveSources)
		result.ReasonMessages = append(result.ReasonMessages,
			fmt.Sprintf("%d live sources, need at least %d", result.LiveSources, t.MinLiveSources))
	}
	if result.CitationCount < t.MinCitations {
		result.Reasons = append(result.Reasons, models.ReasonTooFewCitations)
		result.ReasonMessages = append(result.ReasonMessages,
			fmt.Sprintf("%d citations, need at least %d", result.CitationCount, t.MinCitations))
	}

	result.Approved = len(result.Reasons) == 0
	return result
}
