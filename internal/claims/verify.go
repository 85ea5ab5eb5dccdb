package claims

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/models"
)

// Method confidence weights: exact > fuzzy > semantic, per the strength of
// the evidence each produces.
const (
	ConfidenceExact    = 1.0
	ConfidenceFuzzy    = 0.85
	ConfidenceSemantic = 0.70

	// fuzzySentenceThreshold is the minimum similarity between the claim
	// sentence and a source sentence for a fuzzy verdict.
	fuzzySentenceThreshold = 0.72
)

// SourceResolver resolves a citation URL to its per-run cached document.
type SourceResolver interface {
	Fetch(ctx context.Context, runID, url string) *models.SourceDocument
}

// SemanticMatcher decides whether source content supports a claim when
// cheap string strategies fail. Implementations are pluggable; the default
// delegates to a text-generation call.
type SemanticMatcher interface {
	Supports(ctx context.Context, claim models.Claim, source string) (bool, error)
}

// Verifier checks claims against source documents.
type Verifier struct {
	resolver SourceResolver
	matcher  SemanticMatcher
	logger   *zap.Logger
}

// NewVerifier builds a Verifier. matcher may be nil to disable the
// semantic fallback.
func NewVerifier(resolver SourceResolver, matcher SemanticMatcher, logger *zap.Logger) *Verifier {
	return &Verifier{resolver: resolver, matcher: matcher, logger: logger}
}

// VerifyAll settles every claim. Source fetches are cached per run, so
// repeated citations of one URL cost one fetch.
func (v *Verifier) VerifyAll(ctx context.Context, runID string, cs []models.Claim) []models.ClaimVerification {
	out := make([]models.ClaimVerification, 0, len(cs))
	for _, c := range cs {
		out = append(out, v.Verify(ctx, runID, c))
	}
	return out
}

// Verify settles one claim, attempting the cheapest strategy first.
func (v *Verifier) Verify(ctx context.Context, runID string, c models.Claim) models.ClaimVerification {
	if c.Uncited {
		return models.ClaimVerification{
			Claim:   c,
			Verdict: models.VerdictUnverified,
			Method:  models.MatchNone,
			Detail:  "no citation; unverifiable by construction",
		}
	}

	doc := v.resolver.Fetch(ctx, runID, c.CitationURL)
	if !doc.Live() {
		return models.ClaimVerification{
			Claim:   c,
			Verdict: models.VerdictUnverified,
			Method:  models.MatchNone,
			Detail:  "source fetch failed: " + doc.Reason,
		}
	}

	source := normalize(doc.Content)

	// (a) exact substring of the claim's span.
	if strings.Contains(source, normalize(c.Span)) {
		return models.ClaimVerification{
			Claim:      c,
			Verdict:    models.VerdictVerified,
			Method:     models.MatchExact,
			Confidence: ConfidenceExact,
		}
	}

	// (b) formatting-tolerant variants, then sentence-level similarity.
	if fuzzyMatch(c, source) {
		return models.ClaimVerification{
			Claim:      c,
			Verdict:    models.VerdictVerified,
			Method:     models.MatchFuzzy,
			Confidence: ConfidenceFuzzy,
		}
	}

	// (c) semantic equivalence, only for high-value claims.
	if v.matcher != nil && highValue(c) {
		supported, err := v.matcher.Supports(ctx, c, doc.Content)
		if err != nil {
			v.logger.Warn("Semantic match unavailable",
				zap.String("url", c.CitationURL),
				zap.Error(err),
			)
		} else if supported {
			return models.ClaimVerification{
				Claim:      c,
				Verdict:    models.VerdictVerified,
				Method:     models.MatchSemantic,
				Confidence: ConfidenceSemantic,
			}
		}
	}

	if c.Type == models.ClaimNumeric && contradicted(c, source) {
		return models.ClaimVerification{
			Claim:   c,
			Verdict: models.VerdictContradicted,
			Method:  models.MatchNone,
			Detail:  "source states a conflicting value",
		}
	}

	return models.ClaimVerification{
		Claim:   c,
		Verdict: models.VerdictUnverified,
		Method:  models.MatchNone,
	}
}

func highValue(c models.Claim) bool {
	return c.Type == models.ClaimNumeric || c.Type == models.ClaimQuote
}

// fuzzyMatch tries normalized span variants, then compares the claim
// sentence against candidate source sentences with edit distance.
// Candidates are limited to sentences sharing a numeric token or a long
// word with the span, which keeps the comparison near-linear.
func fuzzyMatch(c models.Claim, source string) bool {
	for _, variant := range spanVariants(c.Span) {
		if variant != "" && strings.Contains(source, variant) {
			return true
		}
	}

	claimSentence := normalize(c.Sentence)
	anchors := matchAnchors(normalize(c.Span))
	if len(anchors) == 0 {
		return false
	}

	for _, sent := range splitSentences(source) {
		if !containsAnyAnchor(sent, anchors) {
			continue
		}
		if similarity(claimSentence, sent) >= fuzzySentenceThreshold {
			return true
		}
	}
	return false
}

// matchAnchors picks the tokens a candidate sentence must share with the
// claim span: its numbers, or failing that its longer words.
func matchAnchors(span string) []string {
	if nums := numbersIn(span); len(nums) > 0 {
		return nums
	}
	var words []string
	for _, w := range strings.Fields(span) {
		if len(w) >= 5 {
			words = append(words, w)
		}
	}
	return words
}

func containsAnyAnchor(s string, anchors []string) bool {
	for _, a := range anchors {
		if strings.Contains(s, a) {
			return true
		}
	}
	return false
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	max := len([]rune(a))
	if l := len([]rune(b)); l > max {
		max = l
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(max)
}

// contradicted reports whether the source states a different value in the
// same unit context as a numeric claim, while never stating the claimed
// value. Deliberately conservative: anything weaker stays unverified.
func contradicted(c models.Claim, source string) bool {
	span := normalize(c.Span)
	nums := numbersIn(span)
	if len(nums) == 0 {
		return false
	}
	claimValue := nums[0]
	unit := strings.TrimSpace(strings.TrimPrefix(span, claimValue))
	if unit == "" {
		return false
	}

	sawConflict := false
	for _, sent := range splitSentences(source) {
		if !strings.Contains(sent, unit) {
			continue
		}
		for _, n := range numbersIn(sent) {
			if n == claimValue {
				return false
			}
			sawConflict = true
		}
	}
	return sawConflict
}
