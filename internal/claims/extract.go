// Package claims extracts atomic factual claims from draft text and
// verifies them against fetched source content. It is the decision core
// of the validation gate: extraction and matching are deterministic given
// identical draft text and source states.
package claims

import (
	"regexp"
	"strings"

	"github.com/inkforge/inkforge/internal/models"
)

var (
	// Markdown-style inline citation: [label](https://example.com/page)
	citationPattern = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)

	// Numeric token with a unit, percentage, or currency.
	numericPattern = regexp.MustCompile(`(?i)(\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:thousand|million|billion|trillion|k|m|bn))?|\b\d[\d,]*(?:\.\d+)?\s?(?:%|percent(?:age points?)?|bps|thousand|million|billion|trillion|km|kg|mi|lbs?|gb|tb|mw|gwh?|kwh|hours?|years?|users|customers|employees|people|countries|dollars|usd|eur))`)

	// Attributed phrase: "according to <source>".
	attributedPattern = regexp.MustCompile(`(?i)according to\s+([^,.;:]{2,80})`)

	// Direct quotation of meaningful length.
	quotedPattern = regexp.MustCompile(`"([^"]{12,240})"`)

	// Date-qualified statement: a preposition anchored to a year or
	// month-year.
	datedPattern = regexp.MustCompile(`(?i)\b(?:in|since|by|as of|during|between)\s+(?:(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+)?(?:19|20)\d{2}\b`)

	sentenceSplit = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// ExtractionResult is everything the validator needs from a draft.
type ExtractionResult struct {
	Claims []models.Claim
	// CitationURLs lists every inline citation in document order,
	// duplicates included.
	CitationURLs []string
}

// Extract scans draft text for checkable factual assertions: numeric
// quantities with units, attributed or quoted statements, and
// date-qualified facts. Claims without any inline citation are tagged
// uncited and count as verification failures without a fetch.
func Extract(draft string) ExtractionResult {
	var result ExtractionResult

	for _, m := range citationPattern.FindAllStringSubmatch(draft, -1) {
		result.CitationURLs = append(result.CitationURLs, m[2])
	}

	for _, sentence := range splitSentences(draft) {
		citation := ""
		if m := citationPattern.FindStringSubmatch(sentence); m != nil {
			citation = m[2]
		}
		// Matching runs against prose, not link syntax.
		prose := stripCitations(sentence)

		claimed := false
		for _, span := range numericPattern.FindAllString(prose, -1) {
			result.Claims = append(result.Claims, newClaim(prose, span, models.ClaimNumeric, citation))
			claimed = true
		}
		if m := attributedPattern.FindStringSubmatch(prose); m != nil {
			span := strings.TrimSpace(m[0])
			result.Claims = append(result.Claims, newClaim(prose, span, models.ClaimQuote, citation))
			claimed = true
		} else if m := quotedPattern.FindStringSubmatch(prose); m != nil {
			result.Claims = append(result.Claims, newClaim(prose, m[1], models.ClaimQuote, citation))
			claimed = true
		}
		if !claimed {
			if m := datedPattern.FindString(prose); m != "" {
				result.Claims = append(result.Claims, newClaim(prose, m, models.ClaimDated, citation))
			}
		}
	}

	return result
}

func newClaim(sentence, span string, typ models.ClaimType, citation string) models.Claim {
	return models.Claim{
		Sentence:    strings.TrimSpace(sentence),
		Span:        strings.TrimSpace(span),
		Type:        typ,
		CitationURL: citation,
		Uncited:     citation == "",
	}
}

// stripCitations replaces markdown links with their label text.
func stripCitations(s string) string {
	return citationPattern.ReplaceAllString(s, "$1")
}

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
