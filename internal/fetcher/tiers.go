package fetcher

import (
	"strings"

	"github.com/inkforge/inkforge/internal/config"
)

// TierClassifier maps source hostnames to authority tiers:
// 1 = regulatory/academic, 2 = major media/institutions, 3 = general.
type TierClassifier struct {
	tier1 []string
	tier2 []string
}

// Built-in tier-1 TLD suffixes; configured domains extend these.
var tier1Suffixes = []string{".gov", ".edu", ".mil", ".int"}

// NewTierClassifier builds a classifier from the authority lists.
func NewTierClassifier(cfg config.AuthorityConfig) *TierClassifier {
	norm := func(domains []string) []string {
		out := make([]string, 0, len(domains))
		for _, d := range domains {
			d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "www."))
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}
	return &TierClassifier{tier1: norm(cfg.Tier1), tier2: norm(cfg.Tier2)}
}

// Classify returns the tier for a hostname. Unknown hosts are tier 3.
func (t *TierClassifier) Classify(host string) int {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if host == "" {
		return 3
	}

	for _, suffix := range tier1Suffixes {
		if strings.HasSuffix(host, suffix) {
			return 1
		}
	}
	if matchesDomain(host, t.tier1) {
		return 1
	}
	if matchesDomain(host, t.tier2) {
		return 2
	}
	return 3
}

// matchesDomain reports whether host equals or is a subdomain of any entry.
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
