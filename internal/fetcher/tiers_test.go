package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkforge/inkforge/internal/config"
)

func TestClassify(t *testing.T) {
	tc := NewTierClassifier(config.AuthorityConfig{
		Tier1: []string{"nature.com", "www.who.int"},
		Tier2: []string{"reuters.com", "bbc.com"},
	})

	tests := []struct {
		host string
		want int
	}{
		{"data.census.gov", 1},
		{"mit.edu", 1},
		{"www.nature.com", 1},
		{"who.int", 1},
		{"reuters.com", 2},
		{"www.bbc.com", 2},
		{"feeds.reuters.com", 2},
		{"randomblog.example.com", 3},
		{"", 3},
		// Suffix match must respect label boundaries.
		{"notreuters.com", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tc.Classify(tt.host), "host %q", tt.host)
	}
}
