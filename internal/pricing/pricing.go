// Package pricing loads the model price table and converts token usage to
// USD cost. The table lives in config/models.yaml and maps tiers to model
// identifiers with per-1K-token input/output prices.
package pricing

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/inkforge/inkforge/internal/models"
)

type modelPrice struct {
	ID            string  `yaml:"id"`
	InputPer1K    float64 `yaml:"input_per_1k"`
	OutputPer1K   float64 `yaml:"output_per_1k"`
	ContextWindow int     `yaml:"context_window"`
}

type table struct {
	Tiers map[string]modelPrice `yaml:"tiers"`
}

// Table is a loaded, immutable price table.
type Table struct {
	mu    sync.RWMutex
	tiers map[string]modelPrice
}

// Defaults used when no price file is present. Values deliberately
// conservative (slightly high) so cost reports never under-state spend.
var defaultTiers = map[string]modelPrice{
	string(models.TierSmall):  {ID: "gpt-5-nano", InputPer1K: 0.00005, OutputPer1K: 0.0004},
	string(models.TierMedium): {ID: "gpt-5-mini", InputPer1K: 0.00025, OutputPer1K: 0.002},
	string(models.TierLarge):  {ID: "gpt-5", InputPer1K: 0.00125, OutputPer1K: 0.01},
}

// Load reads the price table from path. A missing file yields the built-in
// defaults; a malformed file is an error.
func Load(path string) (*Table, error) {
	t := &Table{tiers: make(map[string]modelPrice, len(defaultTiers))}
	for k, v := range defaultTiers {
		t.tiers[k] = v
	}

	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read pricing table: %w", err)
	}

	var raw table
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pricing table %s: %w", path, err)
	}
	for tier, mp := range raw.Tiers {
		if mp.ID == "" {
			return nil, fmt.Errorf("pricing table %s: tier %q missing model id", path, tier)
		}
		t.tiers[tier] = mp
	}
	return t, nil
}

// ModelForTier returns the configured model identifier for a tier.
func (t *Table) ModelForTier(tier models.ModelTier) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if mp, ok := t.tiers[string(tier)]; ok {
		return mp.ID
	}
	return t.tiers[string(models.TierSmall)].ID
}

// Cost converts a token usage on a tier into USD.
func (t *Table) Cost(tier models.ModelTier, usage models.TokenUsage) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mp, ok := t.tiers[string(tier)]
	if !ok {
		mp = t.tiers[string(models.TierSmall)]
	}
	return float64(usage.InputTokens)/1000.0*mp.InputPer1K +
		float64(usage.OutputTokens)/1000.0*mp.OutputPer1K
}
