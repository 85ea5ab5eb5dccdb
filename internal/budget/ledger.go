// Package budget tracks token and cost usage per run and role. The ledger
// is the source of the cost totals reported in run metadata.
package budget

import (
	"sort"
	"sync"

	"github.com/inkforge/inkforge/internal/metrics"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/pricing"
)

// RoleUsage is the accumulated spend for one role within a run.
type RoleUsage struct {
	Role         string  `json:"role"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Totals is the run-wide rollup.
type Totals struct {
	Tokens  int         `json:"tokens"`
	CostUSD float64     `json:"cost_usd"`
	ByRole  []RoleUsage `json:"by_role"`
}

// Ledger is the process-wide usage accountant. Lock-protected; activities
// from concurrent phases record into it safely.
type Ledger struct {
	prices *pricing.Table

	mu   sync.Mutex
	runs map[string]map[string]*RoleUsage
}

// NewLedger builds a ledger priced by the given table.
func NewLedger(prices *pricing.Table) *Ledger {
	return &Ledger{
		prices: prices,
		runs:   make(map[string]map[string]*RoleUsage),
	}
}

// Record accounts one task execution against its run and role and returns
// the priced cost of the call.
func (l *Ledger) Record(runID, role string, tier models.ModelTier, usage models.TokenUsage) float64 {
	cost := l.prices.Cost(tier, usage)

	l.mu.Lock()
	roles, ok := l.runs[runID]
	if !ok {
		roles = make(map[string]*RoleUsage)
		l.runs[runID] = roles
	}
	ru, ok := roles[role]
	if !ok {
		ru = &RoleUsage{Role: role}
		roles[role] = ru
	}
	ru.Calls++
	ru.InputTokens += usage.InputTokens
	ru.OutputTokens += usage.OutputTokens
	ru.CostUSD += cost
	l.mu.Unlock()

	metrics.TaskTokens.WithLabelValues(role).Observe(float64(usage.Total()))
	metrics.TaskCostUSD.WithLabelValues(role).Observe(cost)
	return cost
}

// Totals returns the rollup for a run. Roles come back in stable
// lexicographic order.
func (l *Ledger) Totals(runID string) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()

	var t Totals
	roles := l.runs[runID]
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ru := roles[name]
		t.Tokens += ru.InputTokens + ru.OutputTokens
		t.CostUSD += ru.CostUSD
		t.ByRole = append(t.ByRole, *ru)
	}
	return t
}

// Release drops accounting for a finished run.
func (l *Ledger) Release(runID string) {
	l.mu.Lock()
	delete(l.runs, runID)
	l.mu.Unlock()
}
