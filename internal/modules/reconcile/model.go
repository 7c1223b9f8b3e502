// README: Reconciler sweep summary types.
package reconcile

import (
	"time"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

// FixRecord describes one corrective write that was applied.
type FixRecord struct {
	OrderID  types.ID       `json:"orderId"`
	Category order.Category `json:"category"`
}

// ErrorRecord captures a per-row failure without aborting the sweep.
type ErrorRecord struct {
	OrderID  types.ID       `json:"orderId"`
	Category order.Category `json:"category"`
	Error    string         `json:"error"`
}

// Summary is the structured result of one reconciliation pass.
type Summary struct {
	Timestamp   time.Time      `json:"timestamp"`
	TotalFixed  int            `json:"totalFixed"`
	TotalErrors int            `json:"totalErrors"`
	Categories  map[string]int `json:"categories"`
	// StalePointersCleared counts worker current_order_id cache entries
	// whose target order turned out terminal or missing.
	StalePointersCleared int `json:"stalePointersCleared"`
	// DuplicateAcceptsDemoted counts assignment rows demoted to restore
	// the one-accepted-assignment-per-order rule.
	DuplicateAcceptsDemoted int           `json:"duplicateAcceptsDemoted"`
	Fixes                   []FixRecord   `json:"fixes,omitempty"`
	Errors                  []ErrorRecord `json:"errors,omitempty"`
}

func newSummary(now time.Time) *Summary {
	categories := make(map[string]int, len(order.Categories))
	for _, c := range order.Categories {
		categories[string(c)] = 0
	}
	return &Summary{Timestamp: now, Categories: categories}
}
