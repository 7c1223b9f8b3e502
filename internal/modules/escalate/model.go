// README: Escalation sweep result types.
package escalate

import (
	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

// Result is the outcome of one reminder attempt.
type Result struct {
	OrderID       types.ID    `json:"orderId"`
	Type          order.Track `json:"type"`
	ReminderCount int         `json:"reminderCount"`
	Success       bool        `json:"success"`
	Error         string      `json:"error,omitempty"`
}

// Summary is the structured result of one escalation pass.
type Summary struct {
	// Skipped reports that another trigger source held the sweep lock.
	Skipped           bool     `json:"skipped,omitempty"`
	PendingReminders  int      `json:"pendingReminders"`
	MovementReminders int      `json:"movementReminders"`
	Results           []Result `json:"results"`
}
