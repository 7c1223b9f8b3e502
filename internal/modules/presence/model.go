// README: Live status labels and the per-worker signal snapshot they derive from.
package presence

import (
	"time"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

// LiveStatus is the best-effort presence label for a worker. There is no
// authoritative presence channel; the label is fused from assignment
// state, device-registration recency, and the manual availability flag.
type LiveStatus string

const (
	StatusOnline      LiveStatus = "online"
	StatusOffline     LiveStatus = "offline"
	StatusBusy        LiveStatus = "busy"
	StatusNotLoggedIn LiveStatus = "not_logged_in"
	StatusOnTheWay    LiveStatus = "on_the_way"
	StatusWorking     LiveStatus = "working"
)

// ActiveOrder is the worker's accepted, non-terminal assignment as
// resolved from the assignment table (never from the cached pointer).
type ActiveOrder struct {
	OrderID types.ID
	Stage   order.TrackingStage
}

// Snapshot is the read-model input for one worker. Missing related rows
// are legal: a worker with no device row is simply not logged in.
type Snapshot struct {
	WorkerID types.ID
	IsActive bool

	DeviceLastUsedAt *time.Time
	ActiveOrder      *ActiveOrder

	LastResponseKind string // "accepted" or "rejected"
	LastResponseAt   *time.Time
	AcceptedToday    int
	RejectedToday    int
}

// WorkerStatus is the derived output per worker.
type WorkerStatus struct {
	WorkerID         types.ID   `json:"workerId"`
	Status           LiveStatus `json:"status"`
	CurrentOrderID   *types.ID  `json:"currentOrderId,omitempty"`
	AcceptedToday    int        `json:"acceptedToday"`
	RejectedToday    int        `json:"rejectedToday"`
	LastResponseKind string     `json:"lastResponseKind,omitempty"`
	LastResponseAt   *time.Time `json:"lastResponseAt,omitempty"`
}
