// README: Order aggregate, assignment sub-record, and status definitions.
package order

import (
	"time"

	"fieldops/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TrackingStage is the fine-grained sub-state of an order that has a
// specialist on the job. StageNone means no stage has been reported yet.
type TrackingStage string

const (
	StageNone             TrackingStage = ""
	StageMoving           TrackingStage = "moving"
	StageArrived          TrackingStage = "arrived"
	StageWaiting          TrackingStage = "waiting"
	StageWorking          TrackingStage = "working"
	StageInvoiceRequested TrackingStage = "invoice_requested"
	StagePaymentReceived  TrackingStage = "payment_received"
)

// ReadinessStatus tracks the specialist's pre-booking confirmation.
// ReadinessNone means no readiness check has been issued.
type ReadinessStatus string

const (
	ReadinessNone              ReadinessStatus = ""
	ReadinessPending           ReadinessStatus = "pending"
	ReadinessReady             ReadinessStatus = "ready"
	ReadinessNotReady          ReadinessStatus = "not_ready"
	ReadinessNoResponse        ReadinessStatus = "no_response"
	ReadinessNeedsReassignment ReadinessStatus = "needs_reassignment"
)

// Track selects which reminder counter pair an escalation update targets.
type Track string

const (
	TrackReadiness Track = "readiness"
	TrackMovement  Track = "movement"
)

type Order struct {
	ID         types.ID
	CompanyID  types.ID
	CustomerID types.ID

	Status        Status
	TrackingStage TrackingStage

	WaitingStartedAt *time.Time
	WaitingEndsAt    *time.Time

	Readiness               ReadinessStatus
	ReadinessCheckSentAt    *time.Time
	ReadinessReminderCount  int
	ReadinessLastReminderAt *time.Time

	MovementReminderCount  int
	MovementLastReminderAt *time.Time

	// ReadinessPenaltyPct is the surcharge applied once an escalation
	// trigger fires. Zero means no penalty.
	ReadinessPenaltyPct int

	// Booking schedule, kept as the client supplies it. Only used to
	// render time-until-due; the sweeps never read these.
	BookingDate string
	BookingTime string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment is the order x specialist offer record. IsAccepted nil means
// the specialist has not responded yet.
type Assignment struct {
	OrderID      types.ID
	SpecialistID types.ID
	IsAccepted   *bool
	QuotedPrice  *int64
	QuotedAt     *time.Time
	RejectedAt   *time.Time
}

// AllowedStageTransitions represents the tracking flow as code.
var AllowedStageTransitions = map[TrackingStage][]TrackingStage{
	StageNone:             {StageMoving},
	StageMoving:           {StageArrived},
	StageArrived:          {StageWaiting, StageWorking},
	StageWaiting:          {StageWorking},
	StageWorking:          {StageInvoiceRequested},
	StageInvoiceRequested: {StagePaymentReceived},
}

func CanAdvanceStage(from, to TrackingStage) bool {
	next, ok := AllowedStageTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
