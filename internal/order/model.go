package order

import (
	"time"

	"reviewguard-be/internal/metrics"

	"github.com/google/uuid"
)

// Stage is the coarse admin-controlled kanban column.
type Stage string

const (
	StageInbox       Stage = "INBOX"
	StageProcessing  Stage = "PROCESSING"
	StageSuccessOpen Stage = "SUCCESS_OPEN"
	StageDone        Stage = "DONE"
)

// Status is the fine-grained customer-facing label. Stage transitions derive
// it, but an admin override may set it independently.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusProcessing     Status = "PROCESSING"
	StatusWaitingPayment Status = "WAITING_PAYMENT"
	StatusPaidDeleted    Status = "PAID_DELETED"
	StatusCommissionPaid Status = "COMMISSION_PAID"
)

type PaymentStatus string

const (
	PaymentOpen       PaymentStatus = "open"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
)

type CommissionStatus string

const (
	CommissionOpen CommissionStatus = "OPEN"
	CommissionPaid CommissionStatus = "PAID"
)

// Order is one customer engagement: remove the bad reviews captured in the
// start snapshot, charge once enough of them are gone.
type Order struct {
	ID uuid.UUID

	Stage            Stage
	Status           Status
	PaymentStatus    PaymentStatus
	CommissionStatus CommissionStatus

	PaymentMethodOnFile bool

	BasePriceCents int
	DiscountCents  int
	TotalCents     int
	ReferralCode   *string

	// PlaceRef identifies the business at the external places integration;
	// orders without one are skipped by the refresh job.
	PlaceRef *string

	Start           metrics.Snapshot
	Live            metrics.Snapshot
	LastRefreshedAt *time.Time

	CreatedBy uint
	TeamID    uint
	OrgID     uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

var validStages = map[Stage]bool{
	StageInbox:       true,
	StageProcessing:  true,
	StageSuccessOpen: true,
	StageDone:        true,
}

var validStatuses = map[Status]bool{
	StatusNew:            true,
	StatusProcessing:     true,
	StatusWaitingPayment: true,
	StatusPaidDeleted:    true,
	StatusCommissionPaid: true,
}

// statusForStage is the default status derivation. COMMISSION_PAID is never
// derived; only the explicit payout action reaches it.
func statusForStage(stage Stage) Status {
	switch stage {
	case StageInbox:
		return StatusNew
	case StageProcessing:
		return StatusProcessing
	case StageSuccessOpen:
		return StatusWaitingPayment
	case StageDone:
		return StatusPaidDeleted
	}
	return StatusNew
}

// StageChange reports the fields a stage move settled on.
type StageChange struct {
	Stage            Stage            `json:"stage"`
	Status           Status           `json:"status"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	CommissionStatus CommissionStatus `json:"commission_status"`
	NoOp             bool             `json:"no_op"`
}

// deriveStageChange applies the transition table to the current order state.
// The leaving-DONE reset fires together with the destination derivation.
func deriveStageChange(o *Order, newStage Stage) StageChange {
	if o.Stage == newStage {
		return StageChange{
			Stage:            o.Stage,
			Status:           o.Status,
			PaymentStatus:    o.PaymentStatus,
			CommissionStatus: o.CommissionStatus,
			NoOp:             true,
		}
	}

	change := StageChange{
		Stage:            newStage,
		Status:           statusForStage(newStage),
		PaymentStatus:    o.PaymentStatus,
		CommissionStatus: o.CommissionStatus,
	}

	if newStage == StageDone {
		change.PaymentStatus = PaymentPaid
	}
	if o.Stage == StageDone {
		change.PaymentStatus = PaymentOpen
		change.CommissionStatus = CommissionOpen
	}

	return change
}
