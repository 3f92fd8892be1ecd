package order

import (
	"context"
	"fmt"
	"time"

	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/metrics"
	"reviewguard-be/internal/referral"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentGateway is the external card-network collaborator. The engine only
// decides whether a capture is permitted; the charge itself happens out
// there.
type PaymentGateway interface {
	Capture(ctx context.Context, orderID uuid.UUID, amountCents int) error
}

// Config carries the engine knobs the lifecycle needs.
type Config struct {
	ChargeThresholdPct float64

	// FallbackDiscountCents is the business-policy discount applied when a
	// presented code fails validation non-fatally. Zero disables it. The
	// referral ledger itself stays strictly validate-or-reject.
	FallbackDiscountCents int
}

type CheckoutInput struct {
	BasePriceCents      int
	ReferralCode        *string
	PaymentMethodOnFile bool
	PlaceRef            *string
	Start               metrics.Snapshot
	CreatedBy           uint
	TeamID              uint
	OrgID               uint
}

type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByRep(ctx context.Context, repID uint) ([]*Order, error)
	ListByStage(ctx context.Context, stage Stage) ([]*Order, error)

	// OnStageChange applies the transition table and returns the settled
	// fields. A same-stage move is a no-op and writes nothing.
	OnStageChange(ctx context.Context, orderID uuid.UUID, newStage Stage) (StageChange, error)

	// OverrideStatus is the audited admin escape hatch: it sets the
	// customer-facing status directly, bypassing derivation.
	OverrideStatus(ctx context.Context, orderID uuid.UUID, status Status) error

	RefreshSnapshots(ctx context.Context, orderID uuid.UUID, live metrics.Snapshot, now time.Time) error
	Progress(o *Order) metrics.Progress

	CanCapturePayment(o *Order) bool
	CapturePayment(ctx context.Context, orderID uuid.UUID) error

	CanPayCommission(o *Order) bool
	PayCommission(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo        Repository
	referralSvc referral.Service
	gateway     PaymentGateway
	cfg         Config
}

func NewService(repo Repository, referralSvc referral.Service, gateway PaymentGateway, cfg Config) Service {
	return &service{
		repo:        repo,
		referralSvc: referralSvc,
		gateway:     gateway,
		cfg:         cfg,
	}
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Uint("created_by", input.CreatedBy),
	)

	log.Info("checkout started")

	now := time.Now()
	discount := 0
	var storedCode *string

	// The ledger is consulted exactly once per checkout; rejections are
	// non-fatal and the order proceeds at full price unless the fallback
	// policy grants the generic discount.
	if input.ReferralCode != nil && *input.ReferralCode != "" {
		normalized := referral.Normalize(*input.ReferralCode)

		red, err := s.referralSvc.ValidateAndRedeem(ctx, normalized, now)
		if err != nil {
			log.Error("referral ledger unavailable", zap.Error(err))
			return nil, fmt.Errorf("redeem referral code: %w", err)
		}

		switch {
		case red.Applied:
			discount = red.DiscountCents
			storedCode = &normalized
			log.Info("referral code applied",
				zap.String("code", normalized),
				zap.Int("discount_cents", discount),
			)
		case s.cfg.FallbackDiscountCents > 0:
			discount = s.cfg.FallbackDiscountCents
			storedCode = &normalized
			log.Info("referral code rejected, fallback discount applied",
				zap.String("code", normalized),
				zap.String("reason", string(red.Reason)),
				zap.Int("discount_cents", discount),
			)
		default:
			log.Info("referral code rejected",
				zap.String("code", normalized),
				zap.String("reason", string(red.Reason)),
			)
		}
	}

	total := input.BasePriceCents - discount
	if total < 0 {
		total = 0
	}

	o := &Order{
		ID:                  uuid.New(),
		Stage:               StageInbox,
		Status:              StatusNew,
		PaymentStatus:       PaymentOpen,
		CommissionStatus:    CommissionOpen,
		PaymentMethodOnFile: input.PaymentMethodOnFile,
		BasePriceCents:      input.BasePriceCents,
		DiscountCents:       discount,
		TotalCents:          total,
		ReferralCode:        storedCode,
		PlaceRef:            input.PlaceRef,
		Start:               input.Start,
		CreatedBy:           input.CreatedBy,
		TeamID:              input.TeamID,
		OrgID:               input.OrgID,
		CreatedAt:           now,
	}

	if err := s.repo.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	log.Info("checkout completed",
		zap.String("order_id", o.ID.String()),
		zap.Int("total_cents", o.TotalCents),
	)

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByRep(ctx context.Context, repID uint) ([]*Order, error) {
	return s.repo.ListByRep(ctx, repID)
}

func (s *service) ListByStage(ctx context.Context, stage Stage) ([]*Order, error) {
	if !validStages[stage] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return s.repo.ListByStage(ctx, stage)
}

func (s *service) OnStageChange(ctx context.Context, orderID uuid.UUID, newStage Stage) (StageChange, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "OnStageChange"),
		zap.String("order_id", orderID.String()),
		zap.String("new_stage", string(newStage)),
	)

	if !validStages[newStage] {
		log.Warn("stage rejected")
		return StageChange{}, fmt.Errorf("%w: %s", ErrUnknownStage, newStage)
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return StageChange{}, err
	}

	change := deriveStageChange(o, newStage)
	if change.NoOp {
		log.Debug("same-stage move, nothing to do")
		return change, nil
	}

	if err := s.repo.UpdateStageFields(ctx, orderID, change); err != nil {
		log.Error("failed to apply stage change", zap.Error(err))
		return StageChange{}, err
	}

	log.Info("stage changed",
		zap.String("from", string(o.Stage)),
		zap.String("status", string(change.Status)),
		zap.String("payment_status", string(change.PaymentStatus)),
		zap.String("commission_status", string(change.CommissionStatus)),
	)

	return change, nil
}

func (s *service) OverrideStatus(ctx context.Context, orderID uuid.UUID, status Status) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}

	// Overrides bypass derivation, so they get their own audit line.
	logger.FromCtx(ctx).Info("status overridden by admin",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(status)),
	)

	return nil
}

func (s *service) RefreshSnapshots(ctx context.Context, orderID uuid.UUID, live metrics.Snapshot, now time.Time) error {
	return s.repo.UpdateLiveSnapshot(ctx, orderID, live, now)
}

func (s *service) Progress(o *Order) metrics.Progress {
	return metrics.Compute(o.Start, o.Live)
}

func (s *service) CanCapturePayment(o *Order) bool {
	if !o.PaymentMethodOnFile {
		return false
	}
	if o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentProcessing {
		return false
	}

	// DONE is a manual admin attestation that overrides the threshold.
	if o.Stage == StageDone {
		return true
	}

	return s.Progress(o).MeetsThreshold(s.cfg.ChargeThresholdPct)
}

func (s *service) CapturePayment(ctx context.Context, orderID uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CapturePayment"),
		zap.String("order_id", orderID.String()),
	)

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !s.CanCapturePayment(o) {
		log.Warn("capture rejected",
			zap.String("stage", string(o.Stage)),
			zap.String("payment_status", string(o.PaymentStatus)),
			zap.Bool("payment_method_on_file", o.PaymentMethodOnFile),
		)
		return ErrCaptureNotEligible
	}

	if err := s.gateway.Capture(ctx, o.ID, o.TotalCents); err != nil {
		log.Error("gateway capture failed", zap.Error(err))
		return fmt.Errorf("capture payment: %w", err)
	}

	if err := s.repo.MarkPaymentCaptured(ctx, orderID); err != nil {
		return err
	}

	log.Info("payment captured", zap.Int("amount_cents", o.TotalCents))
	return nil
}

func (s *service) CanPayCommission(o *Order) bool {
	return o.Stage == StageDone && o.CommissionStatus != CommissionPaid
}

func (s *service) PayCommission(ctx context.Context, orderID uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PayCommission"),
		zap.String("order_id", orderID.String()),
	)

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !s.CanPayCommission(o) {
		log.Warn("commission payout rejected",
			zap.String("stage", string(o.Stage)),
			zap.String("commission_status", string(o.CommissionStatus)),
		)
		return ErrCommissionNotEligible
	}

	ok, err := s.repo.MarkCommissionPaid(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		// The order moved out of DONE between the read and the write.
		return ErrCommissionNotEligible
	}

	log.Info("commission paid")
	return nil
}
