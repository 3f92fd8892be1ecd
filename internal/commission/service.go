package commission

import (
	"context"
	"time"

	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the outcome of a bulk payout. Partial failure is a result shape,
// not an error: the caller retries the failed subset.
type Result struct {
	Succeeded []uuid.UUID `json:"succeeded"`
	Failed    []uuid.UUID `json:"failed"`
}

// Summary is the per-rep commission report.
type Summary struct {
	RepID             uint `json:"rep_id"`
	OpenCount         int  `json:"open_count"`
	OpenCents         int  `json:"open_cents"`
	PaidCount         int  `json:"paid_count"`
	PaidCents         int  `json:"paid_cents"`
	CommissionPerDeal int  `json:"commission_per_deal_cents"`
}

type Service interface {
	OpenCommissionCents(ctx context.Context, repID uint) (int, error)
	PaidCommissionCents(ctx context.Context, repID uint, month *time.Time) (int, error)
	Summarize(ctx context.Context, repID uint, month *time.Time) (*Summary, error)

	// PayAll settles every eligible order for the rep. Each order is its own
	// unit of work; orders already settled stay settled when a later one
	// fails.
	PayAll(ctx context.Context, repID uint) (*Result, error)
}

type service struct {
	orderRepo       order.Repository
	orderSvc        order.Service
	commissionCents int
}

func NewService(orderRepo order.Repository, orderSvc order.Service, commissionCents int) Service {
	return &service{
		orderRepo:       orderRepo,
		orderSvc:        orderSvc,
		commissionCents: commissionCents,
	}
}

func (s *service) OpenCommissionCents(ctx context.Context, repID uint) (int, error) {
	count, err := s.orderRepo.CountOpenCommission(ctx, repID)
	if err != nil {
		return 0, err
	}
	return count * s.commissionCents, nil
}

func (s *service) PaidCommissionCents(ctx context.Context, repID uint, month *time.Time) (int, error) {
	count, err := s.orderRepo.CountPaidCommission(ctx, repID, month)
	if err != nil {
		return 0, err
	}
	return count * s.commissionCents, nil
}

func (s *service) Summarize(ctx context.Context, repID uint, month *time.Time) (*Summary, error) {
	openCount, err := s.orderRepo.CountOpenCommission(ctx, repID)
	if err != nil {
		return nil, err
	}

	paidCount, err := s.orderRepo.CountPaidCommission(ctx, repID, month)
	if err != nil {
		return nil, err
	}

	return &Summary{
		RepID:             repID,
		OpenCount:         openCount,
		OpenCents:         openCount * s.commissionCents,
		PaidCount:         paidCount,
		PaidCents:         paidCount * s.commissionCents,
		CommissionPerDeal: s.commissionCents,
	}, nil
}

func (s *service) PayAll(ctx context.Context, repID uint) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PayAll"),
		zap.Uint("rep_id", repID),
	)

	eligible, err := s.orderRepo.ListOpenCommission(ctx, repID)
	if err != nil {
		log.Error("failed to list eligible orders", zap.Error(err))
		return nil, err
	}

	result := &Result{
		Succeeded: []uuid.UUID{},
		Failed:    []uuid.UUID{},
	}

	for _, o := range eligible {
		if err := s.orderSvc.PayCommission(ctx, o.ID); err != nil {
			log.Warn("payout failed for order",
				zap.String("order_id", o.ID.String()),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, o.ID)
			continue
		}
		result.Succeeded = append(result.Succeeded, o.ID)
	}

	log.Info("bulk payout finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}
