package review

import (
	"context"
	"time"

	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/metrics"
	"reviewguard-be/internal/order"

	"go.uber.org/zap"
)

// Source looks up current review counts for a business. The real lookup
// lives at the external places integration; the engine only consumes it.
type Source interface {
	FetchCounts(ctx context.Context, placeRef string) (metrics.Snapshot, error)
}

// Refresher walks active orders and stores fresh live counts so the charge
// gate sees current progress.
type Refresher struct {
	orderRepo order.Repository
	orderSvc  order.Service
	source    Source
}

func NewRefresher(orderRepo order.Repository, orderSvc order.Service, source Source) *Refresher {
	return &Refresher{
		orderRepo: orderRepo,
		orderSvc:  orderSvc,
		source:    source,
	}
}

// RefreshOne updates a single order's live snapshot from the source.
func (r *Refresher) RefreshOne(ctx context.Context, o *order.Order) error {
	if o.PlaceRef == nil {
		return nil
	}

	live, err := r.source.FetchCounts(ctx, *o.PlaceRef)
	if err != nil {
		return err
	}

	return r.orderSvc.RefreshSnapshots(ctx, o.ID, live, time.Now())
}

// RefreshAll sweeps every refreshable order. A failed lookup skips that
// order and keeps its previous counts; the sweep continues.
func (r *Refresher) RefreshAll(ctx context.Context) (refreshed, failed int, err error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RefreshAll"),
	)

	orders, err := r.orderRepo.ListRefreshable(ctx)
	if err != nil {
		log.Error("failed to list refreshable orders", zap.Error(err))
		return 0, 0, err
	}

	for _, o := range orders {
		if err := r.RefreshOne(ctx, o); err != nil {
			log.Warn("refresh failed for order",
				zap.String("order_id", o.ID.String()),
				zap.Error(err),
			)
			failed++
			continue
		}
		refreshed++
	}

	log.Info("refresh sweep finished",
		zap.Int("refreshed", refreshed),
		zap.Int("failed", failed),
	)

	return refreshed, failed, nil
}

// Run drives periodic sweeps until the context is canceled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, _ = r.RefreshAll(ctx)
		}
	}
}
