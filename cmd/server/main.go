package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"reviewguard-be/internal/commission"
	"reviewguard-be/internal/config"
	"reviewguard-be/internal/db"
	"reviewguard-be/internal/httpapi"
	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/metrics"
	"reviewguard-be/internal/middleware"
	"reviewguard-be/internal/order"
	"reviewguard-be/internal/referral"
	"reviewguard-be/internal/review"
	"reviewguard-be/internal/user"
	"reviewguard-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// logGateway stands in for the PSP client. It acknowledges every capture so
// the lifecycle can be exercised end to end without a payment network.
type logGateway struct{}

func (logGateway) Capture(ctx context.Context, orderID uuid.UUID, amountCents int) error {
	logger.FromCtx(ctx).Info("payment captured",
		zap.String("order_id", orderID.String()),
		zap.Int("amount_cents", amountCents),
	)
	return nil
}

// unconfiguredSource stands in for the places integration. Every lookup
// fails, so sweeps keep previous counts until a real source is wired.
type unconfiguredSource struct{}

func (unconfiguredSource) FetchCounts(ctx context.Context, placeRef string) (metrics.Snapshot, error) {
	return metrics.Snapshot{}, errors.New("places source not configured")
}

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	referralRepo := referral.NewRepository(database)
	referralSvc := referral.NewService(referralRepo)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, referralSvc, logGateway{}, order.Config{
		ChargeThresholdPct:    cfg.ChargeThresholdPct,
		FallbackDiscountCents: cfg.FallbackDiscountCents,
	})

	commissionSvc := commission.NewService(orderRepo, orderSvc, cfg.CommissionCents)

	userRepo := user.NewRepository(database)
	userSvc := user.NewService(userRepo)

	if cfg.RefreshIntervalMin > 0 {
		refresher := review.NewRefresher(orderRepo, orderSvc, unconfiguredSource{})
		go refresher.Run(context.Background(), time.Duration(cfg.RefreshIntervalMin)*time.Minute)
	}

	h := httpapi.NewHandler(orderSvc, commissionSvc, referralSvc, userSvc)
	mux := h.Routes(func(next http.Handler) http.Handler {
		return middleware.RequireRole(utils.RoleAdmin, next)
	})

	// Auth must run before the limiter so authenticated callers are keyed
	// by user id rather than sharing their NAT's address bucket.
	var handler http.Handler = mux
	handler = middleware.RateLimitMiddleware(handler)
	handler = middleware.AuthMiddleware(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)

	log.Printf("server running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, handler))
}
