package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewguard-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// How often the read-validate-redeem cycle restarts when the conditional
// update loses a race before giving up as exhausted.
const redeemRetries = 3

const codeLength = 8

type Service interface {
	// ValidateAndRedeem consumes one use of the presented code. Rejections
	// come back as an unapplied Redemption with a reason; the error return is
	// reserved for storage outages. The caller must invoke this at most once
	// per checkout.
	ValidateAndRedeem(ctx context.Context, code string, now time.Time) (Redemption, error)

	// Mint creates the share-your-code voucher for a completed order. Minting
	// twice for the same order returns the existing code.
	Mint(ctx context.Context, referrerOrderID uuid.UUID, discountCents, maxUses int, ttl time.Duration) (*Code, error)

	// CodeForOrder looks up the voucher minted for an order.
	CodeForOrder(ctx context.Context, referrerOrderID uuid.UUID) (*Code, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ValidateAndRedeem(ctx context.Context, code string, now time.Time) (Redemption, error) {
	normalized := Normalize(code)

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ValidateAndRedeem"),
		zap.String("code", normalized),
	)

	for attempt := 0; attempt < redeemRetries; attempt++ {
		c, err := s.repo.GetByCode(ctx, normalized)
		if errors.Is(err, ErrCodeNotFound) {
			log.Debug("code not found")
			return Redemption{Reason: ReasonNotFound}, nil
		}
		if err != nil {
			log.Error("failed to load referral code", zap.Error(err))
			return Redemption{}, fmt.Errorf("load referral code: %w", err)
		}

		if reason, ok := c.validate(now); !ok {
			log.Debug("code rejected", zap.String("reason", string(reason)))
			return Redemption{Reason: reason}, nil
		}

		ok, err := s.repo.TryRedeem(ctx, normalized)
		if err != nil {
			log.Error("failed to redeem referral code", zap.Error(err))
			return Redemption{}, fmt.Errorf("redeem referral code: %w", err)
		}

		if ok {
			log.Info("code redeemed",
				zap.Int("discount_cents", c.DiscountCents),
				zap.Int("attempt", attempt+1),
			)
			return Redemption{Applied: true, DiscountCents: c.DiscountCents}, nil
		}

		// Lost the race; re-read and re-validate before trying again.
	}

	log.Warn("code exhausted under contention")
	return Redemption{Reason: ReasonExhausted}, nil
}

func (s *service) Mint(ctx context.Context, referrerOrderID uuid.UUID, discountCents, maxUses int, ttl time.Duration) (*Code, error) {
	if maxUses < 1 {
		return nil, errors.New("max uses must be at least 1")
	}

	c := &Code{
		Code:            generateCode(),
		ReferrerOrderID: &referrerOrderID,
		DiscountCents:   discountCents,
		MaxUses:         maxUses,
		Active:          true,
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		c.ExpiresAt = &exp
	}

	err := s.repo.Insert(ctx, c)
	if errors.Is(err, ErrAlreadyMinted) {
		return s.repo.GetByReferrerOrder(ctx, referrerOrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("mint referral code: %w", err)
	}

	return c, nil
}

func (s *service) CodeForOrder(ctx context.Context, referrerOrderID uuid.UUID) (*Code, error) {
	return s.repo.GetByReferrerOrder(ctx, referrerOrderID)
}

func generateCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return raw[:codeLength]
}
