package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByRep(ctx context.Context, repID uint) ([]*Order, error)
	ListByStage(ctx context.Context, stage Stage) ([]*Order, error)
	ListRefreshable(ctx context.Context) ([]*Order, error)

	UpdateStageFields(ctx context.Context, id uuid.UUID, change StageChange) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateLiveSnapshot(ctx context.Context, id uuid.UUID, live metrics.Snapshot, refreshedAt time.Time) error
	MarkPaymentCaptured(ctx context.Context, id uuid.UUID) error

	// MarkCommissionPaid settles the commission iff the order is still DONE
	// with an open commission; false means the guard did not match.
	MarkCommissionPaid(ctx context.Context, id uuid.UUID) (bool, error)

	ListOpenCommission(ctx context.Context, repID uint) ([]*Order, error)
	CountOpenCommission(ctx context.Context, repID uint) (int, error)
	CountPaidCommission(ctx context.Context, repID uint, month *time.Time) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, stage, status, payment_status, commission_status,
	payment_method_on_file,
	base_price_cents, discount_cents, total_cents, referral_code,
	place_ref,
	start_bad_1, start_bad_2, start_bad_3, start_bad_legacy,
	start_total_reviews, start_average_rating,
	live_bad_1, live_bad_2, live_bad_3, live_bad_legacy,
	live_total_reviews, live_average_rating,
	last_refreshed_at,
	created_by, team_id, org_id,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Stage, &o.Status, &o.PaymentStatus, &o.CommissionStatus,
		&o.PaymentMethodOnFile,
		&o.BasePriceCents, &o.DiscountCents, &o.TotalCents, &o.ReferralCode,
		&o.PlaceRef,
		&o.Start.Bad1, &o.Start.Bad2, &o.Start.Bad3, &o.Start.LegacyBadTotal,
		&o.Start.TotalReviews, &o.Start.AverageRating,
		&o.Live.Bad1, &o.Live.Bad2, &o.Live.Bad3, &o.Live.LegacyBadTotal,
		&o.Live.TotalReviews, &o.Live.AverageRating,
		&o.LastRefreshedAt,
		&o.CreatedBy, &o.TeamID, &o.OrgID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) Insert(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Insert"),
		zap.String("order_id", o.ID.String()),
	)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, stage, status, payment_status, commission_status,
			payment_method_on_file,
			base_price_cents, discount_cents, total_cents, referral_code,
			place_ref,
			start_bad_1, start_bad_2, start_bad_3, start_bad_legacy,
			start_total_reviews, start_average_rating,
			created_by, team_id, org_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		o.ID, o.Stage, o.Status, o.PaymentStatus, o.CommissionStatus,
		o.PaymentMethodOnFile,
		o.BasePriceCents, o.DiscountCents, o.TotalCents, o.ReferralCode,
		o.PlaceRef,
		o.Start.Bad1, o.Start.Bad2, o.Start.Bad3, o.Start.LegacyBadTotal,
		o.Start.TotalReviews, o.Start.AverageRating,
		o.CreatedBy, o.TeamID, o.OrgID, o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	log.Info("order inserted")
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) listWhere(ctx context.Context, where string, args ...any) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListByRep(ctx context.Context, repID uint) ([]*Order, error) {
	return r.listWhere(ctx, `created_by = $1`, repID)
}

func (r *repository) ListByStage(ctx context.Context, stage Stage) ([]*Order, error) {
	return r.listWhere(ctx, `stage = $1`, stage)
}

func (r *repository) ListRefreshable(ctx context.Context) ([]*Order, error) {
	return r.listWhere(ctx, `place_ref IS NOT NULL AND stage != $1`, StageDone)
}

func (r *repository) ListOpenCommission(ctx context.Context, repID uint) ([]*Order, error) {
	return r.listWhere(ctx,
		`created_by = $1 AND stage = $2 AND commission_status = $3`,
		repID, StageDone, CommissionOpen,
	)
}

func (r *repository) UpdateStageFields(ctx context.Context, id uuid.UUID, change StageChange) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET stage = $1,
		    status = $2,
		    payment_status = $3,
		    commission_status = $4,
		    updated_at = NOW()
		WHERE id = $5
	`,
		change.Stage, change.Status, change.PaymentStatus, change.CommissionStatus, id,
	)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) UpdateLiveSnapshot(ctx context.Context, id uuid.UUID, live metrics.Snapshot, refreshedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET live_bad_1 = $1,
		    live_bad_2 = $2,
		    live_bad_3 = $3,
		    live_bad_legacy = $4,
		    live_total_reviews = $5,
		    live_average_rating = $6,
		    last_refreshed_at = $7,
		    updated_at = NOW()
		WHERE id = $8
	`,
		live.Bad1, live.Bad2, live.Bad3, live.LegacyBadTotal,
		live.TotalReviews, live.AverageRating,
		refreshedAt, id,
	)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) MarkPaymentCaptured(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2
	`, PaymentPaid, id)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) MarkCommissionPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	// Guarded single-row write: the payout only lands while the order is
	// still DONE with an open commission.
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET commission_status = $1,
		    status = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND stage = $4
		  AND commission_status = $5
	`,
		CommissionPaid, StatusCommissionPaid, id, StageDone, CommissionOpen,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) CountOpenCommission(ctx context.Context, repID uint) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE created_by = $1 AND stage = $2 AND commission_status = $3
	`, repID, StageDone, CommissionOpen).Scan(&count)

	return count, err
}

func (r *repository) CountPaidCommission(ctx context.Context, repID uint, month *time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM orders
		WHERE created_by = $1 AND commission_status = $2
	`
	args := []any{repID, CommissionPaid}

	if month != nil {
		query += ` AND DATE_TRUNC('month', updated_at) = DATE_TRUNC('month', $3::timestamptz)`
		args = append(args, *month)
	}

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}
