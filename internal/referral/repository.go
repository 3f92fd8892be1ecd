package referral

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Code, error)
	GetByReferrerOrder(ctx context.Context, orderID uuid.UUID) (*Code, error)
	Insert(ctx context.Context, c *Code) error

	// TryRedeem consumes one use iff the cap has not been reached. The false
	// return means a concurrent redeemer won the last use (or the cap was
	// already hit); it is not an error.
	TryRedeem(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Code, error) {
	query := `
		SELECT code, referrer_order_id, discount_cents, max_uses, uses_count,
		       active, expires_at, created_at
		FROM referral_codes
		WHERE code = $1
	`

	var c Code
	err := r.db.QueryRowContext(ctx, query, code).
		Scan(
			&c.Code,
			&c.ReferrerOrderID,
			&c.DiscountCents,
			&c.MaxUses,
			&c.UsesCount,
			&c.Active,
			&c.ExpiresAt,
			&c.CreatedAt,
		)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repository) GetByReferrerOrder(ctx context.Context, orderID uuid.UUID) (*Code, error) {
	query := `
		SELECT code, referrer_order_id, discount_cents, max_uses, uses_count,
		       active, expires_at, created_at
		FROM referral_codes
		WHERE referrer_order_id = $1
	`

	var c Code
	err := r.db.QueryRowContext(ctx, query, orderID).
		Scan(
			&c.Code,
			&c.ReferrerOrderID,
			&c.DiscountCents,
			&c.MaxUses,
			&c.UsesCount,
			&c.Active,
			&c.ExpiresAt,
			&c.CreatedAt,
		)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repository) Insert(ctx context.Context, c *Code) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_codes (
			code, referrer_order_id, discount_cents,
			max_uses, uses_count, active, expires_at
		) VALUES ($1,$2,$3,$4,0,TRUE,$5)
	`,
		c.Code,
		c.ReferrerOrderID,
		c.DiscountCents,
		c.MaxUses,
		c.ExpiresAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAlreadyMinted
	}

	return err
}

func (r *repository) TryRedeem(ctx context.Context, code string) (bool, error) {
	// The cap check must live in the same statement as the increment.
	// A read-then-write pair would let N concurrent redeemers each see
	// uses_count = max_uses - 1 and all succeed.
	res, err := r.db.ExecContext(ctx, `
		UPDATE referral_codes
		SET uses_count = uses_count + 1
		WHERE code = $1
		  AND uses_count < max_uses
	`, code)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
