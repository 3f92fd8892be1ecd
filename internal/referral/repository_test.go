package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeRows(c *Code) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"code", "referrer_order_id", "discount_cents", "max_uses",
		"uses_count", "active", "expires_at", "created_at",
	}).AddRow(
		c.Code, c.ReferrerOrderID, c.DiscountCents, c.MaxUses,
		c.UsesCount, c.Active, c.ExpiresAt, time.Now(),
	)
}

func TestRepository_GetByCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		stored := &Code{
			Code:          "SAVE50",
			DiscountCents: 5000,
			MaxUses:       10,
			UsesCount:     3,
			Active:        true,
		}

		mock.ExpectQuery(`SELECT code, referrer_order_id, .* FROM referral_codes WHERE code = \$1`).
			WithArgs("SAVE50").
			WillReturnRows(codeRows(stored))

		c, err := repo.GetByCode(ctx, "SAVE50")
		assert.NoError(t, err)
		assert.Equal(t, 5000, c.DiscountCents)
		assert.Equal(t, 3, c.UsesCount)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM referral_codes WHERE code = \$1`).
			WithArgs("NOPE").
			WillReturnRows(sqlmock.NewRows([]string{"code"}))

		_, err := repo.GetByCode(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM referral_codes`).
			WillReturnError(errors.New("db error"))

		_, err := repo.GetByCode(ctx, "SAVE50")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCodeNotFound)
	})
}

func TestRepository_TryRedeem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	query := `UPDATE referral_codes SET uses_count = uses_count \+ 1 WHERE code = \$1 AND uses_count < max_uses`

	t.Run("ConsumesOneUse", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("SAVE50").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.TryRedeem(ctx, "SAVE50")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CapReachedAffectsNoRows", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("SAVE50").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.TryRedeem(ctx, "SAVE50")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("SAVE50").
			WillReturnError(errors.New("db error"))

		_, err := repo.TryRedeem(ctx, "SAVE50")
		assert.Error(t, err)
	})
}

func TestRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO referral_codes`).
			WithArgs("AB12CD34", orderID, 2500, 5, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Insert(ctx, &Code{
			Code:            "AB12CD34",
			ReferrerOrderID: &orderID,
			DiscountCents:   2500,
			MaxUses:         5,
			Active:          true,
		})
		assert.NoError(t, err)
	})

	t.Run("DuplicateOriginatingOrder", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO referral_codes`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Insert(ctx, &Code{
			Code:            "EF56GH78",
			ReferrerOrderID: &orderID,
			MaxUses:         5,
		})
		assert.ErrorIs(t, err, ErrAlreadyMinted)
	})
}

func TestRepository_GetByReferrerOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		stored := &Code{
			Code:            "AB12CD34",
			ReferrerOrderID: &orderID,
			DiscountCents:   2500,
			MaxUses:         5,
			Active:          true,
		}

		mock.ExpectQuery(`SELECT .* FROM referral_codes WHERE referrer_order_id = \$1`).
			WithArgs(orderID).
			WillReturnRows(codeRows(stored))

		c, err := repo.GetByReferrerOrder(ctx, orderID)
		assert.NoError(t, err)
		assert.Equal(t, "AB12CD34", c.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM referral_codes WHERE referrer_order_id = \$1`).
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows([]string{"code"}))

		_, err := repo.GetByReferrerOrder(ctx, orderID)
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})
}
