package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewguard-be/internal/metrics"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumnNames = []string{
	"id", "stage", "status", "payment_status", "commission_status",
	"payment_method_on_file",
	"base_price_cents", "discount_cents", "total_cents", "referral_code",
	"place_ref",
	"start_bad_1", "start_bad_2", "start_bad_3", "start_bad_legacy",
	"start_total_reviews", "start_average_rating",
	"live_bad_1", "live_bad_2", "live_bad_3", "live_bad_legacy",
	"live_total_reviews", "live_average_rating",
	"last_refreshed_at",
	"created_by", "team_id", "org_id",
	"created_at", "updated_at",
}

func orderRow(id uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderColumnNames).AddRow(
		id, "INBOX", "NEW", "open", "OPEN",
		true,
		50000, 0, 50000, nil,
		nil,
		5, 3, 2, nil,
		120, 3.4,
		nil, nil, nil, nil,
		nil, nil,
		nil,
		7, 1, 1,
		now, now,
	)
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(orderRow(id))

		o, err := repo.GetByID(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, id, o.ID)
		assert.Equal(t, StageInbox, o.Stage)
		assert.Equal(t, 50000, o.TotalCents)
		require.NotNil(t, o.Start.Bad1)
		assert.Equal(t, 5, *o.Start.Bad1)
		assert.Nil(t, o.Live.Bad1)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(orderColumnNames))

		_, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WillReturnError(errors.New("db error"))

		_, err := repo.GetByID(ctx, id)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestRepository_UpdateStageFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()

	change := StageChange{
		Stage:            StageDone,
		Status:           StatusPaidDeleted,
		PaymentStatus:    PaymentPaid,
		CommissionStatus: CommissionOpen,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET stage = \$1, status = \$2, payment_status = \$3, commission_status = \$4, updated_at = NOW\(\) WHERE id = \$5`).
			WithArgs(change.Stage, change.Status, change.PaymentStatus, change.CommissionStatus, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateStageFields(ctx, id, change))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET stage = .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStageFields(ctx, id, change)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestRepository_MarkCommissionPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()

	query := `UPDATE orders SET commission_status = \$1, status = \$2, updated_at = NOW\(\) WHERE id = \$3 AND stage = \$4 AND commission_status = \$5`

	t.Run("GuardMatches", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(CommissionPaid, StatusCommissionPaid, id, StageDone, CommissionOpen).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkCommissionPaid(ctx, id)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GuardDoesNotMatch", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(CommissionPaid, StatusCommissionPaid, id, StageDone, CommissionOpen).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkCommissionPaid(ctx, id)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRepository_UpdateLiveSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	one := 1
	live := metrics.Snapshot{Bad1: &one}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET live_bad_1 = \$1, .* last_refreshed_at = \$7, updated_at = NOW\(\) WHERE id = \$8`).
			WithArgs(live.Bad1, nil, nil, nil, nil, nil, now, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateLiveSnapshot(ctx, id, live, now))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET live_bad_1 = .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateLiveSnapshot(ctx, id, live, now)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestRepository_Lists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("ListByRep", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE created_by = \$1 ORDER BY created_at DESC`).
			WithArgs(uint(7)).
			WillReturnRows(orderRow(uuid.New()))

		orders, err := repo.ListByRep(ctx, 7)
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("ListByStage", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE stage = \$1 ORDER BY created_at DESC`).
			WithArgs(StageInbox).
			WillReturnRows(orderRow(uuid.New()))

		orders, err := repo.ListByStage(ctx, StageInbox)
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("ListOpenCommission", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE created_by = \$1 AND stage = \$2 AND commission_status = \$3`).
			WithArgs(uint(7), StageDone, CommissionOpen).
			WillReturnRows(orderRow(uuid.New()))

		orders, err := repo.ListOpenCommission(ctx, 7)
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("ListRefreshable", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE place_ref IS NOT NULL AND stage != \$1`).
			WithArgs(StageDone).
			WillReturnRows(orderRow(uuid.New()))

		orders, err := repo.ListRefreshable(ctx)
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
	})
}

func TestRepository_Counts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("CountOpenCommission", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE created_by = \$1 AND stage = \$2 AND commission_status = \$3`).
			WithArgs(uint(7), StageDone, CommissionOpen).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		count, err := repo.CountOpenCommission(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("CountPaidCommissionAllTime", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE created_by = \$1 AND commission_status = \$2`).
			WithArgs(uint(7), CommissionPaid).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

		count, err := repo.CountPaidCommission(ctx, 7, nil)
		assert.NoError(t, err)
		assert.Equal(t, 9, count)
	})

	t.Run("CountPaidCommissionWindowed", func(t *testing.T) {
		month := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE created_by = \$1 AND commission_status = \$2 AND DATE_TRUNC\('month', updated_at\) = DATE_TRUNC\('month', \$3::timestamptz\)`).
			WithArgs(uint(7), CommissionPaid, month).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		count, err := repo.CountPaidCommission(ctx, 7, &month)
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	o := &Order{
		ID:               uuid.New(),
		Stage:            StageInbox,
		Status:           StatusNew,
		PaymentStatus:    PaymentOpen,
		CommissionStatus: CommissionOpen,
		BasePriceCents:   50000,
		TotalCents:       50000,
		CreatedBy:        7,
		TeamID:           1,
		OrgID:            1,
		CreatedAt:        time.Now(),
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO orders`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, repo.Insert(ctx, o))
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO orders`).
			WillReturnError(errors.New("db error"))

		assert.Error(t, repo.Insert(ctx, o))
	})
}
