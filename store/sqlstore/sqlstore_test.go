package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/store/sqlstore"
)

var (
	now = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
	day = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
)

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// SQLITE
// =============================================================================

func TestSQLite_StockVersioning(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	tb, err := s.GetStock(ctx)
	require.NoError(t, err)
	assert.Nil(t, tb)

	require.NoError(t, s.CreateStock(ctx, ledger.TotalBottles{Total: 100, Available: 100, CreatedAt: now, UpdatedAt: now}))
	err = s.CreateStock(ctx, ledger.TotalBottles{Total: 5, Available: 5, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	tb, err = s.GetStock(ctx)
	require.NoError(t, err)
	require.NotNil(t, tb)
	assert.Equal(t, ledger.StockID, tb.ID)
	assert.EqualValues(t, 1, tb.Version)
	assert.True(t, now.Equal(tb.CreatedAt))

	stale := *tb
	tb.Available, tb.Used = 70, 30
	require.NoError(t, s.UpdateStock(ctx, *tb))

	// GIVEN: A copy read before the update above
	// WHEN: It is written back
	// THEN: The version check rejects it
	stale.Available, stale.Used = 90, 10
	assert.ErrorIs(t, s.UpdateStock(ctx, stale), ledger.ErrConcurrentModification)

	tb, err = s.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70, tb.Available)
	assert.EqualValues(t, 2, tb.Version)
}

func TestSQLite_UsageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.SaveModerator(ctx, ledger.Moderator{ID: "m1", Name: "ravi", PasswordHash: "x", Active: true, CreatedAt: now, UpdatedAt: now}))

	u := ledger.BottleUsage{
		ID: "u1", ModeratorID: "m1", Day: day,
		Filled: 50, Sales: 20, Empty: 6, Remaining: 30, Refilled: 4, Caps: 2,
		Revenue: decimal.RequireFromString("212.50"), Expense: decimal.NewFromInt(15),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveUsage(ctx, u))

	u.Done = true
	u.Sales = 25
	require.NoError(t, s.SaveUsage(ctx, u), "saving the same id updates in place")

	got, err := s.GetUsageForDay(ctx, "m1", day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 25, got.Sales)
	assert.True(t, got.Done)
	assert.Equal(t, "212.50", got.Revenue.StringFixed(2))
	assert.Equal(t, "2026-03-10", ledger.DayKey(got.Day))

	err = s.SaveUsage(ctx, ledger.BottleUsage{ID: "u2", ModeratorID: "m1", Day: day, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ledger.ErrConflict, "one row per moderator and day")

	missing, err := s.GetUsage(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.CreateStock(ctx, ledger.TotalBottles{Total: 10, Available: 10, CreatedAt: now, UpdatedAt: now}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		tb, err := tx.GetStock(ctx)
		if err != nil {
			return err
		}
		tb.Available, tb.Used = 0, 10
		if err := tx.UpdateStock(ctx, *tb); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tb, err := s.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, tb.Available)
	assert.EqualValues(t, 1, tb.Version)
}

func TestSQLite_ListFiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.SaveModerator(ctx, ledger.Moderator{ID: "m1", Name: "ravi", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.SaveCustomer(ctx, ledger.Customer{ID: "c1", Name: "Hotel", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.SaveCustomer(ctx, ledger.Customer{ID: "c2", Name: "Cafe", CreatedAt: now, UpdatedAt: now}))

	for i, c := range []string{"c1", "c2", "c1"} {
		at := now.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveDelivery(ctx, ledger.Delivery{
			ID: "d" + string(rune('1'+i)), CustomerID: c, ModeratorID: "m1", Day: day,
			Filled: i + 1, Payment: decimal.NewFromInt(10), CreatedAt: at, UpdatedAt: at,
		}))
	}

	all, err := s.ListDeliveries(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d3", all[0].ID)

	byCustomer, err := s.ListDeliveries(ctx, ledger.ListFilter{CustomerID: "c1", From: now.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, "d3", byCustomer[0].ID)
}

func TestSQLite_ModeratorAreasAndNames(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.SaveModerator(ctx, ledger.Moderator{
		ID: "m1", Name: "Ravi", PasswordHash: "x", Areas: []string{"north", "harbour"}, Active: true,
		CreatedAt: now, UpdatedAt: now,
	}))
	err := s.SaveModerator(ctx, ledger.Moderator{ID: "m2", Name: "ravi", PasswordHash: "y", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	m, err := s.GetModeratorByName(ctx, "RAVI")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"north", "harbour"}, m.Areas)
	assert.True(t, m.Active)
}

// =============================================================================
// POSTGRES (sqlmock)
// =============================================================================

func newMock(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlstore.NewWithDB(db, sqlstore.Postgres), mock
}

func stockRows(version int64, available, used int) *sqlmock.Rows {
	ts := now.Format("2006-01-02T15:04:05.000000000Z07:00")
	return sqlmock.NewRows([]string{
		"id", "total_bottles", "available_bottles", "used_bottles", "damaged_bottles",
		"deposit_bottles", "version", "created_at", "updated_at",
	}).AddRow(ledger.StockID, available+used, available, used, 0, 0, version, ts, ts)
}

func TestPostgres_LocksStockInsideTx(t *testing.T) {
	// GIVEN: A transaction that reads and updates the stock row
	// WHEN: It runs against PostgreSQL
	// THEN: The read takes a row lock and the update checks the version
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM total_bottles WHERE id = \$1 FOR UPDATE`).
		WithArgs(ledger.StockID).
		WillReturnRows(stockRows(4, 90, 10))
	mock.ExpectExec(`UPDATE total_bottles .* WHERE id = \$7 AND version = \$8`).
		WithArgs(100, 80, 20, 0, 0, sqlmock.AnyArg(), ledger.StockID, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		tb, err := tx.GetStock(ctx)
		if err != nil {
			return err
		}
		next, err := tb.Apply(ledger.Issue(10))
		if err != nil {
			return err
		}
		return tx.UpdateStock(ctx, next)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StaleVersionRollsBack(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM total_bottles`).WillReturnRows(stockRows(4, 90, 10))
	mock.ExpectExec(`UPDATE total_bottles`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		tb, err := tx.GetStock(ctx)
		if err != nil {
			return err
		}
		return tx.UpdateStock(ctx, *tb)
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_NoLockOutsideTx(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`SELECT .* FROM total_bottles WHERE id = \$1$`).
		WithArgs(ledger.StockID).
		WillReturnRows(stockRows(1, 100, 0))

	tb, err := s.GetStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, tb.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}
