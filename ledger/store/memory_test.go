package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/ledger/store"
)

var day = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestMemory_StockVersioning(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	tb, err := m.GetStock(ctx)
	require.NoError(t, err)
	assert.Nil(t, tb, "missing stock is nil, not an error")

	require.NoError(t, m.CreateStock(ctx, ledger.TotalBottles{ID: ledger.StockID, Total: 10, Available: 10}))
	assert.ErrorIs(t, m.CreateStock(ctx, ledger.TotalBottles{ID: ledger.StockID}), ledger.ErrConflict)

	tb, err = m.GetStock(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, tb.Version)

	next := *tb
	next.Available, next.Used = 6, 4
	require.NoError(t, m.UpdateStock(ctx, next))

	// GIVEN: A writer still holding version 1
	// WHEN: It saves after another writer already did
	// THEN: ErrConcurrentModification
	err = m.UpdateStock(ctx, next)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	tb, err = m.GetStock(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tb.Version)
	assert.Equal(t, 6, tb.Available)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateStock(ctx, ledger.TotalBottles{ID: ledger.StockID, Total: 10, Available: 10}))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx ledger.Store) error {
		tb, err := tx.GetStock(ctx)
		if err != nil {
			return err
		}
		tb.Available, tb.Used = 0, 10
		if err := tx.UpdateStock(ctx, *tb); err != nil {
			return err
		}
		if err := tx.SaveCustomer(ctx, ledger.Customer{ID: "c1", Name: "x"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tb, err := m.GetStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, tb.Available)
	c, err := m.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestMemory_OneUsageRowPerModeratorDay(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.SaveUsage(ctx, ledger.BottleUsage{ID: "u1", ModeratorID: "m1", Day: day, Filled: 5, Remaining: 5}))
	require.NoError(t, m.SaveUsage(ctx, ledger.BottleUsage{ID: "u2", ModeratorID: "m2", Day: day}))
	require.NoError(t, m.SaveUsage(ctx, ledger.BottleUsage{ID: "u1", ModeratorID: "m1", Day: day, Filled: 8, Remaining: 8}))

	err := m.SaveUsage(ctx, ledger.BottleUsage{ID: "u3", ModeratorID: "m1", Day: day.Add(5 * time.Hour)})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	u, err := m.GetUsageForDay(ctx, "m1", day)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 8, u.Filled)
}

func TestMemory_ListFilters(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

	for i, d := range []ledger.Delivery{
		{ID: "d1", CustomerID: "c1", ModeratorID: "m1"},
		{ID: "d2", CustomerID: "c2", ModeratorID: "m1"},
		{ID: "d3", CustomerID: "c1", ModeratorID: "m2"},
	} {
		d.Day = base.AddDate(0, 0, i)
		d.CreatedAt = base.AddDate(0, 0, i)
		require.NoError(t, m.SaveDelivery(ctx, d))
	}

	ids := func(f ledger.ListFilter) []string {
		out, err := m.ListDeliveries(ctx, f)
		require.NoError(t, err)
		var got []string
		for _, d := range out {
			got = append(got, d.ID)
		}
		return got
	}

	assert.Equal(t, []string{"d3", "d2", "d1"}, ids(ledger.ListFilter{}))
	assert.Equal(t, []string{"d3", "d1"}, ids(ledger.ListFilter{CustomerID: "c1"}))
	assert.Equal(t, []string{"d2", "d1"}, ids(ledger.ListFilter{ModeratorID: "m1"}))
	assert.Equal(t, []string{"d2"}, ids(ledger.ListFilter{Day: base.AddDate(0, 0, 1)}))
	assert.Equal(t, []string{"d2", "d1"}, ids(ledger.ListFilter{To: base.AddDate(0, 0, 1)}))
}

func TestMemory_ModeratorNamesCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.SaveModerator(ctx, ledger.Moderator{ID: "m1", Name: "Ravi", Areas: []string{"north"}}))
	err := m.SaveModerator(ctx, ledger.Moderator{ID: "m2", Name: "ravi"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	got, err := m.GetModeratorByName(ctx, "RAVI")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m1", got.ID)
}
