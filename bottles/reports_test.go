package bottles_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/ledger/store"
	"github.com/warp/bottle-ledger/obs"
)

// =============================================================================
// LISTINGS
// =============================================================================

func TestListings_JoinNamesAndWindow(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 50, 0)
		c := f.customer(t, 0, "10")
		f.deliver(t, c.ID, 5, 2)
		_, err := f.svc.CreateExpense(f.mod, bottles.ExpenseInput{ModeratorID: f.modID, Description: "fuel", Amount: decimal.NewFromInt(15)})
		require.NoError(t, err)

		ctx := context.Background()
		usage, err := f.svc.ListBottleUsage(ctx, bottles.Query{})
		require.NoError(t, err)
		require.Len(t, usage, 1)
		assert.Equal(t, "ravi", usage[0].ModeratorName)

		deliveries, err := f.svc.ListDeliveries(ctx, bottles.Query{CustomerID: c.ID})
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "Hotel Sunrise", deliveries[0].CustomerName)
		assert.Equal(t, "ravi", deliveries[0].ModeratorName)

		expenses, err := f.svc.ListExpenses(ctx, bottles.Query{ModeratorID: f.modID})
		require.NoError(t, err)
		require.Len(t, expenses, 1)
		assert.Equal(t, "fuel", expenses[0].Description)

		none, err := f.svc.ListDeliveries(ctx, bottles.Query{ModeratorID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestListings_ExcludeOlderThanWindow(t *testing.T) {
	// GIVEN: A day recorded 40 days ago
	// WHEN: Listing with the default 30-day window
	// THEN: The old day is left out; a 60-day window includes it
	st := store.NewMemory()
	f := newFixture(t, st, 500)
	old := testNow.AddDate(0, 0, -40)
	oldSvc, err := bottles.NewService(st, bottles.WithClock(func() time.Time { return old }))
	require.NoError(t, err)
	_, err = oldSvc.AddUpdateBottleUsage(f.mod, bottles.IssueRequest{ModeratorID: f.modID, Filled: 10})
	require.NoError(t, err)
	f.issue(t, 20, 0)

	recent, err := f.svc.ListBottleUsage(context.Background(), bottles.Query{})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 20, recent[0].Filled)

	all, err := f.svc.ListBottleUsage(context.Background(), bottles.Query{Days: 60})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 20, all[0].Filled, "newest first")
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_TotalsAndDrift(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		c := f.customer(t, 4, "10")
		f.deliver(t, c.ID, 30, 10)
		_, err := f.svc.CreateExpense(f.mod, bottles.ExpenseInput{ModeratorID: f.modID, Amount: decimal.NewFromInt(50)})
		require.NoError(t, err)

		d, err := f.svc.Dashboard(context.Background(), 0)
		require.NoError(t, err)

		assert.True(t, d.Initialized)
		assert.Equal(t, 1000, d.Owned)
		assert.Equal(t, 896, d.Stock.Available)
		assert.Equal(t, d.Stock.Total-d.Stock.Used-d.Stock.Damaged-d.Stock.Deposit, d.DerivedAvailable)
		assert.Equal(t, d.Stock.Available-d.DerivedAvailable, d.AvailableDrift)
		assert.Equal(t, 1, d.OpenDays)
		assert.Equal(t, 30, d.Sales)
		assert.Equal(t, 1, d.Deliveries)
		assert.Equal(t, "300.00", d.Revenue.StringFixed(2))
		assert.Equal(t, "250.00", d.Net.StringFixed(2))
		assert.Equal(t, 1, d.Customers)
		assert.Equal(t, 20, d.CustomerBottles)
		require.Len(t, d.Moderators, 1)
		assert.Equal(t, "ravi", d.Moderators[0].Name)
		assert.Equal(t, 29, int(d.To.Sub(d.From).Hours()/24))
	})
}

func TestDashboard_BeforeInit(t *testing.T) {
	svc, err := bottles.NewService(store.NewMemory())
	require.NoError(t, err)

	d, err := svc.Dashboard(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, d.Initialized)
	assert.Empty(t, d.Moderators)
}

func TestMetrics_RecordOutcomes(t *testing.T) {
	m := obs.NewMetrics()
	svc, err := bottles.NewService(store.NewMemory(), bottles.WithMetrics(m))
	require.NoError(t, err)
	admin := auth.WithActor(context.Background(), auth.Actor{ID: "a", Role: ledger.RoleAdmin})

	_, err = svc.InitTotalBottles(admin, 10)
	require.NoError(t, err)
	_, err = svc.InitTotalBottles(admin, 10)
	require.Error(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "ledger_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			outcomes[labels["op"]+"/"+labels["outcome"]] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, outcomes["init_stock/ok"])
	assert.Equal(t, 1.0, outcomes["init_stock/conflict"])
}
