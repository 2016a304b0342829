package bottles_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/ledger/store"
	"github.com/warp/bottle-ledger/notify"
	"github.com/warp/bottle-ledger/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *bottles.Service
	store ledger.TxStore
	sink  *notify.Recorder
	admin context.Context
	mod   context.Context
	modID string
}

func newMemoryStore(t *testing.T) ledger.TxStore {
	return store.NewMemory()
}

func newSQLiteStore(t *testing.T) ledger.TxStore {
	s, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs a test against every store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	backends := map[string]func(t *testing.T) ledger.TxStore{
		"memory": newMemoryStore,
		"sqlite": newSQLiteStore,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, open(t), 1000))
		})
	}
}

// newFixture initializes total bottles and one active moderator.
func newFixture(t *testing.T, st ledger.TxStore, total int) *fixture {
	sink := &notify.Recorder{}
	svc, err := bottles.NewService(st,
		bottles.WithClock(func() time.Time { return testNow }),
		bottles.WithLogger(zaptest.NewLogger(t)),
		bottles.WithNotifier(sink),
	)
	require.NoError(t, err)

	admin := auth.WithActor(context.Background(), auth.Actor{ID: "admin-1", Role: ledger.RoleAdmin, Name: "admin@example.com"})
	_, err = svc.InitTotalBottles(admin, total)
	require.NoError(t, err)

	m, err := svc.CreateModerator(admin, bottles.ModeratorInput{Name: "ravi", Password: "secret-1", Active: true})
	require.NoError(t, err)

	return &fixture{
		svc:   svc,
		store: st,
		sink:  sink,
		admin: admin,
		mod:   auth.WithActor(context.Background(), auth.Actor{ID: m.ID, Role: ledger.RoleModerator, Name: m.Name}),
		modID: m.ID,
	}
}

func (f *fixture) stock(t *testing.T) ledger.TotalBottles {
	tb, err := f.svc.GetTotalBottles(context.Background())
	require.NoError(t, err)
	return tb
}

func (f *fixture) usage(t *testing.T) ledger.BottleUsage {
	u, err := f.svc.GetBottleUsage(context.Background(), f.modID, time.Time{})
	require.NoError(t, err)
	return u
}

func (f *fixture) issue(t *testing.T, filled, caps int) bottles.IssueResult {
	res, err := f.svc.AddUpdateBottleUsage(f.mod, bottles.IssueRequest{ModeratorID: f.modID, Filled: filled, Caps: caps})
	require.NoError(t, err)
	return res
}

func (f *fixture) customer(t *testing.T, deposit int, price string) ledger.Customer {
	res, err := f.svc.CreateCustomer(f.admin, bottles.CustomerInput{
		Name:        "Hotel Sunrise",
		Phone:       "+9607771234",
		Deposit:     deposit,
		BottlePrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return res.Customer
}

func (f *fixture) deliver(t *testing.T, customerID string, filled, empty int) bottles.DeliveryResult {
	res, err := f.svc.CreateDelivery(f.mod, bottles.DeliveryInput{
		CustomerID:  customerID,
		ModeratorID: f.modID,
		Filled:      filled,
		Empty:       empty,
		Payment:     decimal.NewFromInt(int64(filled) * 10),
	})
	require.NoError(t, err)
	return res
}

// assertPool checks the pool identity and that no counter is negative.
func assertPool(t *testing.T, tb ledger.TotalBottles) {
	t.Helper()
	assert.NoError(t, tb.Check())
	assert.GreaterOrEqual(t, tb.Total, 0)
	assert.GreaterOrEqual(t, tb.Available, 0)
	assert.GreaterOrEqual(t, tb.Used, 0)
	assert.GreaterOrEqual(t, tb.Damaged, 0)
	assert.GreaterOrEqual(t, tb.Deposit, 0)
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := bottles.NewService(nil)
	assert.ErrorIs(t, err, ledger.ErrStoreRequired)
}

// =============================================================================
// WALKTHROUGH SCENARIOS
// =============================================================================

func TestScenario_IssueBottles(t *testing.T) {
	// GIVEN: 1000 bottles, all in the warehouse
	// WHEN: The moderator takes 100 for the day
	// THEN: 900 stay available, 100 are in use, the usage row opens
	forEachStore(t, func(t *testing.T, f *fixture) {
		res := f.issue(t, 100, 0)

		assert.True(t, res.Created)
		assert.Equal(t, 900, res.Stock.Available)
		assert.Equal(t, 100, res.Stock.Used)
		assert.Equal(t, 1000, res.Stock.Total)

		u := f.usage(t)
		assert.Equal(t, 100, u.Filled)
		assert.Equal(t, 100, u.Remaining)
		assert.False(t, u.Done)
		assertPool(t, f.stock(t))
	})
}

func TestScenario_RefillWithoutEmptiesIsNoop(t *testing.T) {
	// GIVEN: A day with 100 bottles issued and no empties collected
	// WHEN: The moderator asks for a refill
	// THEN: Nothing moves and the call succeeds
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		before := f.stock(t)
		usageBefore := f.usage(t)

		res := f.issue(t, 40, 0)

		assert.False(t, res.Created)
		assert.Equal(t, 0, res.Refilled)
		assert.Equal(t, before, f.stock(t))
		assert.Equal(t, usageBefore.Remaining, f.usage(t).Remaining)
		assert.Equal(t, usageBefore.Refilled, f.usage(t).Refilled)
	})
}

func TestScenario_DeliveryThenAdminDelete(t *testing.T) {
	// GIVEN: 100 bottles issued
	// WHEN: A delivery sells 30 and collects 20 empties, then an admin deletes it
	// THEN: The usage row goes 30/70/20 and back to 0/100/0
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		c := f.customer(t, 0, "10")

		res := f.deliver(t, c.ID, 30, 20)
		assert.Equal(t, 30, res.Usage.Sales)
		assert.Equal(t, 70, res.Usage.Remaining)
		assert.Equal(t, 20, res.Usage.Empty)
		assert.Equal(t, 10, res.Customer.Bottles)

		_, err := f.svc.DeleteDelivery(f.admin, res.Delivery.ID)
		require.NoError(t, err)

		u := f.usage(t)
		assert.Equal(t, 0, u.Sales)
		assert.Equal(t, 100, u.Remaining)
		assert.Equal(t, 0, u.Empty)
		assert.True(t, u.Revenue.IsZero())

		cust, err := f.svc.GetCustomer(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, cust.Bottles)
		assert.True(t, cust.Balance.IsZero(), "balance %s", cust.Balance)
	})
}

func TestScenario_IssueBeyondAvailableRejected(t *testing.T) {
	// GIVEN: 900 bottles available after a first issuance
	// WHEN: Another moderator asks for 1200
	// THEN: Invariant violation, nothing changes
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		other, err := f.svc.CreateModerator(f.admin, bottles.ModeratorInput{Name: "sara", Password: "secret-2", Active: true})
		require.NoError(t, err)
		before := f.stock(t)

		_, err = f.svc.AddUpdateBottleUsage(f.admin, bottles.IssueRequest{ModeratorID: other.ID, Filled: 1200})

		var inv *ledger.InvariantError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, "available_bottles", inv.Field)
		assert.Equal(t, before, f.stock(t))

		_, err = f.svc.GetBottleUsage(context.Background(), other.ID, time.Time{})
		assert.ErrorIs(t, err, ledger.ErrNotFound, "no usage row may be left behind")
	})
}

func TestScenario_AdminRaisesDamaged(t *testing.T) {
	// GIVEN: 5 bottles already written off as damaged
	// WHEN: The admin sets damaged to 8
	// THEN: Total and available both drop by 3
	forEachStore(t, func(t *testing.T, f *fixture) {
		five, eight := 5, 8
		_, err := f.svc.AdjustTotalBottles(f.admin, bottles.StockAdjustment{Damaged: &five})
		require.NoError(t, err)
		before := f.stock(t)

		tb, err := f.svc.AdjustTotalBottles(f.admin, bottles.StockAdjustment{Damaged: &eight})
		require.NoError(t, err)

		assert.Equal(t, before.Total-3, tb.Total)
		assert.Equal(t, before.Available-3, tb.Available)
		assert.Equal(t, 8, tb.Damaged)
		assert.Equal(t, before.Owned(), tb.Owned())
		assertPool(t, tb)
	})
}

func TestScenario_CustomerDepositRoundTrip(t *testing.T) {
	// GIVEN: 900 bottles available
	// WHEN: A customer is created with 5 deposit bottles, then deleted
	// THEN: 5 bottles leave the warehouse for the deposit count, then come back
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		before := f.stock(t)
		require.Equal(t, 900, before.Available)

		c := f.customer(t, 5, "12.50")
		tb := f.stock(t)
		assert.Equal(t, 895, tb.Available)
		assert.Equal(t, before.Deposit+5, tb.Deposit)
		assert.Equal(t, before.Total-5, tb.Total)
		assertPool(t, tb)

		_, err := f.svc.DeleteCustomer(f.admin, c.ID)
		require.NoError(t, err)
		after := f.stock(t)
		before.Version, after.Version = 0, 0
		before.UpdatedAt, after.UpdatedAt = time.Time{}, time.Time{}
		assert.Equal(t, before, after)

		msgs := f.sink.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, notify.KindDepositChanged, msgs[0].Kind)
	})
}

// =============================================================================
// STOCK
// =============================================================================

func TestInitTotalBottles_OnlyOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		_, err := f.svc.InitTotalBottles(f.admin, 50)
		assert.ErrorIs(t, err, ledger.ErrConflict)
		assert.Equal(t, 1000, f.stock(t).Total)
	})
}

func TestInitTotalBottles_AdminOnly(t *testing.T) {
	svc, err := bottles.NewService(store.NewMemory())
	require.NoError(t, err)

	_, err = svc.InitTotalBottles(context.Background(), 10)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestAdjustTotalBottles_Restock(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		total := 1200

		tb, err := f.svc.AdjustTotalBottles(f.admin, bottles.StockAdjustment{Total: &total})
		require.NoError(t, err)

		assert.Equal(t, 1200, tb.Total)
		assert.Equal(t, 1100, tb.Available)
		assert.Equal(t, 100, tb.Used)
		assertPool(t, tb)
	})
}

func TestAdjustTotalBottles_CannotWriteOffIssuedBottles(t *testing.T) {
	// GIVEN: 900 of 1000 bottles in the warehouse
	// WHEN: The admin sets total to 50
	// THEN: Rejected, available would go negative
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 100, 0)
		before := f.stock(t)
		total := 50

		_, err := f.svc.AdjustTotalBottles(f.admin, bottles.StockAdjustment{Total: &total})

		assert.ErrorIs(t, err, ledger.ErrInvariantViolation)
		assert.Equal(t, before, f.stock(t))
	})
}

func TestAdjustTotalBottles_RequiresAField(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		_, err := f.svc.AdjustTotalBottles(f.admin, bottles.StockAdjustment{})
		assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	})
}

