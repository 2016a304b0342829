// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/bottle-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one lock. It satisfies
// ledger.TxStore; WithTx snapshots the tables and restores them if the
// callback fails.
type Memory struct {
	mu sync.RWMutex
	st tables
}

type tables struct {
	stock      *ledger.TotalBottles
	usage      map[string]ledger.BottleUsage
	customers  map[string]ledger.Customer
	deliveries map[string]ledger.Delivery
	misc       map[string]ledger.Misc
	expenses   map[string]ledger.OtherExpense
	moderators map[string]ledger.Moderator
	admins     map[string]ledger.Admin
}

func newTables() tables {
	return tables{
		usage:      make(map[string]ledger.BottleUsage),
		customers:  make(map[string]ledger.Customer),
		deliveries: make(map[string]ledger.Delivery),
		misc:       make(map[string]ledger.Misc),
		expenses:   make(map[string]ledger.OtherExpense),
		moderators: make(map[string]ledger.Moderator),
		admins:     make(map[string]ledger.Admin),
	}
}

var _ ledger.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newTables()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{t: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (t tables) clone() tables {
	c := newTables()
	if t.stock != nil {
		s := *t.stock
		c.stock = &s
	}
	for k, v := range t.usage {
		c.usage[k] = v
	}
	for k, v := range t.customers {
		c.customers[k] = v
	}
	for k, v := range t.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range t.misc {
		c.misc[k] = v
	}
	for k, v := range t.expenses {
		c.expenses[k] = v
	}
	for k, v := range t.moderators {
		v.Areas = append([]string(nil), v.Areas...)
		c.moderators[k] = v
	}
	for k, v := range t.admins {
		c.admins[k] = v
	}
	return c
}

// read runs fn under the read lock against the live tables.
func (m *Memory) read(fn func(v *view)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&view{t: &m.st})
}

// write runs fn under the write lock against the live tables.
func (m *Memory) write(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{t: &m.st})
}

// =============================================================================
// LOCKED ENTRY POINTS - Memory delegates every call to a view under the lock
// =============================================================================

func (m *Memory) GetStock(ctx context.Context) (tb *ledger.TotalBottles, err error) {
	m.read(func(v *view) { tb, err = v.GetStock(ctx) })
	return
}

func (m *Memory) CreateStock(ctx context.Context, tb ledger.TotalBottles) error {
	return m.write(func(v *view) error { return v.CreateStock(ctx, tb) })
}

func (m *Memory) UpdateStock(ctx context.Context, tb ledger.TotalBottles) error {
	return m.write(func(v *view) error { return v.UpdateStock(ctx, tb) })
}

func (m *Memory) GetUsage(ctx context.Context, id string) (u *ledger.BottleUsage, err error) {
	m.read(func(v *view) { u, err = v.GetUsage(ctx, id) })
	return
}

func (m *Memory) GetUsageForDay(ctx context.Context, moderatorID string, day time.Time) (u *ledger.BottleUsage, err error) {
	m.read(func(v *view) { u, err = v.GetUsageForDay(ctx, moderatorID, day) })
	return
}

func (m *Memory) SaveUsage(ctx context.Context, u ledger.BottleUsage) error {
	return m.write(func(v *view) error { return v.SaveUsage(ctx, u) })
}

func (m *Memory) DeleteUsage(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteUsage(ctx, id) })
}

func (m *Memory) ListUsage(ctx context.Context, f ledger.ListFilter) (out []ledger.BottleUsage, err error) {
	m.read(func(v *view) { out, err = v.ListUsage(ctx, f) })
	return
}

func (m *Memory) GetCustomer(ctx context.Context, id string) (c *ledger.Customer, err error) {
	m.read(func(v *view) { c, err = v.GetCustomer(ctx, id) })
	return
}

func (m *Memory) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	return m.write(func(v *view) error { return v.SaveCustomer(ctx, c) })
}

func (m *Memory) DeleteCustomer(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteCustomer(ctx, id) })
}

func (m *Memory) ListCustomers(ctx context.Context) (out []ledger.Customer, err error) {
	m.read(func(v *view) { out, err = v.ListCustomers(ctx) })
	return
}

func (m *Memory) GetDelivery(ctx context.Context, id string) (d *ledger.Delivery, err error) {
	m.read(func(v *view) { d, err = v.GetDelivery(ctx, id) })
	return
}

func (m *Memory) SaveDelivery(ctx context.Context, d ledger.Delivery) error {
	return m.write(func(v *view) error { return v.SaveDelivery(ctx, d) })
}

func (m *Memory) DeleteDelivery(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteDelivery(ctx, id) })
}

func (m *Memory) ListDeliveries(ctx context.Context, f ledger.ListFilter) (out []ledger.Delivery, err error) {
	m.read(func(v *view) { out, err = v.ListDeliveries(ctx, f) })
	return
}

func (m *Memory) GetMisc(ctx context.Context, id string) (x *ledger.Misc, err error) {
	m.read(func(v *view) { x, err = v.GetMisc(ctx, id) })
	return
}

func (m *Memory) SaveMisc(ctx context.Context, x ledger.Misc) error {
	return m.write(func(v *view) error { return v.SaveMisc(ctx, x) })
}

func (m *Memory) DeleteMisc(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteMisc(ctx, id) })
}

func (m *Memory) ListMisc(ctx context.Context, f ledger.ListFilter) (out []ledger.Misc, err error) {
	m.read(func(v *view) { out, err = v.ListMisc(ctx, f) })
	return
}

func (m *Memory) GetExpense(ctx context.Context, id string) (x *ledger.OtherExpense, err error) {
	m.read(func(v *view) { x, err = v.GetExpense(ctx, id) })
	return
}

func (m *Memory) SaveExpense(ctx context.Context, x ledger.OtherExpense) error {
	return m.write(func(v *view) error { return v.SaveExpense(ctx, x) })
}

func (m *Memory) DeleteExpense(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteExpense(ctx, id) })
}

func (m *Memory) ListExpenses(ctx context.Context, f ledger.ListFilter) (out []ledger.OtherExpense, err error) {
	m.read(func(v *view) { out, err = v.ListExpenses(ctx, f) })
	return
}

func (m *Memory) GetModerator(ctx context.Context, id string) (x *ledger.Moderator, err error) {
	m.read(func(v *view) { x, err = v.GetModerator(ctx, id) })
	return
}

func (m *Memory) GetModeratorByName(ctx context.Context, name string) (x *ledger.Moderator, err error) {
	m.read(func(v *view) { x, err = v.GetModeratorByName(ctx, name) })
	return
}

func (m *Memory) SaveModerator(ctx context.Context, x ledger.Moderator) error {
	return m.write(func(v *view) error { return v.SaveModerator(ctx, x) })
}

func (m *Memory) DeleteModerator(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteModerator(ctx, id) })
}

func (m *Memory) ListModerators(ctx context.Context) (out []ledger.Moderator, err error) {
	m.read(func(v *view) { out, err = v.ListModerators(ctx) })
	return
}

func (m *Memory) GetAdminByEmail(ctx context.Context, email string) (a *ledger.Admin, err error) {
	m.read(func(v *view) { a, err = v.GetAdminByEmail(ctx, email) })
	return
}

func (m *Memory) SaveAdmin(ctx context.Context, a ledger.Admin) error {
	return m.write(func(v *view) error { return v.SaveAdmin(ctx, a) })
}

// =============================================================================
// VIEW - Unlocked access; callers hold Memory.mu
// =============================================================================

type view struct {
	t *tables
}

func (v *view) GetStock(_ context.Context) (*ledger.TotalBottles, error) {
	if v.t.stock == nil {
		return nil, nil
	}
	tb := *v.t.stock
	return &tb, nil
}

func (v *view) CreateStock(_ context.Context, tb ledger.TotalBottles) error {
	if v.t.stock != nil {
		return &ledger.ConflictError{Entity: "total bottles", Reason: "already initialized"}
	}
	tb.Version = 1
	v.t.stock = &tb
	return nil
}

func (v *view) UpdateStock(_ context.Context, tb ledger.TotalBottles) error {
	if v.t.stock == nil {
		return ledger.NotFound("total bottles", tb.ID)
	}
	if v.t.stock.Version != tb.Version {
		return ledger.ErrConcurrentModification
	}
	tb.Version++
	v.t.stock = &tb
	return nil
}

func (v *view) GetUsage(_ context.Context, id string) (*ledger.BottleUsage, error) {
	u, ok := v.t.usage[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (v *view) GetUsageForDay(_ context.Context, moderatorID string, day time.Time) (*ledger.BottleUsage, error) {
	key := ledger.DayKey(day)
	for _, u := range v.t.usage {
		if u.ModeratorID == moderatorID && ledger.DayKey(u.Day) == key {
			return &u, nil
		}
	}
	return nil, nil
}

func (v *view) SaveUsage(_ context.Context, u ledger.BottleUsage) error {
	key := ledger.DayKey(u.Day)
	for id, other := range v.t.usage {
		if id != u.ID && other.ModeratorID == u.ModeratorID && ledger.DayKey(other.Day) == key {
			return &ledger.ConflictError{Entity: "bottle usage", Reason: "moderator already has a row for " + key}
		}
	}
	v.t.usage[u.ID] = u
	return nil
}

func (v *view) DeleteUsage(_ context.Context, id string) error {
	delete(v.t.usage, id)
	return nil
}

func (v *view) ListUsage(_ context.Context, f ledger.ListFilter) ([]ledger.BottleUsage, error) {
	var out []ledger.BottleUsage
	for _, u := range v.t.usage {
		if match(f, u.ModeratorID, "", u.Day, u.CreatedAt) {
			out = append(out, u)
		}
	}
	sortNewestFirst(out, func(u ledger.BottleUsage) (time.Time, string) { return u.CreatedAt, u.ID })
	return out, nil
}

func (v *view) GetCustomer(_ context.Context, id string) (*ledger.Customer, error) {
	c, ok := v.t.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (v *view) SaveCustomer(_ context.Context, c ledger.Customer) error {
	v.t.customers[c.ID] = c
	return nil
}

func (v *view) DeleteCustomer(_ context.Context, id string) error {
	delete(v.t.customers, id)
	return nil
}

func (v *view) ListCustomers(_ context.Context) ([]ledger.Customer, error) {
	out := make([]ledger.Customer, 0, len(v.t.customers))
	for _, c := range v.t.customers {
		out = append(out, c)
	}
	sortNewestFirst(out, func(c ledger.Customer) (time.Time, string) { return c.CreatedAt, c.ID })
	return out, nil
}

func (v *view) GetDelivery(_ context.Context, id string) (*ledger.Delivery, error) {
	d, ok := v.t.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (v *view) SaveDelivery(_ context.Context, d ledger.Delivery) error {
	v.t.deliveries[d.ID] = d
	return nil
}

func (v *view) DeleteDelivery(_ context.Context, id string) error {
	delete(v.t.deliveries, id)
	return nil
}

func (v *view) ListDeliveries(_ context.Context, f ledger.ListFilter) ([]ledger.Delivery, error) {
	var out []ledger.Delivery
	for _, d := range v.t.deliveries {
		if match(f, d.ModeratorID, d.CustomerID, d.Day, d.CreatedAt) {
			out = append(out, d)
		}
	}
	sortNewestFirst(out, func(d ledger.Delivery) (time.Time, string) { return d.CreatedAt, d.ID })
	return out, nil
}

func (v *view) GetMisc(_ context.Context, id string) (*ledger.Misc, error) {
	m, ok := v.t.misc[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (v *view) SaveMisc(_ context.Context, m ledger.Misc) error {
	v.t.misc[m.ID] = m
	return nil
}

func (v *view) DeleteMisc(_ context.Context, id string) error {
	delete(v.t.misc, id)
	return nil
}

func (v *view) ListMisc(_ context.Context, f ledger.ListFilter) ([]ledger.Misc, error) {
	var out []ledger.Misc
	for _, m := range v.t.misc {
		if match(f, m.ModeratorID, "", m.Day, m.CreatedAt) {
			out = append(out, m)
		}
	}
	sortNewestFirst(out, func(m ledger.Misc) (time.Time, string) { return m.CreatedAt, m.ID })
	return out, nil
}

func (v *view) GetExpense(_ context.Context, id string) (*ledger.OtherExpense, error) {
	x, ok := v.t.expenses[id]
	if !ok {
		return nil, nil
	}
	return &x, nil
}

func (v *view) SaveExpense(_ context.Context, x ledger.OtherExpense) error {
	v.t.expenses[x.ID] = x
	return nil
}

func (v *view) DeleteExpense(_ context.Context, id string) error {
	delete(v.t.expenses, id)
	return nil
}

func (v *view) ListExpenses(_ context.Context, f ledger.ListFilter) ([]ledger.OtherExpense, error) {
	var out []ledger.OtherExpense
	for _, x := range v.t.expenses {
		if match(f, x.ModeratorID, "", x.Day, x.CreatedAt) {
			out = append(out, x)
		}
	}
	sortNewestFirst(out, func(x ledger.OtherExpense) (time.Time, string) { return x.CreatedAt, x.ID })
	return out, nil
}

func (v *view) GetModerator(_ context.Context, id string) (*ledger.Moderator, error) {
	m, ok := v.t.moderators[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (v *view) GetModeratorByName(_ context.Context, name string) (*ledger.Moderator, error) {
	for _, m := range v.t.moderators {
		if strings.EqualFold(m.Name, name) {
			return &m, nil
		}
	}
	return nil, nil
}

func (v *view) SaveModerator(_ context.Context, m ledger.Moderator) error {
	for id, other := range v.t.moderators {
		if id != m.ID && strings.EqualFold(other.Name, m.Name) {
			return &ledger.ConflictError{Entity: "moderator", Reason: "name already taken"}
		}
	}
	v.t.moderators[m.ID] = m
	return nil
}

func (v *view) DeleteModerator(_ context.Context, id string) error {
	delete(v.t.moderators, id)
	return nil
}

func (v *view) ListModerators(_ context.Context) ([]ledger.Moderator, error) {
	out := make([]ledger.Moderator, 0, len(v.t.moderators))
	for _, m := range v.t.moderators {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) GetAdminByEmail(_ context.Context, email string) (*ledger.Admin, error) {
	for _, a := range v.t.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, nil
}

func (v *view) SaveAdmin(_ context.Context, a ledger.Admin) error {
	v.t.admins[a.ID] = a
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func match(f ledger.ListFilter, moderatorID, customerID string, day, createdAt time.Time) bool {
	if f.ModeratorID != "" && f.ModeratorID != moderatorID {
		return false
	}
	if f.CustomerID != "" && f.CustomerID != customerID {
		return false
	}
	if !f.Day.IsZero() && ledger.DayKey(f.Day) != ledger.DayKey(day) {
		return false
	}
	if !f.From.IsZero() && createdAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && createdAt.After(f.To) {
		return false
	}
	return true
}

// sortNewestFirst orders by creation time descending, then id descending.
func sortNewestFirst[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}
