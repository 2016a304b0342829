/*
reports.go - Read-side views of the ledger

PURPOSE:
  Listings cover a rolling window of local days (30 by default), newest
  first, and carry the moderator's and customer's names alongside the
  raw rows. The dashboard folds the same window into totals and reports
  the stock row against the counts derived from the other counters.

  Nothing here writes. Reads go straight to the store without a
  transaction; a listing may interleave with a concurrent write.
*/
package bottles

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/bottle-ledger/ledger"
)

// Query selects a listing window. Zero fields mean "all moderators",
// "all customers" and DefaultWindowDays.
type Query struct {
	ModeratorID string
	CustomerID  string
	Days        int
}

type UsageView struct {
	ledger.BottleUsage
	ModeratorName string
}

type DeliveryView struct {
	ledger.Delivery
	ModeratorName string
	CustomerName  string
}

type MiscView struct {
	ledger.Misc
	ModeratorName string
}

type ExpenseView struct {
	ledger.OtherExpense
	ModeratorName string
}

func (s *Service) filter(q Query) ledger.ListFilter {
	from, to := s.cal.Window(s.now(), q.Days)
	return ledger.ListFilter{ModeratorID: q.ModeratorID, CustomerID: q.CustomerID, From: from, To: to}
}

func (s *Service) moderatorNames(ctx context.Context) (map[string]string, error) {
	mods, err := s.store.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(mods))
	for _, m := range mods {
		names[m.ID] = m.Name
	}
	return names, nil
}

func (s *Service) ListBottleUsage(ctx context.Context, q Query) ([]UsageView, error) {
	rows, err := s.store.ListUsage(ctx, s.filter(q))
	if err != nil {
		return nil, err
	}
	names, err := s.moderatorNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UsageView, 0, len(rows))
	for _, u := range rows {
		out = append(out, UsageView{BottleUsage: u, ModeratorName: names[u.ModeratorID]})
	}
	return out, nil
}

func (s *Service) ListDeliveries(ctx context.Context, q Query) ([]DeliveryView, error) {
	rows, err := s.store.ListDeliveries(ctx, s.filter(q))
	if err != nil {
		return nil, err
	}
	names, err := s.moderatorNames(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	customerNames := make(map[string]string, len(customers))
	for _, c := range customers {
		customerNames[c.ID] = c.Name
	}
	out := make([]DeliveryView, 0, len(rows))
	for _, d := range rows {
		out = append(out, DeliveryView{
			Delivery:      d,
			ModeratorName: names[d.ModeratorID],
			CustomerName:  customerNames[d.CustomerID],
		})
	}
	return out, nil
}

func (s *Service) ListMisc(ctx context.Context, q Query) ([]MiscView, error) {
	rows, err := s.store.ListMisc(ctx, s.filter(q))
	if err != nil {
		return nil, err
	}
	names, err := s.moderatorNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MiscView, 0, len(rows))
	for _, m := range rows {
		out = append(out, MiscView{Misc: m, ModeratorName: names[m.ModeratorID]})
	}
	return out, nil
}

func (s *Service) ListExpenses(ctx context.Context, q Query) ([]ExpenseView, error) {
	rows, err := s.store.ListExpenses(ctx, s.filter(q))
	if err != nil {
		return nil, err
	}
	names, err := s.moderatorNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ExpenseView, 0, len(rows))
	for _, x := range rows {
		out = append(out, ExpenseView{OtherExpense: x, ModeratorName: names[x.ModeratorID]})
	}
	return out, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

type ModeratorSummary struct {
	ModeratorID string
	Name        string
	Days        int
	Filled      int
	Sales       int
	Returned    int
	Revenue     decimal.Decimal
	Expense     decimal.Decimal
}

type Dashboard struct {
	From time.Time
	To   time.Time

	// Stock is the stored row. Initialized is false before
	// InitTotalBottles has run.
	Stock       ledger.TotalBottles
	Initialized bool
	Owned       int
	// DerivedAvailable is total - used - damaged - deposit. It differs
	// from Stock.Available by AvailableDrift; the stored value is used
	// for every check.
	DerivedAvailable int
	AvailableDrift   int

	OpenDays   int
	DoneDays   int
	Filled     int
	Sales      int
	Empty      int
	Damaged    int
	Refilled   int
	Returned   int
	Revenue    decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
	Deliveries int
	Misc       int

	Customers       int
	CustomerBottles int
	CustomerBalance decimal.Decimal

	Moderators []ModeratorSummary
}

func (s *Service) Dashboard(ctx context.Context, days int) (Dashboard, error) {
	f := s.filter(Query{Days: days})
	d := Dashboard{From: f.From, To: f.To}

	tb, err := s.store.GetStock(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	if tb != nil {
		d.Stock = *tb
		d.Initialized = true
		d.Owned = tb.Owned()
		d.DerivedAvailable = tb.DerivedAvailable()
		d.AvailableDrift = tb.Available - d.DerivedAvailable
	}

	usage, err := s.store.ListUsage(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	names, err := s.moderatorNames(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	perMod := map[string]*ModeratorSummary{}
	for _, u := range usage {
		if u.Done {
			d.DoneDays++
		} else {
			d.OpenDays++
		}
		d.Filled += u.Filled
		d.Sales += u.Sales
		d.Empty += u.Empty
		d.Damaged += u.Damaged
		d.Refilled += u.Refilled
		d.Returned += u.Returned()
		d.Revenue = d.Revenue.Add(u.Revenue)
		d.Expense = d.Expense.Add(u.Expense)

		m, ok := perMod[u.ModeratorID]
		if !ok {
			m = &ModeratorSummary{ModeratorID: u.ModeratorID, Name: names[u.ModeratorID]}
			perMod[u.ModeratorID] = m
		}
		m.Days++
		m.Filled += u.Filled
		m.Sales += u.Sales
		m.Returned += u.Returned()
		m.Revenue = m.Revenue.Add(u.Revenue)
		m.Expense = m.Expense.Add(u.Expense)
	}
	d.Net = d.Revenue.Sub(d.Expense)
	for _, m := range perMod {
		d.Moderators = append(d.Moderators, *m)
	}
	sort.Slice(d.Moderators, func(i, j int) bool {
		if d.Moderators[i].Sales != d.Moderators[j].Sales {
			return d.Moderators[i].Sales > d.Moderators[j].Sales
		}
		return d.Moderators[i].ModeratorID < d.Moderators[j].ModeratorID
	})

	deliveries, err := s.store.ListDeliveries(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	d.Deliveries = len(deliveries)
	misc, err := s.store.ListMisc(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	d.Misc = len(misc)

	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d.Customers = len(customers)
	for _, c := range customers {
		d.CustomerBottles += c.Bottles
		d.CustomerBalance = d.CustomerBalance.Add(c.Balance)
	}
	return d, nil
}
