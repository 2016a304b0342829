/*
delta.go - Signed deltas with bound checking

PURPOSE:
  Every mutation of the ledger is expressed as a signed delta against the
  current counters. Create applies the record's effect, update applies
  effect(new) - effect(old), delete applies -effect(old). One primitive,
  Adjust, checks every counter; the Apply methods add the cross-field
  rules for each record.

INVARIANTS ENFORCED:
  TotalBottles:
    - every counter >= 0
    - available_bottles <= total_bottles
    - total_bottles = available_bottles + used_bottles
  BottleUsage:
    - every counter >= 0, revenue and expense >= 0
    - sales <= filled + refilled
    - empty <= sales
    - refilled <= sales
    - remaining <= filled - returned
    - filled + refilled = sales + remaining + remaining_returned
  Customer:
    - bottles >= 0 (balance may go negative: the customer owes money)

POOL MOVES:
  Issue          available -> used
  Return         used -> available
  Damage         used -> damaged (leaves total)
  DamageInStock  available -> damaged (leaves total)
  DepositOut     available -> deposit (leaves total)
  Restock        new bottles into total and available

SEE ALSO:
  - effects.go: record effects built from these deltas
  - errors.go: InvariantError
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	entityStock    = "total_bottles"
	entityUsage    = "bottle_usage"
	entityCustomer = "customer"
)

// Adjust applies delta to current and rejects a negative result. It is the
// single bound check every counter in the ledger goes through.
func Adjust(entity, field string, current, delta int) (int, error) {
	next := current + delta
	if next < 0 {
		return current, &InvariantError{Entity: entity, Field: field, Value: next, Bound: ">= 0"}
	}
	return next, nil
}

func adjustMoney(entity, field string, current, delta decimal.Decimal) (decimal.Decimal, error) {
	next := current.Add(delta)
	if next.IsNegative() {
		return current, &InvariantError{Entity: entity, Field: field, Value: int(next.IntPart()), Bound: ">= 0"}
	}
	return next, nil
}

func atMost(entity, field string, value, ceiling int, ceilingName string) error {
	if value > ceiling {
		return &InvariantError{
			Entity: entity,
			Field:  field,
			Value:  value,
			Bound:  fmt.Sprintf("<= %s (%d)", ceilingName, ceiling),
		}
	}
	return nil
}

// =============================================================================
// STOCK DELTA
// =============================================================================

// StockDelta is a signed change to the TotalBottles counters.
type StockDelta struct {
	Total     int
	Available int
	Used      int
	Damaged   int
	Deposit   int
}

func Issue(n int) StockDelta         { return StockDelta{Available: -n, Used: n} }
func Return(n int) StockDelta        { return StockDelta{Available: n, Used: -n} }
func Damage(n int) StockDelta        { return StockDelta{Total: -n, Used: -n, Damaged: n} }
func DamageInStock(n int) StockDelta { return StockDelta{Total: -n, Available: -n, Damaged: n} }
func DepositOut(n int) StockDelta    { return StockDelta{Total: -n, Available: -n, Deposit: n} }
func Restock(n int) StockDelta       { return StockDelta{Total: n, Available: n} }

func (d StockDelta) Add(o StockDelta) StockDelta {
	return StockDelta{
		Total:     d.Total + o.Total,
		Available: d.Available + o.Available,
		Used:      d.Used + o.Used,
		Damaged:   d.Damaged + o.Damaged,
		Deposit:   d.Deposit + o.Deposit,
	}
}

func (d StockDelta) Neg() StockDelta {
	return StockDelta{Total: -d.Total, Available: -d.Available, Used: -d.Used, Damaged: -d.Damaged, Deposit: -d.Deposit}
}

func (d StockDelta) IsZero() bool { return d == StockDelta{} }

// Apply returns the counters after d, or the first bound d would break.
// The receiver is never modified.
func (tb TotalBottles) Apply(d StockDelta) (TotalBottles, error) {
	next := tb
	var err error
	if next.Total, err = Adjust(entityStock, "total_bottles", tb.Total, d.Total); err != nil {
		return tb, err
	}
	if next.Available, err = Adjust(entityStock, "available_bottles", tb.Available, d.Available); err != nil {
		return tb, err
	}
	if next.Used, err = Adjust(entityStock, "used_bottles", tb.Used, d.Used); err != nil {
		return tb, err
	}
	if next.Damaged, err = Adjust(entityStock, "damaged_bottles", tb.Damaged, d.Damaged); err != nil {
		return tb, err
	}
	if next.Deposit, err = Adjust(entityStock, "deposit_bottles", tb.Deposit, d.Deposit); err != nil {
		return tb, err
	}
	if err := next.Check(); err != nil {
		return tb, err
	}
	return next, nil
}

// Check verifies the cross-counter rules of the pool.
func (tb TotalBottles) Check() error {
	if err := atMost(entityStock, "available_bottles", tb.Available, tb.Total, "total_bottles"); err != nil {
		return err
	}
	if pool := tb.Available + tb.Used; pool != tb.Total {
		return &InvariantError{
			Entity: entityStock,
			Field:  "total_bottles",
			Value:  tb.Total,
			Bound:  fmt.Sprintf("= available_bottles + used_bottles (%d)", pool),
		}
	}
	return nil
}

// RequireAvailable checks that n bottles can be drawn from the warehouse.
func (tb TotalBottles) RequireAvailable(n int) error {
	if n > tb.Available {
		return &InvariantError{
			Entity: entityStock,
			Field:  "available_bottles",
			Value:  tb.Available - n,
			Bound:  fmt.Sprintf(">= 0 (requested %d, available %d)", n, tb.Available),
		}
	}
	return nil
}

// =============================================================================
// USAGE DELTA
// =============================================================================

// UsageDelta is a signed change to a BottleUsage row.
type UsageDelta struct {
	Filled            int
	Sales             int
	Empty             int
	Remaining         int
	Damaged           int
	Refilled          int
	Caps              int
	EmptyReturned     int
	RemainingReturned int
	Revenue           decimal.Decimal
	Expense           decimal.Decimal
}

func (d UsageDelta) Add(o UsageDelta) UsageDelta {
	return UsageDelta{
		Filled:            d.Filled + o.Filled,
		Sales:             d.Sales + o.Sales,
		Empty:             d.Empty + o.Empty,
		Remaining:         d.Remaining + o.Remaining,
		Damaged:           d.Damaged + o.Damaged,
		Refilled:          d.Refilled + o.Refilled,
		Caps:              d.Caps + o.Caps,
		EmptyReturned:     d.EmptyReturned + o.EmptyReturned,
		RemainingReturned: d.RemainingReturned + o.RemainingReturned,
		Revenue:           d.Revenue.Add(o.Revenue),
		Expense:           d.Expense.Add(o.Expense),
	}
}

func (d UsageDelta) Neg() UsageDelta {
	return UsageDelta{
		Filled:            -d.Filled,
		Sales:             -d.Sales,
		Empty:             -d.Empty,
		Remaining:         -d.Remaining,
		Damaged:           -d.Damaged,
		Refilled:          -d.Refilled,
		Caps:              -d.Caps,
		EmptyReturned:     -d.EmptyReturned,
		RemainingReturned: -d.RemainingReturned,
		Revenue:           d.Revenue.Neg(),
		Expense:           d.Expense.Neg(),
	}
}

// UsageDiff is the delta that turns old into next.
func UsageDiff(old, next BottleUsage) UsageDelta {
	return UsageDelta{
		Filled:            next.Filled - old.Filled,
		Sales:             next.Sales - old.Sales,
		Empty:             next.Empty - old.Empty,
		Remaining:         next.Remaining - old.Remaining,
		Damaged:           next.Damaged - old.Damaged,
		Refilled:          next.Refilled - old.Refilled,
		Caps:              next.Caps - old.Caps,
		EmptyReturned:     next.EmptyReturned - old.EmptyReturned,
		RemainingReturned: next.RemainingReturned - old.RemainingReturned,
		Revenue:           next.Revenue.Sub(old.Revenue),
		Expense:           next.Expense.Sub(old.Expense),
	}
}

// Apply returns the usage after d, or the first bound d would break.
func (u BottleUsage) Apply(d UsageDelta) (BottleUsage, error) {
	next := u
	fields := []struct {
		name  string
		dst   *int
		cur   int
		delta int
	}{
		{"filled_bottles", &next.Filled, u.Filled, d.Filled},
		{"sales", &next.Sales, u.Sales, d.Sales},
		{"empty_bottles", &next.Empty, u.Empty, d.Empty},
		{"remaining_bottles", &next.Remaining, u.Remaining, d.Remaining},
		{"damaged_bottles", &next.Damaged, u.Damaged, d.Damaged},
		{"refilled_bottles", &next.Refilled, u.Refilled, d.Refilled},
		{"caps", &next.Caps, u.Caps, d.Caps},
		{"empty_returned", &next.EmptyReturned, u.EmptyReturned, d.EmptyReturned},
		{"remaining_returned", &next.RemainingReturned, u.RemainingReturned, d.RemainingReturned},
	}
	for _, f := range fields {
		v, err := Adjust(entityUsage, f.name, f.cur, f.delta)
		if err != nil {
			return u, err
		}
		*f.dst = v
	}

	var err error
	if next.Revenue, err = adjustMoney(entityUsage, "revenue", u.Revenue, d.Revenue); err != nil {
		return u, err
	}
	if next.Expense, err = adjustMoney(entityUsage, "expense", u.Expense, d.Expense); err != nil {
		return u, err
	}
	if err := next.Check(); err != nil {
		return u, err
	}
	return next, nil
}

// Check verifies the cross-counter rules of a usage row.
func (u BottleUsage) Check() error {
	if err := atMost(entityUsage, "sales", u.Sales, u.Filled+u.Refilled, "filled_bottles + refilled_bottles"); err != nil {
		return err
	}
	if err := atMost(entityUsage, "empty_bottles", u.Empty, u.Sales, "sales"); err != nil {
		return err
	}
	if err := atMost(entityUsage, "refilled_bottles", u.Refilled, u.Sales, "sales"); err != nil {
		return err
	}
	if err := atMost(entityUsage, "remaining_bottles", u.Remaining, u.Filled-u.Returned(), "filled_bottles - returned_bottles"); err != nil {
		return err
	}
	if held := u.Sales + u.Remaining + u.RemainingReturned; u.Filled+u.Refilled != held {
		return &InvariantError{
			Entity: entityUsage,
			Field:  "filled_bottles + refilled_bottles",
			Value:  u.Filled + u.Refilled,
			Bound:  fmt.Sprintf("= sales + remaining_bottles + remaining_returned (%d)", held),
		}
	}
	return nil
}

// =============================================================================
// CUSTOMER DELTA
// =============================================================================

// CustomerDelta is a signed change to a customer's holdings and account.
type CustomerDelta struct {
	Bottles int
	Balance decimal.Decimal
}

func (d CustomerDelta) Add(o CustomerDelta) CustomerDelta {
	return CustomerDelta{Bottles: d.Bottles + o.Bottles, Balance: d.Balance.Add(o.Balance)}
}

func (d CustomerDelta) Neg() CustomerDelta {
	return CustomerDelta{Bottles: -d.Bottles, Balance: d.Balance.Neg()}
}

func (d CustomerDelta) IsZero() bool {
	return d.Bottles == 0 && d.Balance.IsZero()
}

// Apply returns the customer after d. Balance has no lower bound.
func (c Customer) Apply(d CustomerDelta) (Customer, error) {
	next := c
	var err error
	if next.Bottles, err = Adjust(entityCustomer, "bottles", c.Bottles, d.Bottles); err != nil {
		return c, err
	}
	next.Balance = c.Balance.Add(d.Balance)
	return next, nil
}
