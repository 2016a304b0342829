package ledger

import (
	"github.com/shopspring/decimal"
)

// Effect is everything one record does to the ledger: its usage row, the
// shared pool and, for deliveries, the customer account. Effects are linear
// in the record's fields, so an edit is Effect(new).Sub(Effect(old)) and a
// delete is Effect(old).Neg().
type Effect struct {
	Usage    UsageDelta
	Stock    StockDelta
	Customer CustomerDelta
}

func (e Effect) Add(o Effect) Effect {
	return Effect{
		Usage:    e.Usage.Add(o.Usage),
		Stock:    e.Stock.Add(o.Stock),
		Customer: e.Customer.Add(o.Customer),
	}
}

func (e Effect) Neg() Effect {
	return Effect{Usage: e.Usage.Neg(), Stock: e.Stock.Neg(), Customer: e.Customer.Neg()}
}

func (e Effect) Sub(o Effect) Effect { return e.Add(o.Neg()) }

// DeliveryEffect computes what a delivery does at the given bottle price.
//
// The moderator sells Filled bottles out of remaining, collects Empty and
// Damaged containers, and takes Payment. Damaged bottles leave circulation.
// The customer's balance moves by payment - (filled - foc) * price.
func DeliveryEffect(d Delivery, price decimal.Decimal) Effect {
	billed := decimal.NewFromInt(int64(d.Filled - d.FOC)).Mul(price)
	return Effect{
		Usage: UsageDelta{
			Sales:     d.Filled,
			Remaining: -d.Filled,
			Empty:     d.Empty,
			Damaged:   d.Damaged,
			Revenue:   d.Payment,
		},
		Stock: Damage(d.Damaged),
		Customer: CustomerDelta{
			Bottles: d.Filled - d.Empty - d.Damaged,
			Balance: d.Payment.Sub(billed),
		},
	}
}

// MiscEffect computes what a miscellaneous delivery does. It has no
// customer account, so only the usage row and the pool move.
func MiscEffect(m Misc) Effect {
	return Effect{
		Usage: UsageDelta{
			Sales:     m.Filled,
			Remaining: -m.Filled,
			Empty:     m.Empty,
			Damaged:   m.Damaged,
			Revenue:   m.Payment,
		},
		Stock: Damage(m.Damaged),
	}
}

// ExpenseEffect computes what a stored expense did. Refilled is the refill
// actually applied when the expense was recorded.
func ExpenseEffect(x OtherExpense) Effect {
	return Effect{Usage: RefillDelta(x.Refilled).Add(UsageDelta{Expense: x.Amount})}
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func nonNegative(field string, v int) error {
	if v < 0 {
		return &InputError{Field: field, Reason: "must be >= 0"}
	}
	return nil
}

func nonNegativeMoney(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &InputError{Field: field, Reason: "must be >= 0"}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateCounts checks a set of named request counts.
func ValidateCounts(counts map[string]int) error {
	for field, v := range counts {
		if err := nonNegative(field, v); err != nil {
			return err
		}
	}
	return nil
}

func (d Delivery) Validate() error {
	if d.CustomerID == "" {
		return &InputError{Field: "customer_id", Reason: "is required"}
	}
	return firstErr(
		nonNegative("filled_bottles", d.Filled),
		nonNegative("empty_bottles", d.Empty),
		nonNegative("damaged_bottles", d.Damaged),
		nonNegative("foc", d.FOC),
		nonNegativeMoney("payment", d.Payment),
		focWithinFilled(d.FOC, d.Filled),
	)
}

func (m Misc) Validate() error {
	return firstErr(
		nonNegative("filled_bottles", m.Filled),
		nonNegative("empty_bottles", m.Empty),
		nonNegative("damaged_bottles", m.Damaged),
		nonNegative("foc", m.FOC),
		nonNegativeMoney("payment", m.Payment),
		focWithinFilled(m.FOC, m.Filled),
	)
}

func (x OtherExpense) Validate() error {
	return firstErr(
		nonNegativeMoney("amount", x.Amount),
		nonNegative("refilled_bottles", x.Refilled),
	)
}

func focWithinFilled(foc, filled int) error {
	if foc > filled {
		return &InputError{Field: "foc", Reason: "cannot exceed filled_bottles"}
	}
	return nil
}
