/*
types.go - Entities of the bottle ledger

PURPOSE:
  Defines the persisted records every operation reads and writes:
  the shared stock pool (TotalBottles), one usage row per moderator per
  day (BottleUsage), customers, the three transaction records (Delivery,
  Misc, OtherExpense) and the Moderator/Admin reference tables.

COUNTERS:
  All bottle counts are plain ints and must never go negative. Money is
  decimal.Decimal so balances and revenue add up exactly.

OWNERSHIP:
  TotalBottles is only written through StockDelta (delta.go).
  BottleUsage is only written through UsageDelta and the lifecycle
  transitions (lifecycle.go).

SEE ALSO:
  - delta.go: the signed-delta primitive and bound checks
  - store.go: persistence interfaces for these records
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockID is the fixed identity of the TotalBottles row.
const StockID = "current"

// Role is the kind of caller acting on the ledger.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// =============================================================================
// STOCK POOL
// =============================================================================

// TotalBottles is the warehouse-wide bottle pool. There is exactly one row,
// identified by StockID. Version increments on every committed change and
// is used for optimistic concurrency.
type TotalBottles struct {
	ID        string
	Total     int
	Available int
	Used      int
	Damaged   int
	Deposit   int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owned is every bottle the company has, in or out of circulation.
func (tb TotalBottles) Owned() int {
	return tb.Total + tb.Damaged + tb.Deposit
}

// DerivedAvailable reconstructs available bottles from the other counters.
// Reporting shows it next to the stored value; the stored value wins.
func (tb TotalBottles) DerivedAvailable() int {
	return tb.Total - tb.Used - tb.Damaged - tb.Deposit
}

// =============================================================================
// DAILY USAGE
// =============================================================================

// BottleUsage is one moderator's bottle activity for one local calendar day.
type BottleUsage struct {
	ID                string
	ModeratorID       string
	Day               time.Time // start of the day in the ledger location
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
	Done              bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Returned is the total number of bottles handed back to the warehouse.
func (u BottleUsage) Returned() int {
	return u.EmptyReturned + u.RemainingReturned
}

// =============================================================================
// CUSTOMERS AND TRANSACTIONS
// =============================================================================

type Customer struct {
	ID          string
	Name        string
	Phone       string
	Address     string
	Bottles     int
	Balance     decimal.Decimal
	Deposit     int
	BottlePrice decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Delivery is a moderator's delivery to a known customer.
type Delivery struct {
	ID          string
	CustomerID  string
	ModeratorID string
	Day         time.Time
	Filled      int
	Empty       int
	Damaged     int
	FOC         int
	Payment     decimal.Decimal
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Misc is an ad-hoc delivery without a customer account.
type Misc struct {
	ID          string
	ModeratorID string
	Day         time.Time
	Description string
	Filled      int
	Empty       int
	Damaged     int
	FOC         int
	Payment     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OtherExpense is a cash outflow, optionally paying for refills. Refilled
// holds the refill actually applied, which may be less than requested.
type OtherExpense struct {
	ID          string
	ModeratorID string
	Day         time.Time
	Description string
	Amount      decimal.Decimal
	Refilled    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// REFERENCE TABLES
// =============================================================================

type Moderator struct {
	ID           string
	Name         string
	Phone        string
	PasswordHash string
	Areas        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
