/*
store.go - Persistence interfaces for the bottle ledger

PURPOSE:
  Defines the boundary between ledger operations and the database. The
  service layer only ever writes inside TxStore.WithTx, so every
  operation that touches more than one row commits all of it or none.

KEY INTERFACES:
  Store:   point lookups, per-day lookups, windowed listings and writes
  TxStore: Store plus WithTx for atomic read-modify-write

MISSING ROWS:
  Getters return (nil, nil) when the row does not exist. The service layer
  turns that into a NotFoundError naming the entity.

STOCK VERSIONING:
  UpdateStock writes only if the stored Version still equals tb.Version,
  then bumps it. A mismatch returns ErrConcurrentModification so the
  operation can be retried from a fresh read. SQL stores also lock the
  row for the rest of the transaction when the dialect supports it.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, snapshot + rollback
  - store/sqlstore: SQLite and PostgreSQL

SEE ALSO:
  - bottles/service.go: the only caller of WithTx
*/
package ledger

import (
	"context"
	"time"
)

// ListFilter narrows listing queries. Zero fields match everything.
// From and To bound created_at inclusively; Day matches the record's day.
type ListFilter struct {
	ModeratorID string
	CustomerID  string
	Day         time.Time
	From        time.Time
	To          time.Time
}

// DayKey is the storage key of a ledger day.
func DayKey(day time.Time) string {
	return day.Format(DayLayout)
}

type StockStore interface {
	GetStock(ctx context.Context) (*TotalBottles, error)
	CreateStock(ctx context.Context, tb TotalBottles) error
	UpdateStock(ctx context.Context, tb TotalBottles) error
}

type UsageStore interface {
	GetUsage(ctx context.Context, id string) (*BottleUsage, error)
	GetUsageForDay(ctx context.Context, moderatorID string, day time.Time) (*BottleUsage, error)
	SaveUsage(ctx context.Context, u BottleUsage) error
	DeleteUsage(ctx context.Context, id string) error
	ListUsage(ctx context.Context, f ListFilter) ([]BottleUsage, error)
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	ListCustomers(ctx context.Context) ([]Customer, error)
}

type DeliveryStore interface {
	GetDelivery(ctx context.Context, id string) (*Delivery, error)
	SaveDelivery(ctx context.Context, d Delivery) error
	DeleteDelivery(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, f ListFilter) ([]Delivery, error)
}

type MiscStore interface {
	GetMisc(ctx context.Context, id string) (*Misc, error)
	SaveMisc(ctx context.Context, m Misc) error
	DeleteMisc(ctx context.Context, id string) error
	ListMisc(ctx context.Context, f ListFilter) ([]Misc, error)
}

type ExpenseStore interface {
	GetExpense(ctx context.Context, id string) (*OtherExpense, error)
	SaveExpense(ctx context.Context, x OtherExpense) error
	DeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context, f ListFilter) ([]OtherExpense, error)
}

type ModeratorStore interface {
	GetModerator(ctx context.Context, id string) (*Moderator, error)
	GetModeratorByName(ctx context.Context, name string) (*Moderator, error)
	SaveModerator(ctx context.Context, m Moderator) error
	DeleteModerator(ctx context.Context, id string) error
	ListModerators(ctx context.Context) ([]Moderator, error)
}

type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	SaveAdmin(ctx context.Context, a Admin) error
}

// Store is the full persistence surface of the ledger.
type Store interface {
	StockStore
	UsageStore
	CustomerStore
	DeliveryStore
	MiscStore
	ExpenseStore
	ModeratorStore
	AdminStore
}

// TxStore runs fn against a transactional view of the store. If fn returns
// an error nothing fn wrote is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
