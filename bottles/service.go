/*
service.go - Ledger operations over a transactional store

PURPOSE:
  The Service is the only code that mutates the bottle ledger. Every
  operation follows the same shape:

    1. open a transaction (WithTx)
    2. load the rows it touches: usage row for the day, stock, customer
    3. ask the lifecycle whether the day allows the operation
    4. build an Effect (or a diff of two Effects) and apply it; the
       ledger package rejects any counter leaving its bounds
    5. write every changed row; commit
    6. after commit, emit side effects (notifications, metrics)

  A failed step returns the error and the transaction rolls back, so a
  caller never observes a partial update.

RETRIES:
  The stock row is versioned. When a concurrent writer commits first,
  the store reports ErrConcurrentModification and the whole operation
  is replayed from fresh reads, up to maxAttempts times.

ACTORS:
  The caller's identity comes from auth.ActorFromContext. Admins may
  correct done days; moderators may only touch their own records on
  open days. Calls without an actor are treated as a moderator acting
  on the records named in the request.

SEE ALSO:
  - ledger/effects.go: what each record does to the counters
  - ledger/lifecycle.go: which events a day accepts
*/
package bottles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/ids"
	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/notify"
	"github.com/warp/bottle-ledger/obs"
)

const maxAttempts = 3

type Service struct {
	store    ledger.TxStore
	cal      ledger.Calendar
	notifier notify.Sink
	log      *zap.Logger
	metrics  *obs.Metrics
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithCalendar(c ledger.Calendar) Option   { return func(s *Service) { s.cal = c } }
func WithNotifier(n notify.Sink) Option       { return func(s *Service) { s.notifier = n } }
func WithLogger(l *zap.Logger) Option         { return func(s *Service) { s.log = l } }
func WithMetrics(m *obs.Metrics) Option       { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func NewService(store ledger.TxStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ledger.ErrStoreRequired
	}
	s := &Service{
		store:    store,
		cal:      ledger.NewCalendar(time.UTC),
		notifier: notify.Noop{},
		log:      zap.NewNop(),
		now:      time.Now,
		newID:    ids.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Calendar exposes the day boundaries the service uses.
func (s *Service) Calendar() ledger.Calendar { return s.cal }

// =============================================================================
// TRANSACTION RUNNER
// =============================================================================

// atomically runs fn in one transaction, replaying it when the stock row
// was changed underneath it. fn must not keep state between attempts.
func (s *Service) atomically(ctx context.Context, op string, fn func(tx ledger.Store) error) error {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if !ledger.IsRetryable(err) {
			break
		}
		s.log.Debug("retrying ledger operation", zap.String("op", op), zap.Int("attempt", attempt))
	}
	s.observe(ctx, op, err, time.Since(start))
	return err
}

func (s *Service) observe(ctx context.Context, op string, err error, d time.Duration) {
	outcome := outcomeOf(err)
	if err != nil && !ledger.IsClientError(err) {
		s.log.Error("ledger operation failed", zap.String("op", op), zap.Error(err))
	} else if err != nil {
		s.log.Debug("ledger operation rejected", zap.String("op", op), zap.String("outcome", outcome), zap.Error(err))
	}
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOp(op, outcome, d)
	if err != nil {
		return
	}
	if tb, gerr := s.store.GetStock(ctx); gerr == nil && tb != nil {
		s.metrics.SetStock(tb.Total, tb.Available, tb.Used, tb.Damaged, tb.Deposit, tb.Available-tb.DerivedAvailable())
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrDayClosed):
		return "day_closed"
	case errors.Is(err, ledger.ErrInvariantViolation):
		return "invariant"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrConflict):
		return "conflict"
	case errors.Is(err, ledger.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ledger.ErrForbidden):
		return "forbidden"
	case ledger.IsRetryable(err):
		return "contention"
	default:
		return "internal"
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (s *Service) timestamp() time.Time { return s.now().UTC() }

// day resolves a requested day, defaulting to today in the ledger location.
func (s *Service) day(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return s.cal.Day(t)
}

func isAdmin(ctx context.Context) bool {
	a, ok := auth.ActorFromContext(ctx)
	return ok && a.IsAdmin()
}

func requireAdmin(ctx context.Context) error {
	if !isAdmin(ctx) {
		return fmt.Errorf("%w: admin only", ledger.ErrForbidden)
	}
	return nil
}

// requireOwner rejects a moderator acting on another moderator's record.
func requireOwner(ctx context.Context, moderatorID string) error {
	a, ok := auth.ActorFromContext(ctx)
	if !ok || a.IsAdmin() || a.ID == moderatorID {
		return nil
	}
	return fmt.Errorf("%w: record belongs to another moderator", ledger.ErrForbidden)
}

// recordEvent is the lifecycle event for changing a day's records: admins
// correct, moderators record.
func recordEvent(ctx context.Context) ledger.DayEvent {
	if isAdmin(ctx) {
		return ledger.EventCorrect
	}
	return ledger.EventRecord
}

func loadStock(ctx context.Context, tx ledger.Store) (ledger.TotalBottles, error) {
	tb, err := tx.GetStock(ctx)
	if err != nil {
		return ledger.TotalBottles{}, fmt.Errorf("load total bottles: %w", err)
	}
	if tb == nil {
		return ledger.TotalBottles{}, ledger.NotFound("total bottles", "")
	}
	return *tb, nil
}

// openDay loads the usage row for (moderator, day) and checks that ev is
// allowed on it.
func openDay(ctx context.Context, tx ledger.Store, moderatorID string, day time.Time, ev ledger.DayEvent) (ledger.BottleUsage, error) {
	u, err := tx.GetUsageForDay(ctx, moderatorID, day)
	if err != nil {
		return ledger.BottleUsage{}, fmt.Errorf("load bottle usage: %w", err)
	}
	if _, err := ledger.Transition(ledger.StateOf(u), ev); err != nil {
		var nf *ledger.NotFoundError
		if errors.As(err, &nf) {
			return ledger.BottleUsage{}, ledger.NotFound("bottle usage", moderatorID+"@"+ledger.DayKey(day))
		}
		return ledger.BottleUsage{}, err
	}
	return *u, nil
}

func loadCustomer(ctx context.Context, tx ledger.Store, id string) (ledger.Customer, error) {
	c, err := tx.GetCustomer(ctx, id)
	if err != nil {
		return ledger.Customer{}, fmt.Errorf("load customer: %w", err)
	}
	if c == nil {
		return ledger.Customer{}, ledger.NotFound("customer", id)
	}
	return *c, nil
}

func loadModerator(ctx context.Context, tx ledger.Store, id string) (ledger.Moderator, error) {
	m, err := tx.GetModerator(ctx, id)
	if err != nil {
		return ledger.Moderator{}, fmt.Errorf("load moderator: %w", err)
	}
	if m == nil {
		return ledger.Moderator{}, ledger.NotFound("moderator", id)
	}
	return *m, nil
}

// =============================================================================
// BOOKS - the rows one operation reads and writes together
// =============================================================================

type books struct {
	usage    *ledger.BottleUsage
	stock    *ledger.TotalBottles
	customer *ledger.Customer

	stockDirty    bool
	customerDirty bool
}

// apply runs eff against every row in the books. Parts of the effect
// that are zero do not require their row to be loaded.
func (b *books) apply(eff ledger.Effect) error {
	if b.usage != nil {
		next, err := b.usage.Apply(eff.Usage)
		if err != nil {
			return err
		}
		*b.usage = next
	}
	if !eff.Stock.IsZero() {
		if b.stock == nil {
			return errors.New("stock not loaded")
		}
		next, err := b.stock.Apply(eff.Stock)
		if err != nil {
			return err
		}
		*b.stock = next
		b.stockDirty = true
	}
	if !eff.Customer.IsZero() {
		if b.customer == nil {
			return errors.New("customer not loaded")
		}
		next, err := b.customer.Apply(eff.Customer)
		if err != nil {
			return err
		}
		*b.customer = next
		b.customerDirty = true
	}
	return nil
}

func (b *books) save(ctx context.Context, tx ledger.Store, now time.Time) error {
	if b.usage != nil {
		b.usage.UpdatedAt = now
		if err := tx.SaveUsage(ctx, *b.usage); err != nil {
			return fmt.Errorf("save bottle usage: %w", err)
		}
	}
	if b.stockDirty {
		b.stock.UpdatedAt = now
		if err := tx.UpdateStock(ctx, *b.stock); err != nil {
			return fmt.Errorf("save total bottles: %w", err)
		}
		b.stock.Version++
	}
	if b.customerDirty {
		b.customer.UpdatedAt = now
		if err := tx.SaveCustomer(ctx, *b.customer); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
	}
	return nil
}
