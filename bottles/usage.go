package bottles

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
)

// =============================================================================
// ISSUE AND REFILL
// =============================================================================

// IssueRequest is a moderator's bottle request for a day. The first request
// of the day issues Filled bottles from the warehouse; later requests refill
// empties, adding Caps to the caps held first.
type IssueRequest struct {
	ModeratorID string
	Day         time.Time
	Filled      int
	Caps        int
}

type IssueResult struct {
	Usage    ledger.BottleUsage
	Stock    ledger.TotalBottles
	Created  bool
	Refilled int
}

// AddUpdateBottleUsage issues bottles on a moderator's first request of the
// day and refills empties on every later one. A refill draws its filled
// bottles from the warehouse like an issue does.
func (s *Service) AddUpdateBottleUsage(ctx context.Context, req IssueRequest) (IssueResult, error) {
	if err := ledger.ValidateCounts(map[string]int{"filled_bottles": req.Filled, "caps": req.Caps}); err != nil {
		return IssueResult{}, err
	}
	if err := requireOwner(ctx, req.ModeratorID); err != nil {
		return IssueResult{}, err
	}
	day := s.day(req.Day)

	var res IssueResult
	err := s.atomically(ctx, "issue_bottles", func(tx ledger.Store) error {
		res = IssueResult{}
		mod, err := loadModerator(ctx, tx, req.ModeratorID)
		if err != nil {
			return err
		}
		if !mod.Active {
			return fmt.Errorf("%w: moderator %s is inactive", ledger.ErrForbidden, mod.Name)
		}
		stock, err := loadStock(ctx, tx)
		if err != nil {
			return err
		}
		existing, err := tx.GetUsageForDay(ctx, req.ModeratorID, day)
		if err != nil {
			return fmt.Errorf("load bottle usage: %w", err)
		}

		if existing == nil {
			if _, err := ledger.Transition(ledger.DayUninitialized, ledger.EventIssue); err != nil {
				return err
			}
			now := s.timestamp()
			base := ledger.BottleUsage{ID: s.newID(), ModeratorID: req.ModeratorID, Day: day, CreatedAt: now}
			return s.issue(ctx, tx, req, base, stock, &res)
		}
		if isBlank(*existing) {
			// a reset day takes a fresh issuance into the same row
			return s.issue(ctx, tx, req, *existing, stock, &res)
		}
		if _, err := ledger.Transition(ledger.StateOf(existing), ledger.EventRefill); err != nil {
			return err
		}
		return s.refill(ctx, tx, req, *existing, stock, &res)
	})
	if err != nil {
		return IssueResult{}, err
	}
	s.log.Info("bottle usage updated",
		zap.String("moderator_id", req.ModeratorID),
		zap.String("day", ledger.DayKey(day)),
		zap.Bool("created", res.Created),
		zap.Int("refilled", res.Refilled))
	return res, nil
}

// isBlank reports whether a usage row has never held bottles.
func isBlank(u ledger.BottleUsage) bool {
	return !u.Done && u.Filled == 0 && u.Refilled == 0 && u.Returned() == 0 && u.Empty == 0
}

func (s *Service) issue(ctx context.Context, tx ledger.Store, req IssueRequest, base ledger.BottleUsage, stock ledger.TotalBottles, res *IssueResult) error {
	if req.Filled == 0 {
		return &ledger.InputError{Field: "filled_bottles", Reason: "must be > 0 to open a day"}
	}
	if err := stock.RequireAvailable(req.Filled); err != nil {
		return err
	}
	usage := base
	b := books{usage: &usage, stock: &stock}
	eff := ledger.Effect{
		Usage: ledger.UsageDelta{Filled: req.Filled, Remaining: req.Filled, Caps: req.Caps},
		Stock: ledger.Issue(req.Filled),
	}
	if err := b.apply(eff); err != nil {
		return err
	}
	if err := b.save(ctx, tx, s.timestamp()); err != nil {
		return err
	}
	*res = IssueResult{Usage: usage, Stock: stock, Created: true}
	return nil
}

func (s *Service) refill(ctx context.Context, tx ledger.Store, req IssueRequest, usage ledger.BottleUsage, stock ledger.TotalBottles, res *IssueResult) error {
	actual := ledger.RefillAmount(usage.Empty, usage.Caps+req.Caps, req.Filled)
	if actual == 0 && req.Caps == 0 {
		*res = IssueResult{Usage: usage, Stock: stock}
		return nil
	}
	if err := stock.RequireAvailable(actual); err != nil {
		return err
	}
	b := books{usage: &usage, stock: &stock}
	eff := ledger.Effect{
		Usage: ledger.UsageDelta{Caps: req.Caps}.Add(ledger.RefillDelta(actual)),
		Stock: ledger.Issue(actual),
	}
	if err := b.apply(eff); err != nil {
		return err
	}
	if err := b.save(ctx, tx, s.timestamp()); err != nil {
		return err
	}
	*res = IssueResult{Usage: usage, Stock: stock, Refilled: actual}
	return nil
}

// =============================================================================
// CLOSE AND RETURN
// =============================================================================

// SetDone closes (done=true) or reopens (done=false) a moderator's day.
// Reopening a closed day is an admin correction.
func (s *Service) SetDone(ctx context.Context, moderatorID string, day time.Time, done bool) (ledger.BottleUsage, error) {
	if err := requireOwner(ctx, moderatorID); err != nil {
		return ledger.BottleUsage{}, err
	}
	day = s.day(day)
	ev := ledger.EventClose
	if !done {
		ev = ledger.EventReopen
	}

	var out ledger.BottleUsage
	err := s.atomically(ctx, "set_done", func(tx ledger.Store) error {
		usage, err := openDay(ctx, tx, moderatorID, day, ev)
		if err != nil {
			return err
		}
		if !done {
			if err := requireAdmin(ctx); err != nil {
				return err
			}
		}
		usage.Done = done
		usage.UpdatedAt = s.timestamp()
		if err := tx.SaveUsage(ctx, usage); err != nil {
			return fmt.Errorf("save bottle usage: %w", err)
		}
		out = usage
		return nil
	})
	if err != nil {
		return ledger.BottleUsage{}, err
	}
	s.log.Info("bottle usage day closed",
		zap.String("moderator_id", moderatorID),
		zap.String("day", ledger.DayKey(day)),
		zap.Bool("done", done))
	return out, nil
}

type ReturnRequest struct {
	ModeratorID string
	Day         time.Time
	Empty       int
	Remaining   int
	Caps        int
}

type ReturnResult struct {
	Usage ledger.BottleUsage
	Stock ledger.TotalBottles
}

// ReturnBottles hands empties and unsold bottles back to the warehouse.
// Caps go back too but are not pool bottles.
func (s *Service) ReturnBottles(ctx context.Context, req ReturnRequest) (ReturnResult, error) {
	if err := ledger.ValidateCounts(map[string]int{
		"empty_bottles":     req.Empty,
		"remaining_bottles": req.Remaining,
		"caps":              req.Caps,
	}); err != nil {
		return ReturnResult{}, err
	}
	if err := requireOwner(ctx, req.ModeratorID); err != nil {
		return ReturnResult{}, err
	}
	day := s.day(req.Day)

	var res ReturnResult
	err := s.atomically(ctx, "return_bottles", func(tx ledger.Store) error {
		usage, err := openDay(ctx, tx, req.ModeratorID, day, ledger.EventReturn)
		if err != nil {
			return err
		}
		stock, err := loadStock(ctx, tx)
		if err != nil {
			return err
		}
		b := books{usage: &usage, stock: &stock}
		eff := ledger.Effect{
			Usage: ledger.UsageDelta{
				Empty:             -req.Empty,
				Remaining:         -req.Remaining,
				Caps:              -req.Caps,
				EmptyReturned:     req.Empty,
				RemainingReturned: req.Remaining,
			},
			Stock: ledger.Return(req.Empty + req.Remaining),
		}
		if err := b.apply(eff); err != nil {
			return err
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		res = ReturnResult{Usage: usage, Stock: stock}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	s.log.Info("bottles returned",
		zap.String("moderator_id", req.ModeratorID),
		zap.Int("empty", req.Empty),
		zap.Int("remaining", req.Remaining))
	return res, nil
}

// =============================================================================
// ADMIN CORRECTIONS
// =============================================================================

// UsageCorrection holds the absolute counters an admin wants a usage row to
// carry. Money fields are not editable here: they follow the day's records.
type UsageCorrection struct {
	Filled            int
	Sales             int
	Empty             int
	Remaining         int
	Damaged           int
	Refilled          int
	Caps              int
	EmptyReturned     int
	RemainingReturned int
}

// EditBottleUsage overwrites a usage row's counters and mirrors the pool
// side of the change: more filled or refilled draws from available, more
// returned goes back to it, more damaged leaves circulation. Works on
// closed days.
func (s *Service) EditBottleUsage(ctx context.Context, id string, c UsageCorrection) (ReturnResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return ReturnResult{}, err
	}
	var res ReturnResult
	err := s.atomically(ctx, "edit_usage", func(tx ledger.Store) error {
		usage, err := loadUsage(ctx, tx, id, ledger.EventCorrect)
		if err != nil {
			return err
		}
		stock, err := loadStock(ctx, tx)
		if err != nil {
			return err
		}
		target := usage
		target.Filled = c.Filled
		target.Sales = c.Sales
		target.Empty = c.Empty
		target.Remaining = c.Remaining
		target.Damaged = c.Damaged
		target.Refilled = c.Refilled
		target.Caps = c.Caps
		target.EmptyReturned = c.EmptyReturned
		target.RemainingReturned = c.RemainingReturned

		diff := ledger.UsageDiff(usage, target)
		drawn := diff.Filled + diff.Refilled
		if drawn > 0 {
			if err := stock.RequireAvailable(drawn); err != nil {
				return err
			}
		}
		b := books{usage: &usage, stock: &stock}
		eff := ledger.Effect{
			Usage: diff,
			Stock: ledger.Issue(drawn).
				Add(ledger.Return(diff.EmptyReturned + diff.RemainingReturned)).
				Add(ledger.Damage(diff.Damaged)),
		}
		if err := b.apply(eff); err != nil {
			return err
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		res = ReturnResult{Usage: usage, Stock: stock}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	s.log.Info("bottle usage corrected", zap.String("usage_id", id))
	return res, nil
}

type DeleteUsageResult struct {
	Stock           ledger.TotalBottles
	RemovedMisc     int
	RemovedExpenses int
}

// DeleteBottleUsage removes a day and rolls the pool back: the same-day
// misc and expense records are reversed and removed, then the bottles the
// moderator still holds go back to available. Deliveries are kept.
// Moderators may only drop their own open days.
func (s *Service) DeleteBottleUsage(ctx context.Context, id string) (DeleteUsageResult, error) {
	ev := ledger.EventDiscard
	if isAdmin(ctx) {
		ev = ledger.EventDelete
	}
	var res DeleteUsageResult
	err := s.atomically(ctx, "delete_usage", func(tx ledger.Store) error {
		usage, err := loadUsage(ctx, tx, id, ev)
		if err != nil {
			return err
		}
		if err := requireOwner(ctx, usage.ModeratorID); err != nil {
			return err
		}
		res, err = s.unwindDay(ctx, tx, usage)
		if err != nil {
			return err
		}
		if err := tx.DeleteUsage(ctx, usage.ID); err != nil {
			return fmt.Errorf("delete bottle usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeleteUsageResult{}, err
	}
	s.log.Info("bottle usage deleted",
		zap.String("usage_id", id),
		zap.Int("removed_misc", res.RemovedMisc),
		zap.Int("removed_expenses", res.RemovedExpenses))
	return res, nil
}

// ResetBottleUsage unwinds a day like DeleteBottleUsage but keeps an empty,
// open row in its place.
func (s *Service) ResetBottleUsage(ctx context.Context, id string) (ledger.BottleUsage, ledger.TotalBottles, error) {
	if err := requireAdmin(ctx); err != nil {
		return ledger.BottleUsage{}, ledger.TotalBottles{}, err
	}
	var (
		usage ledger.BottleUsage
		stock ledger.TotalBottles
	)
	err := s.atomically(ctx, "reset_usage", func(tx ledger.Store) error {
		old, err := loadUsage(ctx, tx, id, ledger.EventCorrect)
		if err != nil {
			return err
		}
		unwound, err := s.unwindDay(ctx, tx, old)
		if err != nil {
			return err
		}
		usage = ledger.BottleUsage{
			ID:          old.ID,
			ModeratorID: old.ModeratorID,
			Day:         old.Day,
			CreatedAt:   old.CreatedAt,
			UpdatedAt:   s.timestamp(),
		}
		if err := tx.SaveUsage(ctx, usage); err != nil {
			return fmt.Errorf("save bottle usage: %w", err)
		}
		stock = unwound.Stock
		return nil
	})
	if err != nil {
		return ledger.BottleUsage{}, ledger.TotalBottles{}, err
	}
	s.log.Info("bottle usage reset", zap.String("usage_id", id))
	return usage, stock, nil
}

// unwindDay reverses everything a day put into the pool except its
// deliveries. Usage-row effects are not replayed: the row is dropped or
// zeroed by the caller.
func (s *Service) unwindDay(ctx context.Context, tx ledger.Store, usage ledger.BottleUsage) (DeleteUsageResult, error) {
	stock, err := loadStock(ctx, tx)
	if err != nil {
		return DeleteUsageResult{}, err
	}
	b := books{stock: &stock}
	sameDay := ledger.ListFilter{ModeratorID: usage.ModeratorID, Day: usage.Day}

	misc, err := tx.ListMisc(ctx, sameDay)
	if err != nil {
		return DeleteUsageResult{}, fmt.Errorf("list misc: %w", err)
	}
	miscDamaged := 0
	for _, m := range misc {
		miscDamaged += m.Damaged
		if err := b.apply(ledger.Effect{Stock: ledger.MiscEffect(m).Stock.Neg()}); err != nil {
			return DeleteUsageResult{}, err
		}
		if err := tx.DeleteMisc(ctx, m.ID); err != nil {
			return DeleteUsageResult{}, fmt.Errorf("delete misc: %w", err)
		}
	}

	expenses, err := tx.ListExpenses(ctx, sameDay)
	if err != nil {
		return DeleteUsageResult{}, fmt.Errorf("list expenses: %w", err)
	}
	expenseRefilled := 0
	for _, x := range expenses {
		expenseRefilled += x.Refilled
		if err := tx.DeleteExpense(ctx, x.ID); err != nil {
			return DeleteUsageResult{}, fmt.Errorf("delete expense: %w", err)
		}
	}

	if out := heldBottles(usage, miscDamaged, expenseRefilled); out > 0 {
		if err := b.apply(ledger.Effect{Stock: ledger.Return(out)}); err != nil {
			return DeleteUsageResult{}, err
		}
	}
	if err := b.save(ctx, tx, s.timestamp()); err != nil {
		return DeleteUsageResult{}, err
	}
	return DeleteUsageResult{Stock: stock, RemovedMisc: len(misc), RemovedExpenses: len(expenses)}, nil
}

// heldBottles is what a day still has out of the warehouse once its misc
// records are reversed: everything drawn (issued plus warehouse refills)
// less what came back and less damage written off by records that stay.
// Expense refills were done outside the warehouse and drew nothing.
func heldBottles(u ledger.BottleUsage, miscDamaged, expenseRefilled int) int {
	drawn := u.Filled + max(u.Refilled-expenseRefilled, 0)
	writtenOff := max(u.Damaged-miscDamaged, 0)
	return max(drawn-u.Returned()-writtenOff, 0)
}

func loadUsage(ctx context.Context, tx ledger.Store, id string, ev ledger.DayEvent) (ledger.BottleUsage, error) {
	u, err := tx.GetUsage(ctx, id)
	if err != nil {
		return ledger.BottleUsage{}, fmt.Errorf("load bottle usage: %w", err)
	}
	if u == nil {
		return ledger.BottleUsage{}, ledger.NotFound("bottle usage", id)
	}
	if _, err := ledger.Transition(ledger.StateOf(u), ev); err != nil {
		return ledger.BottleUsage{}, err
	}
	return *u, nil
}

// GetBottleUsage returns a moderator's usage row for a day.
func (s *Service) GetBottleUsage(ctx context.Context, moderatorID string, day time.Time) (ledger.BottleUsage, error) {
	u, err := s.store.GetUsageForDay(ctx, moderatorID, s.day(day))
	if err != nil {
		return ledger.BottleUsage{}, err
	}
	if u == nil {
		return ledger.BottleUsage{}, ledger.NotFound("bottle usage", moderatorID+"@"+ledger.DayKey(s.day(day)))
	}
	return *u, nil
}
