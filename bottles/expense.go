package bottles

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
)

// ExpenseInput is a moderator's out-of-pocket expense. Refill asks for
// empties to be refilled as part of it (bought caps, a refill station);
// only what RefillAmount allows is applied and stored.
type ExpenseInput struct {
	ModeratorID string
	Day         time.Time
	Description string
	Amount      decimal.Decimal
	Refill      int
}

type ExpenseResult struct {
	Expense   ledger.OtherExpense
	Usage     ledger.BottleUsage
	Requested int
}

func (s *Service) CreateExpense(ctx context.Context, in ExpenseInput) (ExpenseResult, error) {
	if err := ledger.ValidateCounts(map[string]int{"refilled_bottles": in.Refill}); err != nil {
		return ExpenseResult{}, err
	}
	if err := requireOwner(ctx, in.ModeratorID); err != nil {
		return ExpenseResult{}, err
	}
	now := s.timestamp()
	day := s.day(in.Day)

	var res ExpenseResult
	err := s.atomically(ctx, "create_expense", func(tx ledger.Store) error {
		usage, err := openDay(ctx, tx, in.ModeratorID, day, ledger.EventRecord)
		if err != nil {
			return err
		}
		x := ledger.OtherExpense{
			ID:          s.newID(),
			ModeratorID: in.ModeratorID,
			Day:         day,
			Description: in.Description,
			Amount:      in.Amount,
			Refilled:    ledger.RefillAmount(usage.Empty, usage.Caps, in.Refill),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := x.Validate(); err != nil {
			return err
		}
		b := books{usage: &usage}
		if err := b.apply(ledger.ExpenseEffect(x)); err != nil {
			return err
		}
		if err := b.save(ctx, tx, now); err != nil {
			return err
		}
		if err := tx.SaveExpense(ctx, x); err != nil {
			return fmt.Errorf("save expense: %w", err)
		}
		res = ExpenseResult{Expense: x, Usage: usage, Requested: in.Refill}
		return nil
	})
	if err != nil {
		return ExpenseResult{}, err
	}
	s.log.Info("expense created",
		zap.String("expense_id", res.Expense.ID),
		zap.String("amount", res.Expense.Amount.String()),
		zap.Int("refilled", res.Expense.Refilled))
	return res, nil
}

// UpdateExpense changes an expense. Raising the refill only adds what the
// day's empties and caps still allow; lowering it gives the difference back.
func (s *Service) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (ExpenseResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return ExpenseResult{}, err
	}
	if err := ledger.ValidateCounts(map[string]int{"refilled_bottles": in.Refill}); err != nil {
		return ExpenseResult{}, err
	}
	var res ExpenseResult
	err := s.atomically(ctx, "update_expense", func(tx ledger.Store) error {
		old, err := loadExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		usage, err := openDay(ctx, tx, old.ModeratorID, old.Day, ledger.EventCorrect)
		if err != nil {
			return err
		}
		next := old
		next.Description = in.Description
		next.Amount = in.Amount
		next.UpdatedAt = s.timestamp()
		if in.Refill > old.Refilled {
			next.Refilled = old.Refilled + ledger.RefillAmount(usage.Empty, usage.Caps, in.Refill-old.Refilled)
		} else {
			next.Refilled = in.Refill
		}
		if err := next.Validate(); err != nil {
			return err
		}
		b := books{usage: &usage}
		if err := b.apply(ledger.ExpenseEffect(next).Sub(ledger.ExpenseEffect(old))); err != nil {
			return err
		}
		if err := b.save(ctx, tx, next.UpdatedAt); err != nil {
			return err
		}
		if err := tx.SaveExpense(ctx, next); err != nil {
			return fmt.Errorf("save expense: %w", err)
		}
		res = ExpenseResult{Expense: next, Usage: usage, Requested: in.Refill}
		return nil
	})
	if err != nil {
		return ExpenseResult{}, err
	}
	s.log.Info("expense updated", zap.String("expense_id", id))
	return res, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) (ExpenseResult, error) {
	var res ExpenseResult
	err := s.atomically(ctx, "delete_expense", func(tx ledger.Store) error {
		old, err := loadExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(ctx, old.ModeratorID); err != nil {
			return err
		}
		usage, err := openDay(ctx, tx, old.ModeratorID, old.Day, recordEvent(ctx))
		if err != nil {
			return err
		}
		b := books{usage: &usage}
		if err := b.apply(ledger.ExpenseEffect(old).Neg()); err != nil {
			return err
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		res = ExpenseResult{Expense: old, Usage: usage}
		return nil
	})
	if err != nil {
		return ExpenseResult{}, err
	}
	s.log.Info("expense deleted", zap.String("expense_id", id))
	return res, nil
}

func loadExpense(ctx context.Context, tx ledger.Store, id string) (ledger.OtherExpense, error) {
	x, err := tx.GetExpense(ctx, id)
	if err != nil {
		return ledger.OtherExpense{}, fmt.Errorf("load expense: %w", err)
	}
	if x == nil {
		return ledger.OtherExpense{}, ledger.NotFound("expense", id)
	}
	return *x, nil
}
