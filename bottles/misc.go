package bottles

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
)

// MiscInput describes a delivery with no customer account behind it:
// walk-in sales, samples, or a bare empty/damaged adjustment.
type MiscInput struct {
	ModeratorID string
	Day         time.Time
	Description string
	Filled      int
	Empty       int
	Damaged     int
	FOC         int
	Payment     decimal.Decimal
}

type MiscResult struct {
	Misc  ledger.Misc
	Usage ledger.BottleUsage
	Stock ledger.TotalBottles
}

func (s *Service) CreateMisc(ctx context.Context, in MiscInput) (MiscResult, error) {
	if err := requireOwner(ctx, in.ModeratorID); err != nil {
		return MiscResult{}, err
	}
	now := s.timestamp()
	m := ledger.Misc{
		ID:          s.newID(),
		ModeratorID: in.ModeratorID,
		Day:         s.day(in.Day),
		Description: in.Description,
		Filled:      in.Filled,
		Empty:       in.Empty,
		Damaged:     in.Damaged,
		FOC:         in.FOC,
		Payment:     in.Payment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.Validate(); err != nil {
		return MiscResult{}, err
	}

	var res MiscResult
	err := s.atomically(ctx, "create_misc", func(tx ledger.Store) error {
		b, err := miscBooks(ctx, tx, m, ledger.EventRecord)
		if err != nil {
			return err
		}
		if err := b.apply(ledger.MiscEffect(m)); err != nil {
			return err
		}
		if err := b.save(ctx, tx, now); err != nil {
			return err
		}
		if err := tx.SaveMisc(ctx, m); err != nil {
			return fmt.Errorf("save misc: %w", err)
		}
		res = MiscResult{Misc: m, Usage: *b.usage, Stock: *b.stock}
		return nil
	})
	if err != nil {
		return MiscResult{}, err
	}
	s.log.Info("misc delivery created", zap.String("misc_id", m.ID), zap.String("moderator_id", m.ModeratorID))
	return res, nil
}

// AddMiscBottleUsage records empties collected or bottles broken outside
// any delivery. It is stored as a misc record with nothing sold.
func (s *Service) AddMiscBottleUsage(ctx context.Context, moderatorID string, day time.Time, empty, damaged int) (MiscResult, error) {
	if empty == 0 && damaged == 0 {
		return MiscResult{}, &ledger.InputError{Field: "empty_bottles", Reason: "empty or damaged must be > 0"}
	}
	return s.CreateMisc(ctx, MiscInput{
		ModeratorID: moderatorID,
		Day:         day,
		Description: "bottle usage adjustment",
		Empty:       empty,
		Damaged:     damaged,
	})
}

func (s *Service) UpdateMisc(ctx context.Context, id string, in MiscInput) (MiscResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return MiscResult{}, err
	}
	var res MiscResult
	err := s.atomically(ctx, "update_misc", func(tx ledger.Store) error {
		old, err := loadMisc(ctx, tx, id)
		if err != nil {
			return err
		}
		next := old
		next.Description = in.Description
		next.Filled = in.Filled
		next.Empty = in.Empty
		next.Damaged = in.Damaged
		next.FOC = in.FOC
		next.Payment = in.Payment
		next.UpdatedAt = s.timestamp()
		if err := next.Validate(); err != nil {
			return err
		}
		b, err := miscBooks(ctx, tx, old, ledger.EventCorrect)
		if err != nil {
			return err
		}
		if err := b.apply(ledger.MiscEffect(next).Sub(ledger.MiscEffect(old))); err != nil {
			return err
		}
		if err := b.save(ctx, tx, next.UpdatedAt); err != nil {
			return err
		}
		if err := tx.SaveMisc(ctx, next); err != nil {
			return fmt.Errorf("save misc: %w", err)
		}
		res = MiscResult{Misc: next, Usage: *b.usage, Stock: *b.stock}
		return nil
	})
	if err != nil {
		return MiscResult{}, err
	}
	s.log.Info("misc delivery updated", zap.String("misc_id", id))
	return res, nil
}

func (s *Service) DeleteMisc(ctx context.Context, id string) (MiscResult, error) {
	var res MiscResult
	err := s.atomically(ctx, "delete_misc", func(tx ledger.Store) error {
		old, err := loadMisc(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(ctx, old.ModeratorID); err != nil {
			return err
		}
		b, err := miscBooks(ctx, tx, old, recordEvent(ctx))
		if err != nil {
			return err
		}
		if err := b.apply(ledger.MiscEffect(old).Neg()); err != nil {
			return err
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		if err := tx.DeleteMisc(ctx, id); err != nil {
			return fmt.Errorf("delete misc: %w", err)
		}
		res = MiscResult{Misc: old, Usage: *b.usage, Stock: *b.stock}
		return nil
	})
	if err != nil {
		return MiscResult{}, err
	}
	s.log.Info("misc delivery deleted", zap.String("misc_id", id))
	return res, nil
}

func miscBooks(ctx context.Context, tx ledger.Store, m ledger.Misc, ev ledger.DayEvent) (*books, error) {
	usage, err := openDay(ctx, tx, m.ModeratorID, m.Day, ev)
	if err != nil {
		return nil, err
	}
	stock, err := loadStock(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &books{usage: &usage, stock: &stock}, nil
}

func loadMisc(ctx context.Context, tx ledger.Store, id string) (ledger.Misc, error) {
	m, err := tx.GetMisc(ctx, id)
	if err != nil {
		return ledger.Misc{}, fmt.Errorf("load misc: %w", err)
	}
	if m == nil {
		return ledger.Misc{}, ledger.NotFound("misc delivery", id)
	}
	return *m, nil
}
