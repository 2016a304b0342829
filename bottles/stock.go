package bottles

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
)

// InitTotalBottles creates the stock row with every bottle in the
// warehouse. It runs once; later changes go through AdjustTotalBottles.
func (s *Service) InitTotalBottles(ctx context.Context, total int) (ledger.TotalBottles, error) {
	if err := requireAdmin(ctx); err != nil {
		return ledger.TotalBottles{}, err
	}
	if err := ledger.ValidateCounts(map[string]int{"total_bottles": total}); err != nil {
		return ledger.TotalBottles{}, err
	}
	var tb ledger.TotalBottles
	err := s.atomically(ctx, "init_stock", func(tx ledger.Store) error {
		existing, err := tx.GetStock(ctx)
		if err != nil {
			return fmt.Errorf("load total bottles: %w", err)
		}
		if existing != nil {
			return &ledger.ConflictError{Entity: "total bottles", Reason: "already initialized"}
		}
		now := s.timestamp()
		tb = ledger.TotalBottles{
			ID:        ledger.StockID,
			Total:     total,
			Available: total,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateStock(ctx, tb); err != nil {
			return fmt.Errorf("create total bottles: %w", err)
		}
		tb.Version = 1
		return nil
	})
	if err != nil {
		return ledger.TotalBottles{}, err
	}
	s.log.Info("total bottles initialized", zap.Int("total", total))
	return tb, nil
}

// StockAdjustment carries absolute targets. Damaged moves bottles between
// the warehouse and the damaged count; Total, when set, is the total
// after that move and buys or writes off warehouse bottles to reach it.
type StockAdjustment struct {
	Total   *int
	Damaged *int
}

func (s *Service) AdjustTotalBottles(ctx context.Context, adj StockAdjustment) (ledger.TotalBottles, error) {
	if err := requireAdmin(ctx); err != nil {
		return ledger.TotalBottles{}, err
	}
	counts := map[string]int{}
	if adj.Total != nil {
		counts["total_bottles"] = *adj.Total
	}
	if adj.Damaged != nil {
		counts["damaged_bottles"] = *adj.Damaged
	}
	if len(counts) == 0 {
		return ledger.TotalBottles{}, &ledger.InputError{Field: "total_bottles", Reason: "total or damaged is required"}
	}
	if err := ledger.ValidateCounts(counts); err != nil {
		return ledger.TotalBottles{}, err
	}

	var tb ledger.TotalBottles
	err := s.atomically(ctx, "adjust_stock", func(tx ledger.Store) error {
		stock, err := loadStock(ctx, tx)
		if err != nil {
			return err
		}
		b := books{stock: &stock}
		if adj.Damaged != nil {
			if err := b.apply(ledger.Effect{Stock: ledger.DamageInStock(*adj.Damaged - stock.Damaged)}); err != nil {
				return err
			}
		}
		if adj.Total != nil {
			if err := b.apply(ledger.Effect{Stock: ledger.Restock(*adj.Total - stock.Total)}); err != nil {
				return err
			}
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		tb = stock
		return nil
	})
	if err != nil {
		return ledger.TotalBottles{}, err
	}
	s.log.Info("total bottles adjusted",
		zap.Int("total", tb.Total),
		zap.Int("available", tb.Available),
		zap.Int("damaged", tb.Damaged))
	return tb, nil
}

func (s *Service) GetTotalBottles(ctx context.Context) (ledger.TotalBottles, error) {
	tb, err := s.store.GetStock(ctx)
	if err != nil {
		return ledger.TotalBottles{}, err
	}
	if tb == nil {
		return ledger.TotalBottles{}, ledger.NotFound("total bottles", "")
	}
	return *tb, nil
}
