package bottles

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/notify"
)

// DeliveryInput carries the fields of a customer delivery. On update the
// customer, moderator and day of the stored delivery are kept.
type DeliveryInput struct {
	CustomerID  string
	ModeratorID string
	Day         time.Time
	Filled      int
	Empty       int
	Damaged     int
	FOC         int
	Payment     decimal.Decimal
	Note        string
}

type DeliveryResult struct {
	Delivery ledger.Delivery
	Usage    ledger.BottleUsage
	Stock    ledger.TotalBottles
	Customer ledger.Customer
}

// CreateDelivery records a sale to a customer against the moderator's open
// day.
func (s *Service) CreateDelivery(ctx context.Context, in DeliveryInput) (DeliveryResult, error) {
	if err := requireOwner(ctx, in.ModeratorID); err != nil {
		return DeliveryResult{}, err
	}
	now := s.timestamp()
	d := ledger.Delivery{
		ID:          s.newID(),
		CustomerID:  in.CustomerID,
		ModeratorID: in.ModeratorID,
		Day:         s.day(in.Day),
		Filled:      in.Filled,
		Empty:       in.Empty,
		Damaged:     in.Damaged,
		FOC:         in.FOC,
		Payment:     in.Payment,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.Validate(); err != nil {
		return DeliveryResult{}, err
	}

	var res DeliveryResult
	err := s.atomically(ctx, "create_delivery", func(tx ledger.Store) error {
		b, err := s.deliveryBooks(ctx, tx, d, ledger.EventRecord)
		if err != nil {
			return err
		}
		if err := b.apply(ledger.DeliveryEffect(d, b.customer.BottlePrice)); err != nil {
			return err
		}
		if err := b.save(ctx, tx, now); err != nil {
			return err
		}
		if err := tx.SaveDelivery(ctx, d); err != nil {
			return fmt.Errorf("save delivery: %w", err)
		}
		res = DeliveryResult{Delivery: d, Usage: *b.usage, Stock: *b.stock, Customer: *b.customer}
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}
	s.log.Info("delivery created",
		zap.String("delivery_id", d.ID),
		zap.String("customer_id", d.CustomerID),
		zap.Int("filled", d.Filled),
		zap.Int("empty", d.Empty))
	return res, nil
}

// UpdateDelivery replaces a delivery's counts and applies the difference
// between the new and old effects.
func (s *Service) UpdateDelivery(ctx context.Context, id string, in DeliveryInput) (DeliveryResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return DeliveryResult{}, err
	}
	var res DeliveryResult
	err := s.atomically(ctx, "update_delivery", func(tx ledger.Store) error {
		old, err := loadDelivery(ctx, tx, id)
		if err != nil {
			return err
		}
		next := old
		next.Filled = in.Filled
		next.Empty = in.Empty
		next.Damaged = in.Damaged
		next.FOC = in.FOC
		next.Payment = in.Payment
		next.Note = in.Note
		next.UpdatedAt = s.timestamp()
		if err := next.Validate(); err != nil {
			return err
		}

		b, err := s.deliveryBooks(ctx, tx, old, ledger.EventCorrect)
		if err != nil {
			return err
		}
		price := b.customer.BottlePrice
		if err := b.apply(ledger.DeliveryEffect(next, price).Sub(ledger.DeliveryEffect(old, price))); err != nil {
			return err
		}
		if err := b.save(ctx, tx, next.UpdatedAt); err != nil {
			return err
		}
		if err := tx.SaveDelivery(ctx, next); err != nil {
			return fmt.Errorf("save delivery: %w", err)
		}
		res = DeliveryResult{Delivery: next, Usage: *b.usage, Stock: *b.stock, Customer: *b.customer}
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}
	s.log.Info("delivery updated", zap.String("delivery_id", id))
	return res, nil
}

// DeleteDelivery reverses a delivery. The customer is told by the
// notification sink once the change is committed.
func (s *Service) DeleteDelivery(ctx context.Context, id string) (DeliveryResult, error) {
	var res DeliveryResult
	err := s.atomically(ctx, "delete_delivery", func(tx ledger.Store) error {
		old, err := loadDelivery(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(ctx, old.ModeratorID); err != nil {
			return err
		}
		b, err := s.deliveryBooks(ctx, tx, old, recordEvent(ctx))
		if err != nil {
			return err
		}
		if err := b.apply(ledger.DeliveryEffect(old, b.customer.BottlePrice).Neg()); err != nil {
			return err
		}
		if err := b.save(ctx, tx, s.timestamp()); err != nil {
			return err
		}
		if err := tx.DeleteDelivery(ctx, id); err != nil {
			return fmt.Errorf("delete delivery: %w", err)
		}
		res = DeliveryResult{Delivery: old, Usage: *b.usage, Stock: *b.stock, Customer: *b.customer}
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}
	s.log.Info("delivery deleted", zap.String("delivery_id", id))

	if phone := res.Customer.Phone; phone != "" {
		text := fmt.Sprintf("Your delivery of %d bottles on %s was cancelled. Balance: %s",
			res.Delivery.Filled, ledger.DayKey(res.Delivery.Day), res.Customer.Balance.StringFixed(2))
		notify.Emit(ctx, s.notifier, s.log, notify.NewMessage(notify.KindDeliveryDeleted, phone, text))
	}
	return res, nil
}

// deliveryBooks loads everything a delivery touches and checks that the
// day accepts ev.
func (s *Service) deliveryBooks(ctx context.Context, tx ledger.Store, d ledger.Delivery, ev ledger.DayEvent) (*books, error) {
	customer, err := loadCustomer(ctx, tx, d.CustomerID)
	if err != nil {
		return nil, err
	}
	usage, err := openDay(ctx, tx, d.ModeratorID, d.Day, ev)
	if err != nil {
		return nil, err
	}
	stock, err := loadStock(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &books{usage: &usage, stock: &stock, customer: &customer}, nil
}

func loadDelivery(ctx context.Context, tx ledger.Store, id string) (ledger.Delivery, error) {
	d, err := tx.GetDelivery(ctx, id)
	if err != nil {
		return ledger.Delivery{}, fmt.Errorf("load delivery: %w", err)
	}
	if d == nil {
		return ledger.Delivery{}, ledger.NotFound("delivery", id)
	}
	return *d, nil
}
