package bottles

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/notify"
)

// CustomerInput holds a customer's editable fields. Deposit is the number
// of bottles lent against a deposit; changing it moves bottles between the
// warehouse and the deposit count.
type CustomerInput struct {
	Name        string
	Phone       string
	Address     string
	Bottles     int
	Balance     decimal.Decimal
	Deposit     int
	BottlePrice decimal.Decimal
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ledger.InputError{Field: "name", Reason: "is required"}
	}
	if in.BottlePrice.IsNegative() {
		return &ledger.InputError{Field: "bottle_price", Reason: "must be >= 0"}
	}
	return ledger.ValidateCounts(map[string]int{"bottles": in.Bottles, "deposit": in.Deposit})
}

type CustomerResult struct {
	Customer ledger.Customer
	Stock    ledger.TotalBottles
}

func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (CustomerResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return CustomerResult{}, err
	}
	if err := in.validate(); err != nil {
		return CustomerResult{}, err
	}
	now := s.timestamp()
	c := ledger.Customer{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Phone:       in.Phone,
		Address:     in.Address,
		Bottles:     in.Bottles,
		Balance:     in.Balance,
		Deposit:     in.Deposit,
		BottlePrice: in.BottlePrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var res CustomerResult
	err := s.atomically(ctx, "create_customer", func(tx ledger.Store) error {
		stock, err := s.moveDeposit(ctx, tx, c.Deposit)
		if err != nil {
			return err
		}
		if err := tx.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
		res = CustomerResult{Customer: c, Stock: stock}
		return nil
	})
	if err != nil {
		return CustomerResult{}, err
	}
	s.log.Info("customer created", zap.String("customer_id", c.ID), zap.Int("deposit", c.Deposit))
	return res, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, in CustomerInput) (CustomerResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return CustomerResult{}, err
	}
	if err := in.validate(); err != nil {
		return CustomerResult{}, err
	}
	var res CustomerResult
	err := s.atomically(ctx, "update_customer", func(tx ledger.Store) error {
		old, err := loadCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		stock, err := s.moveDeposit(ctx, tx, in.Deposit-old.Deposit)
		if err != nil {
			return err
		}
		next := old
		next.Name = strings.TrimSpace(in.Name)
		next.Phone = in.Phone
		next.Address = in.Address
		next.Bottles = in.Bottles
		next.Balance = in.Balance
		next.Deposit = in.Deposit
		next.BottlePrice = in.BottlePrice
		next.UpdatedAt = s.timestamp()
		if err := tx.SaveCustomer(ctx, next); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
		res = CustomerResult{Customer: next, Stock: stock}
		return nil
	})
	if err != nil {
		return CustomerResult{}, err
	}
	s.log.Info("customer updated", zap.String("customer_id", id))
	return res, nil
}

// DeleteCustomer removes a customer and returns their deposit bottles to
// the warehouse. Customers with deliveries on record are kept.
func (s *Service) DeleteCustomer(ctx context.Context, id string) (CustomerResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return CustomerResult{}, err
	}
	var res CustomerResult
	err := s.atomically(ctx, "delete_customer", func(tx ledger.Store) error {
		c, err := loadCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		deliveries, err := tx.ListDeliveries(ctx, ledger.ListFilter{CustomerID: id})
		if err != nil {
			return fmt.Errorf("list deliveries: %w", err)
		}
		if len(deliveries) > 0 {
			return &ledger.ConflictError{Entity: "customer", Reason: fmt.Sprintf("has %d deliveries on record", len(deliveries))}
		}
		stock, err := s.moveDeposit(ctx, tx, -c.Deposit)
		if err != nil {
			return err
		}
		if err := tx.DeleteCustomer(ctx, id); err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		res = CustomerResult{Customer: c, Stock: stock}
		return nil
	})
	if err != nil {
		return CustomerResult{}, err
	}
	s.log.Info("customer deleted", zap.String("customer_id", id))
	if res.Customer.Deposit > 0 && res.Customer.Phone != "" {
		text := fmt.Sprintf("Your %d deposit bottles have been collected.", res.Customer.Deposit)
		notify.Emit(ctx, s.notifier, s.log, notify.NewMessage(notify.KindDepositChanged, res.Customer.Phone, text))
	}
	return res, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (ledger.Customer, error) {
	return loadCustomer(ctx, s.store, id)
}

// moveDeposit lends n bottles from the warehouse (n > 0) or takes them
// back (n < 0). The stock row only has to exist when something moves.
func (s *Service) moveDeposit(ctx context.Context, tx ledger.Store, n int) (ledger.TotalBottles, error) {
	if n == 0 {
		tb, err := tx.GetStock(ctx)
		if err != nil || tb == nil {
			return ledger.TotalBottles{}, err
		}
		return *tb, nil
	}
	stock, err := loadStock(ctx, tx)
	if err != nil {
		return ledger.TotalBottles{}, err
	}
	b := books{stock: &stock}
	if err := b.apply(ledger.Effect{Stock: ledger.DepositOut(n)}); err != nil {
		return ledger.TotalBottles{}, err
	}
	if err := b.save(ctx, tx, s.timestamp()); err != nil {
		return ledger.TotalBottles{}, err
	}
	return stock, nil
}
