package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/bottle-ledger/ledger"
)

// tsLayout is fixed-width so stored timestamps sort as strings.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		// rows written by hand may use plain RFC3339
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(ledger.DayLayout, s)
}

// =============================================================================
// ROW TYPES - db-tagged mirrors of the ledger records
// =============================================================================

type stockRow struct {
	ID        string `db:"id"`
	Total     int    `db:"total_bottles"`
	Available int    `db:"available_bottles"`
	Used      int    `db:"used_bottles"`
	Damaged   int    `db:"damaged_bottles"`
	Deposit   int    `db:"deposit_bottles"`
	Version   int64  `db:"version"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r stockRow) toLedger() (*ledger.TotalBottles, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("total_bottles.created_at: %w", err)
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("total_bottles.updated_at: %w", err)
	}
	return &ledger.TotalBottles{
		ID:        r.ID,
		Total:     r.Total,
		Available: r.Available,
		Used:      r.Used,
		Damaged:   r.Damaged,
		Deposit:   r.Deposit,
		Version:   r.Version,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

type usageRow struct {
	ID                string          `db:"id"`
	ModeratorID       string          `db:"moderator_id"`
	Day               string          `db:"day"`
	Filled            int             `db:"filled_bottles"`
	Sales             int             `db:"sales"`
	Empty             int             `db:"empty_bottles"`
	Remaining         int             `db:"remaining_bottles"`
	Damaged           int             `db:"damaged_bottles"`
	Refilled          int             `db:"refilled_bottles"`
	Caps              int             `db:"caps"`
	EmptyReturned     int             `db:"empty_returned"`
	RemainingReturned int             `db:"remaining_returned"`
	Revenue           decimal.Decimal `db:"revenue"`
	Expense           decimal.Decimal `db:"expense"`
	Done              bool            `db:"done"`
	CreatedAt         string          `db:"created_at"`
	UpdatedAt         string          `db:"updated_at"`
}

func newUsageRow(u ledger.BottleUsage) usageRow {
	return usageRow{
		ID:                u.ID,
		ModeratorID:       u.ModeratorID,
		Day:               ledger.DayKey(u.Day),
		Filled:            u.Filled,
		Sales:             u.Sales,
		Empty:             u.Empty,
		Remaining:         u.Remaining,
		Damaged:           u.Damaged,
		Refilled:          u.Refilled,
		Caps:              u.Caps,
		EmptyReturned:     u.EmptyReturned,
		RemainingReturned: u.RemainingReturned,
		Revenue:           u.Revenue,
		Expense:           u.Expense,
		Done:              u.Done,
		CreatedAt:         formatTime(u.CreatedAt),
		UpdatedAt:         formatTime(u.UpdatedAt),
	}
}

func (r usageRow) toLedger() (ledger.BottleUsage, error) {
	u := ledger.BottleUsage{
		ID:                r.ID,
		ModeratorID:       r.ModeratorID,
		Filled:            r.Filled,
		Sales:             r.Sales,
		Empty:             r.Empty,
		Remaining:         r.Remaining,
		Damaged:           r.Damaged,
		Refilled:          r.Refilled,
		Caps:              r.Caps,
		EmptyReturned:     r.EmptyReturned,
		RemainingReturned: r.RemainingReturned,
		Revenue:           r.Revenue,
		Expense:           r.Expense,
		Done:              r.Done,
	}
	var err error
	if u.Day, err = parseDay(r.Day); err != nil {
		return u, fmt.Errorf("bottle_usage.day: %w", err)
	}
	if u.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return u, fmt.Errorf("bottle_usage.created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return u, fmt.Errorf("bottle_usage.updated_at: %w", err)
	}
	return u, nil
}

type customerRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Phone       string          `db:"phone"`
	Address     string          `db:"address"`
	Bottles     int             `db:"bottles"`
	Balance     decimal.Decimal `db:"balance"`
	Deposit     int             `db:"deposit"`
	BottlePrice decimal.Decimal `db:"bottle_price"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func newCustomerRow(c ledger.Customer) customerRow {
	return customerRow{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		Address:     c.Address,
		Bottles:     c.Bottles,
		Balance:     c.Balance,
		Deposit:     c.Deposit,
		BottlePrice: c.BottlePrice,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

func (r customerRow) toLedger() (ledger.Customer, error) {
	c := ledger.Customer{
		ID:          r.ID,
		Name:        r.Name,
		Phone:       r.Phone,
		Address:     r.Address,
		Bottles:     r.Bottles,
		Balance:     r.Balance,
		Deposit:     r.Deposit,
		BottlePrice: r.BottlePrice,
	}
	var err error
	if c.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return c, fmt.Errorf("customers.created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return c, fmt.Errorf("customers.updated_at: %w", err)
	}
	return c, nil
}

type deliveryRow struct {
	ID          string          `db:"id"`
	CustomerID  string          `db:"customer_id"`
	ModeratorID string          `db:"moderator_id"`
	Day         string          `db:"day"`
	Filled      int             `db:"filled_bottles"`
	Empty       int             `db:"empty_bottles"`
	Damaged     int             `db:"damaged_bottles"`
	FOC         int             `db:"foc"`
	Payment     decimal.Decimal `db:"payment"`
	Note        string          `db:"note"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func newDeliveryRow(d ledger.Delivery) deliveryRow {
	return deliveryRow{
		ID:          d.ID,
		CustomerID:  d.CustomerID,
		ModeratorID: d.ModeratorID,
		Day:         ledger.DayKey(d.Day),
		Filled:      d.Filled,
		Empty:       d.Empty,
		Damaged:     d.Damaged,
		FOC:         d.FOC,
		Payment:     d.Payment,
		Note:        d.Note,
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

func (r deliveryRow) toLedger() (ledger.Delivery, error) {
	d := ledger.Delivery{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		ModeratorID: r.ModeratorID,
		Filled:      r.Filled,
		Empty:       r.Empty,
		Damaged:     r.Damaged,
		FOC:         r.FOC,
		Payment:     r.Payment,
		Note:        r.Note,
	}
	var err error
	if d.Day, err = parseDay(r.Day); err != nil {
		return d, fmt.Errorf("deliveries.day: %w", err)
	}
	if d.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return d, fmt.Errorf("deliveries.created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return d, fmt.Errorf("deliveries.updated_at: %w", err)
	}
	return d, nil
}

type miscRow struct {
	ID          string          `db:"id"`
	ModeratorID string          `db:"moderator_id"`
	Day         string          `db:"day"`
	Description string          `db:"description"`
	Filled      int             `db:"filled_bottles"`
	Empty       int             `db:"empty_bottles"`
	Damaged     int             `db:"damaged_bottles"`
	FOC         int             `db:"foc"`
	Payment     decimal.Decimal `db:"payment"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func newMiscRow(m ledger.Misc) miscRow {
	return miscRow{
		ID:          m.ID,
		ModeratorID: m.ModeratorID,
		Day:         ledger.DayKey(m.Day),
		Description: m.Description,
		Filled:      m.Filled,
		Empty:       m.Empty,
		Damaged:     m.Damaged,
		FOC:         m.FOC,
		Payment:     m.Payment,
		CreatedAt:   formatTime(m.CreatedAt),
		UpdatedAt:   formatTime(m.UpdatedAt),
	}
}

func (r miscRow) toLedger() (ledger.Misc, error) {
	m := ledger.Misc{
		ID:          r.ID,
		ModeratorID: r.ModeratorID,
		Description: r.Description,
		Filled:      r.Filled,
		Empty:       r.Empty,
		Damaged:     r.Damaged,
		FOC:         r.FOC,
		Payment:     r.Payment,
	}
	var err error
	if m.Day, err = parseDay(r.Day); err != nil {
		return m, fmt.Errorf("misc_deliveries.day: %w", err)
	}
	if m.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return m, fmt.Errorf("misc_deliveries.created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return m, fmt.Errorf("misc_deliveries.updated_at: %w", err)
	}
	return m, nil
}

type expenseRow struct {
	ID          string          `db:"id"`
	ModeratorID string          `db:"moderator_id"`
	Day         string          `db:"day"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Refilled    int             `db:"refilled_bottles"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func newExpenseRow(x ledger.OtherExpense) expenseRow {
	return expenseRow{
		ID:          x.ID,
		ModeratorID: x.ModeratorID,
		Day:         ledger.DayKey(x.Day),
		Description: x.Description,
		Amount:      x.Amount,
		Refilled:    x.Refilled,
		CreatedAt:   formatTime(x.CreatedAt),
		UpdatedAt:   formatTime(x.UpdatedAt),
	}
}

func (r expenseRow) toLedger() (ledger.OtherExpense, error) {
	x := ledger.OtherExpense{
		ID:          r.ID,
		ModeratorID: r.ModeratorID,
		Description: r.Description,
		Amount:      r.Amount,
		Refilled:    r.Refilled,
	}
	var err error
	if x.Day, err = parseDay(r.Day); err != nil {
		return x, fmt.Errorf("other_expenses.day: %w", err)
	}
	if x.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return x, fmt.Errorf("other_expenses.created_at: %w", err)
	}
	if x.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return x, fmt.Errorf("other_expenses.updated_at: %w", err)
	}
	return x, nil
}

type moderatorRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Phone        string `db:"phone"`
	PasswordHash string `db:"password_hash"`
	AreasJSON    string `db:"areas_json"`
	Active       bool   `db:"active"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func newModeratorRow(m ledger.Moderator) (moderatorRow, error) {
	areas := m.Areas
	if areas == nil {
		areas = []string{}
	}
	areasJSON, err := json.Marshal(areas)
	if err != nil {
		return moderatorRow{}, fmt.Errorf("marshal areas: %w", err)
	}
	return moderatorRow{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		AreasJSON:    string(areasJSON),
		Active:       m.Active,
		CreatedAt:    formatTime(m.CreatedAt),
		UpdatedAt:    formatTime(m.UpdatedAt),
	}, nil
}

func (r moderatorRow) toLedger() (ledger.Moderator, error) {
	m := ledger.Moderator{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		Active:       r.Active,
	}
	if err := json.Unmarshal([]byte(r.AreasJSON), &m.Areas); err != nil {
		return m, fmt.Errorf("moderators.areas_json: %w", err)
	}
	var err error
	if m.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return m, fmt.Errorf("moderators.created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return m, fmt.Errorf("moderators.updated_at: %w", err)
	}
	return m, nil
}

type adminRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

func (r adminRow) toLedger() (ledger.Admin, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return ledger.Admin{}, fmt.Errorf("admins.created_at: %w", err)
	}
	return ledger.Admin{ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, CreatedAt: created}, nil
}
