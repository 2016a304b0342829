package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warp/bottle-ledger/ledger"
)

// repo runs every query against q, which is either the pool or an open
// transaction. Queries are written with ? placeholders and rebound for
// the driver.
type repo struct {
	q       sqlx.ExtContext
	dialect Dialect
	inTx    bool
}

func (r *repo) lock() string {
	if r.inTx {
		return r.dialect.lockClause()
	}
	return ""
}

// get scans one row into dest and reports whether it existed.
func (r *repo) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

func (r *repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	return res, mapError(err)
}

func (r *repo) named(ctx context.Context, query string, arg any) error {
	_, err := sqlx.NamedExecContext(ctx, r.q, query, arg)
	return mapError(err)
}

// where builds the WHERE clause for a ListFilter. Only columns the table
// has are used; customerCol is empty for tables without customers.
func where(f ledger.ListFilter, customerCol string) (string, []any) {
	var conds []string
	var args []any
	if f.ModeratorID != "" {
		conds = append(conds, "moderator_id = ?")
		args = append(args, f.ModeratorID)
	}
	if f.CustomerID != "" && customerCol != "" {
		conds = append(conds, customerCol+" = ?")
		args = append(args, f.CustomerID)
	}
	if !f.Day.IsZero() {
		conds = append(conds, "day = ?")
		args = append(args, ledger.DayKey(f.Day))
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const newestFirst = " ORDER BY created_at DESC, id DESC"

// =============================================================================
// STOCK
// =============================================================================

const stockColumns = `id, total_bottles, available_bottles, used_bottles, damaged_bottles,
	deposit_bottles, version, created_at, updated_at`

func (r *repo) GetStock(ctx context.Context) (*ledger.TotalBottles, error) {
	var row stockRow
	found, err := r.get(ctx, &row, `SELECT `+stockColumns+` FROM total_bottles WHERE id = ?`+r.lock(), ledger.StockID)
	if err != nil || !found {
		return nil, err
	}
	return row.toLedger()
}

func (r *repo) CreateStock(ctx context.Context, tb ledger.TotalBottles) error {
	_, err := r.exec(ctx, `INSERT INTO total_bottles (`+stockColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ledger.StockID, tb.Total, tb.Available, tb.Used, tb.Damaged, tb.Deposit,
		formatTime(tb.CreatedAt), formatTime(tb.UpdatedAt))
	var conflict *ledger.ConflictError
	if errors.As(err, &conflict) {
		return &ledger.ConflictError{Entity: "total bottles", Reason: "already initialized"}
	}
	return err
}

func (r *repo) UpdateStock(ctx context.Context, tb ledger.TotalBottles) error {
	res, err := r.exec(ctx, `UPDATE total_bottles
		SET total_bottles = ?, available_bottles = ?, used_bottles = ?, damaged_bottles = ?,
			deposit_bottles = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		tb.Total, tb.Available, tb.Used, tb.Damaged, tb.Deposit, formatTime(tb.UpdatedAt),
		ledger.StockID, tb.Version)
	if err != nil {
		return fmt.Errorf("update total_bottles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update total_bottles: %w", err)
	}
	if n == 0 {
		return ledger.ErrConcurrentModification
	}
	return nil
}

// =============================================================================
// BOTTLE USAGE
// =============================================================================

const usageColumns = `id, moderator_id, day, filled_bottles, sales, empty_bottles, remaining_bottles,
	damaged_bottles, refilled_bottles, caps, empty_returned, remaining_returned,
	revenue, expense, done, created_at, updated_at`

func (r *repo) GetUsage(ctx context.Context, id string) (*ledger.BottleUsage, error) {
	var row usageRow
	found, err := r.get(ctx, &row, `SELECT `+usageColumns+` FROM bottle_usage WHERE id = ?`+r.lock(), id)
	if err != nil || !found {
		return nil, err
	}
	u, err := row.toLedger()
	return &u, err
}

func (r *repo) GetUsageForDay(ctx context.Context, moderatorID string, day time.Time) (*ledger.BottleUsage, error) {
	var row usageRow
	found, err := r.get(ctx, &row, `SELECT `+usageColumns+` FROM bottle_usage
		WHERE moderator_id = ? AND day = ?`+r.lock(), moderatorID, ledger.DayKey(day))
	if err != nil || !found {
		return nil, err
	}
	u, err := row.toLedger()
	return &u, err
}

func (r *repo) SaveUsage(ctx context.Context, u ledger.BottleUsage) error {
	return r.named(ctx, `INSERT INTO bottle_usage (`+usageColumns+`) VALUES (
		:id, :moderator_id, :day, :filled_bottles, :sales, :empty_bottles, :remaining_bottles,
		:damaged_bottles, :refilled_bottles, :caps, :empty_returned, :remaining_returned,
		:revenue, :expense, :done, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		filled_bottles = excluded.filled_bottles,
		sales = excluded.sales,
		empty_bottles = excluded.empty_bottles,
		remaining_bottles = excluded.remaining_bottles,
		damaged_bottles = excluded.damaged_bottles,
		refilled_bottles = excluded.refilled_bottles,
		caps = excluded.caps,
		empty_returned = excluded.empty_returned,
		remaining_returned = excluded.remaining_returned,
		revenue = excluded.revenue,
		expense = excluded.expense,
		done = excluded.done,
		updated_at = excluded.updated_at`, newUsageRow(u))
}

func (r *repo) DeleteUsage(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM bottle_usage WHERE id = ?`, id)
	return err
}

func (r *repo) ListUsage(ctx context.Context, f ledger.ListFilter) ([]ledger.BottleUsage, error) {
	cond, args := where(f, "")
	var rows []usageRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`SELECT `+usageColumns+` FROM bottle_usage`+cond+newestFirst), args...); err != nil {
		return nil, fmt.Errorf("list bottle_usage: %w", err)
	}
	out := make([]ledger.BottleUsage, 0, len(rows))
	for _, row := range rows {
		u, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, name, phone, address, bottles, balance, deposit, bottle_price, created_at, updated_at`

func (r *repo) GetCustomer(ctx context.Context, id string) (*ledger.Customer, error) {
	var row customerRow
	found, err := r.get(ctx, &row, `SELECT `+customerColumns+` FROM customers WHERE id = ?`+r.lock(), id)
	if err != nil || !found {
		return nil, err
	}
	c, err := row.toLedger()
	return &c, err
}

func (r *repo) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	return r.named(ctx, `INSERT INTO customers (`+customerColumns+`) VALUES (
		:id, :name, :phone, :address, :bottles, :balance, :deposit, :bottle_price, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		phone = excluded.phone,
		address = excluded.address,
		bottles = excluded.bottles,
		balance = excluded.balance,
		deposit = excluded.deposit,
		bottle_price = excluded.bottle_price,
		updated_at = excluded.updated_at`, newCustomerRow(c))
}

func (r *repo) DeleteCustomer(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM customers WHERE id = ?`, id)
	return err
}

func (r *repo) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	var rows []customerRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `SELECT `+customerColumns+` FROM customers`+newestFirst); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]ledger.Customer, 0, len(rows))
	for _, row := range rows {
		c, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// =============================================================================
// DELIVERIES
// =============================================================================

const deliveryColumns = `id, customer_id, moderator_id, day, filled_bottles, empty_bottles,
	damaged_bottles, foc, payment, note, created_at, updated_at`

func (r *repo) GetDelivery(ctx context.Context, id string) (*ledger.Delivery, error) {
	var row deliveryRow
	found, err := r.get(ctx, &row, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	d, err := row.toLedger()
	return &d, err
}

func (r *repo) SaveDelivery(ctx context.Context, d ledger.Delivery) error {
	return r.named(ctx, `INSERT INTO deliveries (`+deliveryColumns+`) VALUES (
		:id, :customer_id, :moderator_id, :day, :filled_bottles, :empty_bottles,
		:damaged_bottles, :foc, :payment, :note, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		filled_bottles = excluded.filled_bottles,
		empty_bottles = excluded.empty_bottles,
		damaged_bottles = excluded.damaged_bottles,
		foc = excluded.foc,
		payment = excluded.payment,
		note = excluded.note,
		updated_at = excluded.updated_at`, newDeliveryRow(d))
}

func (r *repo) DeleteDelivery(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM deliveries WHERE id = ?`, id)
	return err
}

func (r *repo) ListDeliveries(ctx context.Context, f ledger.ListFilter) ([]ledger.Delivery, error) {
	cond, args := where(f, "customer_id")
	var rows []deliveryRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`SELECT `+deliveryColumns+` FROM deliveries`+cond+newestFirst), args...); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	out := make([]ledger.Delivery, 0, len(rows))
	for _, row := range rows {
		d, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// =============================================================================
// MISCELLANEOUS DELIVERIES
// =============================================================================

const miscColumns = `id, moderator_id, day, description, filled_bottles, empty_bottles,
	damaged_bottles, foc, payment, created_at, updated_at`

func (r *repo) GetMisc(ctx context.Context, id string) (*ledger.Misc, error) {
	var row miscRow
	found, err := r.get(ctx, &row, `SELECT `+miscColumns+` FROM misc_deliveries WHERE id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	m, err := row.toLedger()
	return &m, err
}

func (r *repo) SaveMisc(ctx context.Context, m ledger.Misc) error {
	return r.named(ctx, `INSERT INTO misc_deliveries (`+miscColumns+`) VALUES (
		:id, :moderator_id, :day, :description, :filled_bottles, :empty_bottles,
		:damaged_bottles, :foc, :payment, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		description = excluded.description,
		filled_bottles = excluded.filled_bottles,
		empty_bottles = excluded.empty_bottles,
		damaged_bottles = excluded.damaged_bottles,
		foc = excluded.foc,
		payment = excluded.payment,
		updated_at = excluded.updated_at`, newMiscRow(m))
}

func (r *repo) DeleteMisc(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM misc_deliveries WHERE id = ?`, id)
	return err
}

func (r *repo) ListMisc(ctx context.Context, f ledger.ListFilter) ([]ledger.Misc, error) {
	cond, args := where(f, "")
	var rows []miscRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`SELECT `+miscColumns+` FROM misc_deliveries`+cond+newestFirst), args...); err != nil {
		return nil, fmt.Errorf("list misc_deliveries: %w", err)
	}
	out := make([]ledger.Misc, 0, len(rows))
	for _, row := range rows {
		m, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// =============================================================================
// OTHER EXPENSES
// =============================================================================

const expenseColumns = `id, moderator_id, day, description, amount, refilled_bottles, created_at, updated_at`

func (r *repo) GetExpense(ctx context.Context, id string) (*ledger.OtherExpense, error) {
	var row expenseRow
	found, err := r.get(ctx, &row, `SELECT `+expenseColumns+` FROM other_expenses WHERE id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	x, err := row.toLedger()
	return &x, err
}

func (r *repo) SaveExpense(ctx context.Context, x ledger.OtherExpense) error {
	return r.named(ctx, `INSERT INTO other_expenses (`+expenseColumns+`) VALUES (
		:id, :moderator_id, :day, :description, :amount, :refilled_bottles, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		description = excluded.description,
		amount = excluded.amount,
		refilled_bottles = excluded.refilled_bottles,
		updated_at = excluded.updated_at`, newExpenseRow(x))
}

func (r *repo) DeleteExpense(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM other_expenses WHERE id = ?`, id)
	return err
}

func (r *repo) ListExpenses(ctx context.Context, f ledger.ListFilter) ([]ledger.OtherExpense, error) {
	cond, args := where(f, "")
	var rows []expenseRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`SELECT `+expenseColumns+` FROM other_expenses`+cond+newestFirst), args...); err != nil {
		return nil, fmt.Errorf("list other_expenses: %w", err)
	}
	out := make([]ledger.OtherExpense, 0, len(rows))
	for _, row := range rows {
		x, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// =============================================================================
// MODERATORS AND ADMINS
// =============================================================================

const moderatorColumns = `id, name, phone, password_hash, areas_json, active, created_at, updated_at`

func (r *repo) GetModerator(ctx context.Context, id string) (*ledger.Moderator, error) {
	var row moderatorRow
	found, err := r.get(ctx, &row, `SELECT `+moderatorColumns+` FROM moderators WHERE id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	m, err := row.toLedger()
	return &m, err
}

func (r *repo) GetModeratorByName(ctx context.Context, name string) (*ledger.Moderator, error) {
	var row moderatorRow
	found, err := r.get(ctx, &row, `SELECT `+moderatorColumns+` FROM moderators WHERE lower(name) = lower(?)`, name)
	if err != nil || !found {
		return nil, err
	}
	m, err := row.toLedger()
	return &m, err
}

func (r *repo) SaveModerator(ctx context.Context, m ledger.Moderator) error {
	row, err := newModeratorRow(m)
	if err != nil {
		return err
	}
	return r.named(ctx, `INSERT INTO moderators (`+moderatorColumns+`) VALUES (
		:id, :name, :phone, :password_hash, :areas_json, :active, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		phone = excluded.phone,
		password_hash = excluded.password_hash,
		areas_json = excluded.areas_json,
		active = excluded.active,
		updated_at = excluded.updated_at`, row)
}

func (r *repo) DeleteModerator(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM moderators WHERE id = ?`, id)
	return err
}

func (r *repo) ListModerators(ctx context.Context) ([]ledger.Moderator, error) {
	var rows []moderatorRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `SELECT `+moderatorColumns+` FROM moderators ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	out := make([]ledger.Moderator, 0, len(rows))
	for _, row := range rows {
		m, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *repo) GetAdminByEmail(ctx context.Context, email string) (*ledger.Admin, error) {
	var row adminRow
	found, err := r.get(ctx, &row, `SELECT id, email, password_hash, created_at FROM admins WHERE lower(email) = lower(?)`, email)
	if err != nil || !found {
		return nil, err
	}
	a, err := row.toLedger()
	return &a, err
}

func (r *repo) SaveAdmin(ctx context.Context, a ledger.Admin) error {
	_, err := r.exec(ctx, `INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, password_hash = excluded.password_hash`,
		a.ID, a.Email, a.PasswordHash, formatTime(a.CreatedAt))
	return err
}
