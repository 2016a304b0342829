/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are shopspring decimals. They are written as JSON strings
  ("12.50") and read from either strings or numbers.

DAYS:
  Request days are "YYYY-MM-DD" in the ledger timezone. An empty day means
  today.

SEE ALSO:
  - handlers.go, admin.go: Use these types
  - bottles/: Service inputs the requests are converted to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
)

const dayFormat = ledger.DayLayout

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest authenticates an admin (by email) or a moderator (by name).
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      ledger.Role `json:"role"`
}

// =============================================================================
// STOCK
// =============================================================================

type StockDTO struct {
	TotalBottles     int    `json:"total_bottles"`
	AvailableBottles int    `json:"available_bottles"`
	UsedBottles      int    `json:"used_bottles"`
	DamagedBottles   int    `json:"damaged_bottles"`
	DepositBottles   int    `json:"deposit_bottles"`
	Version          int64  `json:"version"`
	UpdatedAt        string `json:"updated_at"`
}

func toStockDTO(tb ledger.TotalBottles) StockDTO {
	return StockDTO{
		TotalBottles:     tb.Total,
		AvailableBottles: tb.Available,
		UsedBottles:      tb.Used,
		DamagedBottles:   tb.Damaged,
		DepositBottles:   tb.Deposit,
		Version:          tb.Version,
		UpdatedAt:        formatTS(tb.UpdatedAt),
	}
}

type InitStockRequest struct {
	TotalBottles int `json:"total_bottles"`
}

// AdjustStockRequest sets absolute counts; omitted fields are unchanged.
type AdjustStockRequest struct {
	TotalBottles   *int `json:"total_bottles"`
	DamagedBottles *int `json:"damaged_bottles"`
}

// =============================================================================
// BOTTLE USAGE
// =============================================================================

type UsageDTO struct {
	ID                string          `json:"id"`
	ModeratorID       string          `json:"moderator_id"`
	ModeratorName     string          `json:"moderator_name,omitempty"`
	Day               string          `json:"day"`
	FilledBottles     int             `json:"filled_bottles"`
	Sales             int             `json:"sales"`
	EmptyBottles      int             `json:"empty_bottles"`
	RemainingBottles  int             `json:"remaining_bottles"`
	DamagedBottles    int             `json:"damaged_bottles"`
	RefilledBottles   int             `json:"refilled_bottles"`
	Caps              int             `json:"caps"`
	EmptyReturned     int             `json:"empty_returned"`
	RemainingReturned int             `json:"remaining_returned"`
	Revenue           decimal.Decimal `json:"revenue"`
	Expense           decimal.Decimal `json:"expense"`
	Done              bool            `json:"done"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

func toUsageDTO(u ledger.BottleUsage, moderatorName string) UsageDTO {
	return UsageDTO{
		ID:                u.ID,
		ModeratorID:       u.ModeratorID,
		ModeratorName:     moderatorName,
		Day:               u.Day.Format(dayFormat),
		FilledBottles:     u.Filled,
		Sales:             u.Sales,
		EmptyBottles:      u.Empty,
		RemainingBottles:  u.Remaining,
		DamagedBottles:    u.Damaged,
		RefilledBottles:   u.Refilled,
		Caps:              u.Caps,
		EmptyReturned:     u.EmptyReturned,
		RemainingReturned: u.RemainingReturned,
		Revenue:           u.Revenue,
		Expense:           u.Expense,
		Done:              u.Done,
		CreatedAt:         formatTS(u.CreatedAt),
		UpdatedAt:         formatTS(u.UpdatedAt),
	}
}

// IssueRequest issues bottles for the day, or refills when the day is open.
type IssueRequest struct {
	ModeratorID   string `json:"moderator_id,omitempty"`
	Day           string `json:"day,omitempty"`
	FilledBottles int    `json:"filled_bottles"`
	Caps          int    `json:"caps"`
}

type IssueResponse struct {
	Usage    UsageDTO `json:"usage"`
	Stock    StockDTO `json:"stock"`
	Created  bool     `json:"created"`
	Refilled int      `json:"refilled"`
}

type DoneRequest struct {
	ModeratorID string `json:"moderator_id,omitempty"`
	Day         string `json:"day,omitempty"`
	Done        bool   `json:"done"`
}

type ReturnRequest struct {
	ModeratorID      string `json:"moderator_id,omitempty"`
	Day              string `json:"day,omitempty"`
	EmptyBottles     int    `json:"empty_bottles"`
	RemainingBottles int    `json:"remaining_bottles"`
	Caps             int    `json:"caps"`
}

type MiscUsageRequest struct {
	ModeratorID    string `json:"moderator_id,omitempty"`
	Day            string `json:"day,omitempty"`
	EmptyBottles   int    `json:"empty_bottles"`
	DamagedBottles int    `json:"damaged_bottles"`
}

// UsageResponse is returned by operations that move a usage row and the pool.
type UsageResponse struct {
	Usage UsageDTO `json:"usage"`
	Stock StockDTO `json:"stock"`
}

// EditUsageRequest overwrites every counter of a usage row.
type EditUsageRequest struct {
	FilledBottles     int `json:"filled_bottles"`
	Sales             int `json:"sales"`
	EmptyBottles      int `json:"empty_bottles"`
	RemainingBottles  int `json:"remaining_bottles"`
	DamagedBottles    int `json:"damaged_bottles"`
	RefilledBottles   int `json:"refilled_bottles"`
	Caps              int `json:"caps"`
	EmptyReturned     int `json:"empty_returned"`
	RemainingReturned int `json:"remaining_returned"`
}

func (r EditUsageRequest) toCorrection() bottles.UsageCorrection {
	return bottles.UsageCorrection{
		Filled:            r.FilledBottles,
		Sales:             r.Sales,
		Empty:             r.EmptyBottles,
		Remaining:         r.RemainingBottles,
		Damaged:           r.DamagedBottles,
		Refilled:          r.RefilledBottles,
		Caps:              r.Caps,
		EmptyReturned:     r.EmptyReturned,
		RemainingReturned: r.RemainingReturned,
	}
}

type DeleteUsageResponse struct {
	Stock           StockDTO `json:"stock"`
	RemovedMisc     int      `json:"removed_misc"`
	RemovedExpenses int      `json:"removed_expenses"`
}

// =============================================================================
// CUSTOMERS
// =============================================================================

type CustomerDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Bottles     int             `json:"bottles"`
	Balance     decimal.Decimal `json:"balance"`
	Deposit     int             `json:"deposit"`
	BottlePrice decimal.Decimal `json:"bottle_price"`
	CreatedAt   string          `json:"created_at"`
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		Address:     c.Address,
		Bottles:     c.Bottles,
		Balance:     c.Balance,
		Deposit:     c.Deposit,
		BottlePrice: c.BottlePrice,
		CreatedAt:   formatTS(c.CreatedAt),
	}
}

type CustomerRequest struct {
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Bottles     int             `json:"bottles"`
	Balance     decimal.Decimal `json:"balance"`
	Deposit     int             `json:"deposit"`
	BottlePrice decimal.Decimal `json:"bottle_price"`
}

func (r CustomerRequest) toInput() bottles.CustomerInput {
	return bottles.CustomerInput{
		Name:        r.Name,
		Phone:       r.Phone,
		Address:     r.Address,
		Bottles:     r.Bottles,
		Balance:     r.Balance,
		Deposit:     r.Deposit,
		BottlePrice: r.BottlePrice,
	}
}

type CustomerResponse struct {
	Customer CustomerDTO `json:"customer"`
	Stock    StockDTO    `json:"stock"`
}

// =============================================================================
// DELIVERIES, MISC, EXPENSES
// =============================================================================

type DeliveryDTO struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	CustomerName   string          `json:"customer_name,omitempty"`
	ModeratorID    string          `json:"moderator_id"`
	ModeratorName  string          `json:"moderator_name,omitempty"`
	Day            string          `json:"day"`
	FilledBottles  int             `json:"filled_bottles"`
	EmptyBottles   int             `json:"empty_bottles"`
	DamagedBottles int             `json:"damaged_bottles"`
	FOC            int             `json:"foc"`
	Payment        decimal.Decimal `json:"payment"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

func toDeliveryDTO(d ledger.Delivery) DeliveryDTO {
	return DeliveryDTO{
		ID:             d.ID,
		CustomerID:     d.CustomerID,
		ModeratorID:    d.ModeratorID,
		Day:            d.Day.Format(dayFormat),
		FilledBottles:  d.Filled,
		EmptyBottles:   d.Empty,
		DamagedBottles: d.Damaged,
		FOC:            d.FOC,
		Payment:        d.Payment,
		Note:           d.Note,
		CreatedAt:      formatTS(d.CreatedAt),
	}
}

type DeliveryRequest struct {
	CustomerID     string          `json:"customer_id"`
	ModeratorID    string          `json:"moderator_id,omitempty"`
	Day            string          `json:"day,omitempty"`
	FilledBottles  int             `json:"filled_bottles"`
	EmptyBottles   int             `json:"empty_bottles"`
	DamagedBottles int             `json:"damaged_bottles"`
	FOC            int             `json:"foc"`
	Payment        decimal.Decimal `json:"payment"`
	Note           string          `json:"note,omitempty"`
}

type DeliveryResponse struct {
	Delivery DeliveryDTO `json:"delivery"`
	Usage    UsageDTO    `json:"usage"`
	Stock    StockDTO    `json:"stock"`
	Customer CustomerDTO `json:"customer"`
}

func toDeliveryResponse(res bottles.DeliveryResult) DeliveryResponse {
	return DeliveryResponse{
		Delivery: toDeliveryDTO(res.Delivery),
		Usage:    toUsageDTO(res.Usage, ""),
		Stock:    toStockDTO(res.Stock),
		Customer: toCustomerDTO(res.Customer),
	}
}

type MiscDTO struct {
	ID             string          `json:"id"`
	ModeratorID    string          `json:"moderator_id"`
	ModeratorName  string          `json:"moderator_name,omitempty"`
	Day            string          `json:"day"`
	Description    string          `json:"description"`
	FilledBottles  int             `json:"filled_bottles"`
	EmptyBottles   int             `json:"empty_bottles"`
	DamagedBottles int             `json:"damaged_bottles"`
	FOC            int             `json:"foc"`
	Payment        decimal.Decimal `json:"payment"`
	CreatedAt      string          `json:"created_at"`
}

func toMiscDTO(m ledger.Misc) MiscDTO {
	return MiscDTO{
		ID:             m.ID,
		ModeratorID:    m.ModeratorID,
		Day:            m.Day.Format(dayFormat),
		Description:    m.Description,
		FilledBottles:  m.Filled,
		EmptyBottles:   m.Empty,
		DamagedBottles: m.Damaged,
		FOC:            m.FOC,
		Payment:        m.Payment,
		CreatedAt:      formatTS(m.CreatedAt),
	}
}

type MiscRequest struct {
	ModeratorID    string          `json:"moderator_id,omitempty"`
	Day            string          `json:"day,omitempty"`
	Description    string          `json:"description"`
	FilledBottles  int             `json:"filled_bottles"`
	EmptyBottles   int             `json:"empty_bottles"`
	DamagedBottles int             `json:"damaged_bottles"`
	FOC            int             `json:"foc"`
	Payment        decimal.Decimal `json:"payment"`
}

type MiscResponse struct {
	Misc  MiscDTO  `json:"misc"`
	Usage UsageDTO `json:"usage"`
	Stock StockDTO `json:"stock"`
}

func toMiscResponse(res bottles.MiscResult) MiscResponse {
	return MiscResponse{Misc: toMiscDTO(res.Misc), Usage: toUsageDTO(res.Usage, ""), Stock: toStockDTO(res.Stock)}
}

type ExpenseDTO struct {
	ID              string          `json:"id"`
	ModeratorID     string          `json:"moderator_id"`
	ModeratorName   string          `json:"moderator_name,omitempty"`
	Day             string          `json:"day"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	RefilledBottles int             `json:"refilled_bottles"`
	CreatedAt       string          `json:"created_at"`
}

func toExpenseDTO(x ledger.OtherExpense) ExpenseDTO {
	return ExpenseDTO{
		ID:              x.ID,
		ModeratorID:     x.ModeratorID,
		Day:             x.Day.Format(dayFormat),
		Description:     x.Description,
		Amount:          x.Amount,
		RefilledBottles: x.Refilled,
		CreatedAt:       formatTS(x.CreatedAt),
	}
}

type ExpenseRequest struct {
	ModeratorID     string          `json:"moderator_id,omitempty"`
	Day             string          `json:"day,omitempty"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	RefilledBottles int             `json:"refilled_bottles"`
}

type ExpenseResponse struct {
	Expense ExpenseDTO `json:"expense"`
	Usage   UsageDTO   `json:"usage"`
	// Requested is the refill asked for; Expense.RefilledBottles is what
	// the empties and caps on hand allowed.
	Requested int `json:"requested_refill"`
}

func toExpenseResponse(res bottles.ExpenseResult) ExpenseResponse {
	return ExpenseResponse{Expense: toExpenseDTO(res.Expense), Usage: toUsageDTO(res.Usage, ""), Requested: res.Requested}
}

// =============================================================================
// MODERATORS
// =============================================================================

type ModeratorDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Areas     []string `json:"areas"`
	Active    bool     `json:"active"`
	CreatedAt string   `json:"created_at"`
}

func toModeratorDTO(m ledger.Moderator) ModeratorDTO {
	areas := m.Areas
	if areas == nil {
		areas = []string{}
	}
	return ModeratorDTO{
		ID:        m.ID,
		Name:      m.Name,
		Phone:     m.Phone,
		Areas:     areas,
		Active:    m.Active,
		CreatedAt: formatTS(m.CreatedAt),
	}
}

type ModeratorRequest struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Password string   `json:"password,omitempty"`
	Areas    []string `json:"areas"`
	Active   *bool    `json:"active"`
}

func (r ModeratorRequest) toInput() bottles.ModeratorInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return bottles.ModeratorInput{
		Name:     r.Name,
		Phone:    r.Phone,
		Password: r.Password,
		Areas:    r.Areas,
		Active:   active,
	}
}

// =============================================================================
// DASHBOARD
// =============================================================================

type ModeratorSummaryDTO struct {
	ModeratorID string          `json:"moderator_id"`
	Name        string          `json:"name"`
	Days        int             `json:"days"`
	Filled      int             `json:"filled_bottles"`
	Sales       int             `json:"sales"`
	Returned    int             `json:"returned"`
	Revenue     decimal.Decimal `json:"revenue"`
	Expense     decimal.Decimal `json:"expense"`
}

type DashboardDTO struct {
	From             string                `json:"from"`
	To               string                `json:"to"`
	Initialized      bool                  `json:"initialized"`
	Stock            StockDTO              `json:"stock"`
	OwnedBottles     int                   `json:"owned_bottles"`
	DerivedAvailable int                   `json:"derived_available"`
	AvailableDrift   int                   `json:"available_drift"`
	OpenDays         int                   `json:"open_days"`
	DoneDays         int                   `json:"done_days"`
	Filled           int                   `json:"filled_bottles"`
	Sales            int                   `json:"sales"`
	Empty            int                   `json:"empty_bottles"`
	Damaged          int                   `json:"damaged_bottles"`
	Refilled         int                   `json:"refilled_bottles"`
	Returned         int                   `json:"returned"`
	Revenue          decimal.Decimal       `json:"revenue"`
	Expense          decimal.Decimal       `json:"expense"`
	Net              decimal.Decimal       `json:"net"`
	Deliveries       int                   `json:"deliveries"`
	Misc             int                   `json:"misc"`
	Customers        int                   `json:"customers"`
	CustomerBottles  int                   `json:"customer_bottles"`
	CustomerBalance  decimal.Decimal       `json:"customer_balance"`
	Moderators       []ModeratorSummaryDTO `json:"moderators"`
}

func toDashboardDTO(d bottles.Dashboard) DashboardDTO {
	out := DashboardDTO{
		From:             d.From.Format(dayFormat),
		To:               d.To.Format(dayFormat),
		Initialized:      d.Initialized,
		Stock:            toStockDTO(d.Stock),
		OwnedBottles:     d.Owned,
		DerivedAvailable: d.DerivedAvailable,
		AvailableDrift:   d.AvailableDrift,
		OpenDays:         d.OpenDays,
		DoneDays:         d.DoneDays,
		Filled:           d.Filled,
		Sales:            d.Sales,
		Empty:            d.Empty,
		Damaged:          d.Damaged,
		Refilled:         d.Refilled,
		Returned:         d.Returned,
		Revenue:          d.Revenue,
		Expense:          d.Expense,
		Net:              d.Net,
		Deliveries:       d.Deliveries,
		Misc:             d.Misc,
		Customers:        d.Customers,
		CustomerBottles:  d.CustomerBottles,
		CustomerBalance:  d.CustomerBalance,
		Moderators:       make([]ModeratorSummaryDTO, 0, len(d.Moderators)),
	}
	for _, m := range d.Moderators {
		out.Moderators = append(out.Moderators, ModeratorSummaryDTO{
			ModeratorID: m.ModeratorID,
			Name:        m.Name,
			Days:        m.Days,
			Filled:      m.Filled,
			Sales:       m.Sales,
			Returned:    m.Returned,
			Revenue:     m.Revenue,
			Expense:     m.Expense,
		})
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}
