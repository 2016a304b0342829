/*
handlers.go - HTTP API handlers for the bottle ledger

PURPOSE:
  Exposes the bottle ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to bottles.Service.

ENDPOINTS:
  Public:
    GET    /health                   Liveness
    POST   /api/auth/login           Admin (email) or moderator (name) login

  Reads (any role):
    GET    /api/stock                Current TotalBottles row
    GET    /api/usage                One day (?moderator_id=&day=)
    GET    /api/usage/list           Last N days (?moderator_id=&days=)
    GET    /api/deliveries           ?moderator_id=&customer_id=&days=
    GET    /api/misc                 ?moderator_id=&days=
    GET    /api/expenses             ?moderator_id=&days=
    GET    /api/dashboard            ?days=

  Moderator activity (a moderator always acts as itself):
    POST   /api/usage                Issue bottles, or refill an open day
    POST   /api/usage/done           Mark the day done / reopen (admin)
    POST   /api/usage/return         Return empties and remaining bottles
    POST   /api/usage/misc           Collect empties or broken bottles
    POST   /api/deliveries           Record a customer delivery
    DELETE /api/deliveries/{id}
    POST   /api/misc                 Record a misc delivery
    DELETE /api/misc/{id}
    POST   /api/expenses             Record an expense (optional refill)
    DELETE /api/expenses/{id}

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 401: Missing or bad credentials
  - 403: Role or ownership check failed
  - 404: Record not found
  - 409: Already in target state, or too much contention
  - 422: The change would break a counter bound (incl. closed day)
  - 500: Internal errors

SEE ALSO:
  - admin.go: Admin-only handlers
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *bottles.Service
	Tokens  *auth.Tokens
	Log     *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *bottles.Service, tokens *auth.Tokens, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Tokens: tokens, Log: log}
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges credentials for a bearer token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		actor auth.Actor
		err   error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		actor, err = h.Service.LoginAdmin(r.Context(), req.Email, req.Password)
	case strings.TrimSpace(req.Name) != "":
		actor, err = h.Service.LoginModerator(r.Context(), req.Name, req.Password)
	default:
		writeError(w, http.StatusBadRequest, "email or name is required", nil)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, expires, err := h.Tokens.Issue(actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: formatTS(expires),
		ID:        actor.ID,
		Name:      actor.Name,
		Role:      actor.Role,
	})
}

// =============================================================================
// READS
// =============================================================================

// GetStock returns the TotalBottles row.
// GET /api/stock
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	tb, err := h.Service.GetTotalBottles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(tb))
}

// GetUsage returns one moderator's row for one day.
// GET /api/usage?moderator_id=&day=
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(w, r.URL.Query().Get("day"))
	if !ok {
		return
	}
	modID := moderatorFor(r, r.URL.Query().Get("moderator_id"))
	if modID == "" {
		writeError(w, http.StatusBadRequest, "moderator_id is required", nil)
		return
	}
	u, err := h.Service.GetBottleUsage(r.Context(), modID, day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTO(u, ""))
}

// ListUsage returns usage rows in the window, newest first.
// GET /api/usage/list?moderator_id=&days=
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	q, ok := listQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ListBottleUsage(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]UsageDTO, 0, len(rows))
	for _, u := range rows {
		out = append(out, toUsageDTO(u.BottleUsage, u.ModeratorName))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListDeliveries returns deliveries in the window, newest first.
// GET /api/deliveries?moderator_id=&customer_id=&days=
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	q, ok := listQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ListDeliveries(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]DeliveryDTO, 0, len(rows))
	for _, d := range rows {
		dto := toDeliveryDTO(d.Delivery)
		dto.CustomerName, dto.ModeratorName = d.CustomerName, d.ModeratorName
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMisc returns misc deliveries in the window, newest first.
// GET /api/misc?moderator_id=&days=
func (h *Handler) ListMisc(w http.ResponseWriter, r *http.Request) {
	q, ok := listQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ListMisc(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]MiscDTO, 0, len(rows))
	for _, m := range rows {
		dto := toMiscDTO(m.Misc)
		dto.ModeratorName = m.ModeratorName
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListExpenses returns expenses in the window, newest first.
// GET /api/expenses?moderator_id=&days=
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	q, ok := listQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ListExpenses(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ExpenseDTO, 0, len(rows))
	for _, x := range rows {
		dto := toExpenseDTO(x.OtherExpense)
		dto.ModeratorName = x.ModeratorName
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// Dashboard returns stock, window totals and per-moderator sales.
// GET /api/dashboard?days=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// =============================================================================
// MODERATOR ACTIVITY
// =============================================================================

// IssueBottles issues bottles for the day, or refills an open day.
// POST /api/usage
func (h *Handler) IssueBottles(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !decode(w, r, &req) {
		return
	}
	day, ok := h.day(w, req.Day)
	if !ok {
		return
	}
	res, err := h.Service.AddUpdateBottleUsage(r.Context(), bottles.IssueRequest{
		ModeratorID: moderatorFor(r, req.ModeratorID),
		Day:         day,
		Filled:      req.FilledBottles,
		Caps:        req.Caps,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, IssueResponse{
		Usage:    toUsageDTO(res.Usage, ""),
		Stock:    toStockDTO(res.Stock),
		Created:  res.Created,
		Refilled: res.Refilled,
	})
}

// SetDone closes or reopens a day.
// POST /api/usage/done
func (h *Handler) SetDone(w http.ResponseWriter, r *http.Request) {
	var req DoneRequest
	if !decode(w, r, &req) {
		return
	}
	day, ok := h.day(w, req.Day)
	if !ok {
		return
	}
	u, err := h.Service.SetDone(r.Context(), moderatorFor(r, req.ModeratorID), day, req.Done)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTO(u, ""))
}

// ReturnBottles hands empties and unsold bottles back to the warehouse.
// POST /api/usage/return
func (h *Handler) ReturnBottles(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !decode(w, r, &req) {
		return
	}
	day, ok := h.day(w, req.Day)
	if !ok {
		return
	}
	res, err := h.Service.ReturnBottles(r.Context(), bottles.ReturnRequest{
		ModeratorID: moderatorFor(r, req.ModeratorID),
		Day:         day,
		Empty:       req.EmptyBottles,
		Remaining:   req.RemainingBottles,
		Caps:        req.Caps,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: toUsageDTO(res.Usage, ""), Stock: toStockDTO(res.Stock)})
}

// AddMiscUsage records empties or broken bottles collected outside a delivery.
// POST /api/usage/misc
func (h *Handler) AddMiscUsage(w http.ResponseWriter, r *http.Request) {
	var req MiscUsageRequest
	if !decode(w, r, &req) {
		return
	}
	day, ok := h.day(w, req.Day)
	if !ok {
		return
	}
	res, err := h.Service.AddMiscBottleUsage(r.Context(), moderatorFor(r, req.ModeratorID), day, req.EmptyBottles, req.DamagedBottles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMiscResponse(res))
}

// CreateDelivery records a delivery to a customer.
// POST /api/deliveries
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.deliveryInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.CreateDelivery(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeliveryResponse(res))
}

// DeleteDelivery reverses a delivery.
// DELETE /api/deliveries/{id}
func (h *Handler) DeleteDelivery(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(res))
}

// CreateMisc records a delivery without a customer account.
// POST /api/misc
func (h *Handler) CreateMisc(w http.ResponseWriter, r *http.Request) {
	var req MiscRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.miscInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.CreateMisc(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMiscResponse(res))
}

// DeleteMisc reverses a misc delivery.
// DELETE /api/misc/{id}
func (h *Handler) DeleteMisc(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteMisc(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMiscResponse(res))
}

// CreateExpense records an expense, refilling as many empties as caps allow.
// POST /api/expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.expenseInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.CreateExpense(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(res))
}

// DeleteExpense reverses an expense and its refill.
// DELETE /api/expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(res))
}

// =============================================================================
// REQUEST CONVERSION
// =============================================================================

func (h *Handler) deliveryInput(w http.ResponseWriter, r *http.Request, req DeliveryRequest) (bottles.DeliveryInput, bool) {
	day, ok := h.day(w, req.Day)
	return bottles.DeliveryInput{
		CustomerID:  req.CustomerID,
		ModeratorID: moderatorFor(r, req.ModeratorID),
		Day:         day,
		Filled:      req.FilledBottles,
		Empty:       req.EmptyBottles,
		Damaged:     req.DamagedBottles,
		FOC:         req.FOC,
		Payment:     req.Payment,
		Note:        req.Note,
	}, ok
}

func (h *Handler) miscInput(w http.ResponseWriter, r *http.Request, req MiscRequest) (bottles.MiscInput, bool) {
	day, ok := h.day(w, req.Day)
	return bottles.MiscInput{
		ModeratorID: moderatorFor(r, req.ModeratorID),
		Day:         day,
		Description: req.Description,
		Filled:      req.FilledBottles,
		Empty:       req.EmptyBottles,
		Damaged:     req.DamagedBottles,
		FOC:         req.FOC,
		Payment:     req.Payment,
	}, ok
}

func (h *Handler) expenseInput(w http.ResponseWriter, r *http.Request, req ExpenseRequest) (bottles.ExpenseInput, bool) {
	day, ok := h.day(w, req.Day)
	return bottles.ExpenseInput{
		ModeratorID: moderatorFor(r, req.ModeratorID),
		Day:         day,
		Description: req.Description,
		Amount:      req.Amount,
		Refill:      req.RefilledBottles,
	}, ok
}

// moderatorFor picks the moderator a request acts for. Moderators always act
// as themselves; admins name the moderator explicitly.
func moderatorFor(r *http.Request, requested string) string {
	if a, ok := auth.ActorFromContext(r.Context()); ok && a.Role == ledger.RoleModerator {
		return a.ID
	}
	return strings.TrimSpace(requested)
}

// day parses an optional YYYY-MM-DD. Empty means today, which the service
// resolves from its clock.
func (h *Handler) day(w http.ResponseWriter, s string) (time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, true
	}
	d, err := h.Service.Calendar().ParseDay(s)
	if err != nil {
		writeLedgerError(w, err)
		return time.Time{}, false
	}
	return d, true
}

func listQuery(w http.ResponseWriter, r *http.Request) (bottles.Query, bool) {
	days, ok := queryInt(w, r, "days")
	if !ok {
		return bottles.Query{}, false
	}
	q := r.URL.Query()
	return bottles.Query{
		ModeratorID: q.Get("moderator_id"),
		CustomerID:  q.Get("customer_id"),
		Days:        days,
	}, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", key), err)
		return 0, false
	}
	return n, true
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeFor(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail writes a ledger error and logs the ones that are not the caller's fault.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := writeLedgerError(w, err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeLedgerError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: codeFor(status)}

	var inv *ledger.InvariantError
	var in *ledger.InputError
	switch {
	case errors.Is(err, ledger.ErrDayClosed):
		resp.Code = "day_closed"
	case errors.As(err, &inv):
		resp.Field = inv.Field
	case errors.As(err, &in):
		resp.Field = in.Field
	}
	if status >= http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
	return status
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrConflict), ledger.IsRetryable(err):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invariant_violation"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}
