package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/bottle-ledger/bottles"
)

// =============================================================================
// STOCK
// =============================================================================

// InitStock creates the TotalBottles row.
// POST /api/admin/stock/init
func (h *Handler) InitStock(w http.ResponseWriter, r *http.Request) {
	var req InitStockRequest
	if !decode(w, r, &req) {
		return
	}
	tb, err := h.Service.InitTotalBottles(r.Context(), req.TotalBottles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStockDTO(tb))
}

// AdjustStock restocks or writes off bottles.
// PUT /api/admin/stock
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !decode(w, r, &req) {
		return
	}
	tb, err := h.Service.AdjustTotalBottles(r.Context(), bottles.StockAdjustment{
		Total:   req.TotalBottles,
		Damaged: req.DamagedBottles,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(tb))
}

// =============================================================================
// USAGE CORRECTIONS
// =============================================================================

// EditUsage overwrites a usage row's counters.
// PUT /api/admin/usage/{id}
func (h *Handler) EditUsage(w http.ResponseWriter, r *http.Request) {
	var req EditUsageRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.EditBottleUsage(r.Context(), chi.URLParam(r, "id"), req.toCorrection())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: toUsageDTO(res.Usage, ""), Stock: toStockDTO(res.Stock)})
}

// ResetUsage zeroes a usage row and rolls the pool back.
// POST /api/admin/usage/{id}/reset
func (h *Handler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	u, tb, err := h.Service.ResetBottleUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: toUsageDTO(u, ""), Stock: toStockDTO(tb)})
}

// DeleteUsage removes a day with its misc and expense records.
// DELETE /api/admin/usage/{id}
func (h *Handler) DeleteUsage(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteBottleUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteUsageResponse{
		Stock:           toStockDTO(res.Stock),
		RemovedMisc:     res.RemovedMisc,
		RemovedExpenses: res.RemovedExpenses,
	})
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// ListCustomers returns every customer.
// GET /api/admin/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]CustomerDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomerDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCustomer opens an account; its deposit leaves the pool.
// POST /api/admin/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.CreateCustomer(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerResponse{Customer: toCustomerDTO(res.Customer), Stock: toStockDTO(res.Stock)})
}

// UpdateCustomer edits an account; deposit changes move the pool.
// PUT /api/admin/customers/{id}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerResponse{Customer: toCustomerDTO(res.Customer), Stock: toStockDTO(res.Stock)})
}

// DeleteCustomer closes an account and collects its deposit.
// DELETE /api/admin/customers/{id}
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerResponse{Customer: toCustomerDTO(res.Customer), Stock: toStockDTO(res.Stock)})
}

// =============================================================================
// TRANSACTION CORRECTIONS
// =============================================================================

// UpdateDelivery rewrites a delivery and applies the difference.
// PUT /api/admin/deliveries/{id}
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.deliveryInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.UpdateDelivery(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(res))
}

// UpdateMisc rewrites a misc delivery and applies the difference.
// PUT /api/admin/misc/{id}
func (h *Handler) UpdateMisc(w http.ResponseWriter, r *http.Request) {
	var req MiscRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.miscInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.UpdateMisc(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMiscResponse(res))
}

// UpdateExpense rewrites an expense and re-runs its refill.
// PUT /api/admin/expenses/{id}
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.expenseInput(w, r, req)
	if !ok {
		return
	}
	res, err := h.Service.UpdateExpense(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(res))
}

// =============================================================================
// MODERATORS
// =============================================================================

// ListModerators returns every moderator.
// GET /api/admin/moderators
func (h *Handler) ListModerators(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListModerators(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ModeratorDTO, 0, len(list))
	for _, m := range list {
		out = append(out, toModeratorDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/admin/moderators
func (h *Handler) CreateModerator(w http.ResponseWriter, r *http.Request) {
	var req ModeratorRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Service.CreateModerator(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toModeratorDTO(m))
}

// PUT /api/admin/moderators/{id}
func (h *Handler) UpdateModerator(w http.ResponseWriter, r *http.Request) {
	var req ModeratorRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Service.UpdateModerator(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toModeratorDTO(m))
}

// DELETE /api/admin/moderators/{id}
func (h *Handler) DeleteModerator(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteModerator(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
