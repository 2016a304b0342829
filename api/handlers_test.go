/*
handlers_test.go - HTTP tests for the router and handlers

Tests for:
- Login and bearer token checks
- Role gates on moderator and admin routes
- A moderator's day over HTTP (issue, deliver, close)
- Error mapping to status codes and error codes
- Rate limiting, health and metrics endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/ledger/store"
	"github.com/warp/bottle-ledger/obs"
)

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass"
	modPassword   = "mod-pass"
)

type testServer struct {
	router  http.Handler
	svc     *bottles.Service
	metrics *obs.Metrics
	admin   context.Context
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	svc, err := bottles.NewService(store.NewMemory(),
		bottles.WithClock(func() time.Time { return testNow }),
		bottles.WithLogger(log),
	)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(context.Background(), adminEmail, adminPassword))

	if opts.Metrics == nil {
		opts.Metrics = obs.NewMetrics()
	}
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	h := NewHandler(svc, tokens, log)
	return &testServer{
		router:  NewRouter(h, opts),
		svc:     svc,
		metrics: opts.Metrics,
		admin:   auth.WithActor(context.Background(), auth.Actor{ID: "admin-1", Role: ledger.RoleAdmin, Name: adminEmail}),
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, body map[string]string) LoginResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decodeBody(t, rec, &resp)
	return resp
}

func (ts *testServer) adminToken(t *testing.T) string {
	return ts.login(t, map[string]string{"email": adminEmail, "password": adminPassword}).Token
}

func (ts *testServer) moderator(t *testing.T, name string) (id, token string) {
	t.Helper()
	m, err := ts.svc.CreateModerator(ts.admin, bottles.ModeratorInput{Name: name, Password: modPassword, Active: true})
	require.NoError(t, err)
	resp := ts.login(t, map[string]string{"name": name, "password": modPassword})
	return m.ID, resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst), "body: %s", rec.Body.String())
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_AdminAndModerator(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	// GIVEN: A seeded admin and a moderator
	modID, modToken := ts.moderator(t, "ravi")

	// WHEN: Both log in
	admin := ts.login(t, map[string]string{"email": adminEmail, "password": adminPassword})

	// THEN: Tokens carry their roles
	assert.Equal(t, ledger.RoleAdmin, admin.Role)
	assert.NotEmpty(t, admin.Token)
	assert.NotEmpty(t, modToken)
	assert.NotEmpty(t, modID)
}

func TestLogin_Rejections(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": adminEmail, "password": "nope"}, http.StatusUnauthorized},
		{"unknown moderator", map[string]string{"name": "ghost", "password": modPassword}, http.StatusUnauthorized},
		{"no identity", map[string]string{"password": modPassword}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuth_TokenRequired(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	// WHEN: Reading stock without and with a bad token
	missing := ts.do(t, http.MethodGet, "/api/stock", "", nil)
	forged := ts.do(t, http.MethodGet, "/api/stock", "not-a-jwt", nil)

	// THEN: Both are unauthorized
	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, forged.Code)

	var body ErrorResponse
	decodeBody(t, forged, &body)
	assert.Equal(t, "unauthorized", body.Code)
}

func TestAuth_ModeratorCannotUseAdminRoutes(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	_, modToken := ts.moderator(t, "ravi")

	// WHEN: A moderator tries to initialize stock
	rec := ts.do(t, http.MethodPost, "/api/admin/stock/init", modToken, map[string]int{"total_bottles": 100})

	// THEN: Forbidden
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// MODERATOR DAY
// =============================================================================

func TestModeratorDay_OverHTTP(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	adminTok := ts.adminToken(t)
	modID, modTok := ts.moderator(t, "ravi")

	// GIVEN: 1000 bottles and one customer
	rec := ts.do(t, http.MethodPost, "/api/admin/stock/init", adminTok, map[string]int{"total_bottles": 1000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/admin/customers", adminTok, map[string]any{
		"name": "Hotel Sunrise", "bottle_price": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cust CustomerResponse
	decodeBody(t, rec, &cust)

	// WHEN: The moderator is issued 100 bottles
	rec = ts.do(t, http.MethodPost, "/api/usage", modTok, map[string]int{"filled_bottles": 100, "caps": 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued IssueResponse
	decodeBody(t, rec, &issued)

	// THEN: The pool moved
	assert.True(t, issued.Created)
	assert.Equal(t, modID, issued.Usage.ModeratorID)
	assert.Equal(t, 900, issued.Stock.AvailableBottles)
	assert.Equal(t, 100, issued.Stock.UsedBottles)

	// WHEN: They deliver 30 bottles
	rec = ts.do(t, http.MethodPost, "/api/deliveries", modTok, map[string]any{
		"customer_id": cust.Customer.ID, "filled_bottles": 30, "empty_bottles": 10, "payment": "300",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var delivered DeliveryResponse
	decodeBody(t, rec, &delivered)

	// THEN: Sales and the customer follow
	assert.Equal(t, 30, delivered.Usage.Sales)
	assert.Equal(t, 70, delivered.Usage.RemainingBottles)
	assert.Equal(t, 20, delivered.Customer.Bottles)
	assert.True(t, delivered.Customer.Balance.IsZero(), "balance %s", delivered.Customer.Balance)

	// WHEN: They close the day and try to deliver again
	rec = ts.do(t, http.MethodPost, "/api/usage/done", modTok, map[string]bool{"done": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/deliveries", modTok, map[string]any{
		"customer_id": cust.Customer.ID, "filled_bottles": 1, "payment": "10",
	})

	// THEN: The closed day rejects the write
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "day_closed", body.Code)

	// AND: A moderator cannot reopen it
	rec = ts.do(t, http.MethodPost, "/api/usage/done", modTok, map[string]bool{"done": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// AND: The dashboard shows the day
	rec = ts.do(t, http.MethodGet, "/api/dashboard?days=1", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash DashboardDTO
	decodeBody(t, rec, &dash)
	assert.Equal(t, 30, dash.Sales)
	assert.Equal(t, 1, dash.DoneDays)
	assert.Equal(t, 1, dash.Deliveries)
}

func TestModerator_ActsAsThemselves(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	adminTok := ts.adminToken(t)
	ravi, raviTok := ts.moderator(t, "ravi")
	asha, _ := ts.moderator(t, "asha")
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/stock/init", adminTok, map[string]int{"total_bottles": 50}).Code)

	// WHEN: Ravi asks for bottles on Asha's behalf
	rec := ts.do(t, http.MethodPost, "/api/usage", raviTok, map[string]any{"moderator_id": asha, "filled_bottles": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The row is Ravi's
	var issued IssueResponse
	decodeBody(t, rec, &issued)
	assert.Equal(t, ravi, issued.Usage.ModeratorID)

	rec = ts.do(t, http.MethodGet, "/api/usage?moderator_id="+asha, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelivery_DeleteRestoresUsage(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	adminTok := ts.adminToken(t)
	_, modTok := ts.moderator(t, "ravi")

	// GIVEN: An open day with one delivery
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/stock/init", adminTok, map[string]int{"total_bottles": 200}).Code)
	rec := ts.do(t, http.MethodPost, "/api/admin/customers", adminTok, map[string]any{"name": "Corner Cafe", "bottle_price": "15"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cust CustomerResponse
	decodeBody(t, rec, &cust)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/usage", modTok, map[string]int{"filled_bottles": 40}).Code)
	rec = ts.do(t, http.MethodPost, "/api/deliveries", modTok, map[string]any{
		"customer_id": cust.Customer.ID, "filled_bottles": 12, "payment": "180",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var delivered DeliveryResponse
	decodeBody(t, rec, &delivered)

	// WHEN: The delivery is deleted
	rec = ts.do(t, http.MethodDelete, "/api/deliveries/"+delivered.Delivery.ID, modTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var undone DeliveryResponse
	decodeBody(t, rec, &undone)

	// THEN: The day is back where it started
	assert.Equal(t, 0, undone.Usage.Sales)
	assert.Equal(t, 40, undone.Usage.RemainingBottles)
	assert.Equal(t, 0, undone.Customer.Bottles)

	// AND: Deleting it twice is not found
	rec = ts.do(t, http.MethodDelete, "/api/deliveries/"+delivered.Delivery.ID, modTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssue_OverdrawIsInvariantViolation(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	adminTok := ts.adminToken(t)
	_, modTok := ts.moderator(t, "ravi")
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/stock/init", adminTok, map[string]int{"total_bottles": 10}).Code)

	// WHEN: Asking for more than the warehouse holds
	rec := ts.do(t, http.MethodPost, "/api/usage", modTok, map[string]int{"filled_bottles": 11})

	// THEN: 422 and nothing moved
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "invariant_violation", body.Code)

	rec = ts.do(t, http.MethodGet, "/api/stock", adminTok, nil)
	var stock StockDTO
	decodeBody(t, rec, &stock)
	assert.Equal(t, 10, stock.AvailableBottles)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	adminTok := ts.adminToken(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/stock/init", adminTok, map[string]int{"bottles": 10})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", ledger.ErrForbidden), http.StatusForbidden},
		{ledger.ErrNotFound, http.StatusNotFound},
		{ledger.ErrDayClosed, http.StatusUnprocessableEntity},
		{&ledger.ConflictError{Entity: "total bottles", Reason: "already initialized"}, http.StatusConflict},
		{ledger.ErrConcurrentModification, http.StatusConflict},
		{ledger.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteLedgerError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	status := writeLedgerError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, status)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "internal", body.Code)
}

// =============================================================================
// PLUMBING
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRoute_IsJSON404(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(t, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "not_found", body.Code)
}

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	// GIVEN: Two health checks
	ts.do(t, http.MethodGet, "/health", "", nil)
	ts.do(t, http.MethodGet, "/health", "", nil)

	// WHEN: Scraping
	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)

	// THEN: The route pattern is a label
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 2`)
}

func TestRateLimit_PerClient(t *testing.T) {
	ts := newTestServer(t, RouterOptions{RateLimitRPS: 1, RateLimitBurst: 2})

	get := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec.Code
	}

	// WHEN: One client bursts past its allowance
	assert.Equal(t, http.StatusOK, get("10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1"))

	// THEN: Another client is unaffected
	assert.Equal(t, http.StatusOK, get("10.0.0.2"))
}

func TestRateLimit_DisabledWithoutRate(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "", nil).Code)
	}
}
