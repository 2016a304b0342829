/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:   Unique ID per request for tracing
  2. RealIP:      Client address from proxy headers
  3. AccessLog:   zap request logging
  4. Recoverer:   Panic recovery (500 instead of crash)
  5. Instrument:  Prometheus request metrics by route pattern
  6. CORS:        Cross-origin requests for the dashboard frontend
  7. RateLimit:   Token bucket per client IP

ROUTE GROUPS:
  /health, /metrics     Unauthenticated
  /api/auth/login       Unauthenticated
  /api/*                Bearer token, any role
  /api/* (writes)       Moderator or admin
  /api/admin/*          Admin only

SEE ALSO:
  - handlers.go, admin.go: Handler implementations
  - middleware.go: Auth, rate limit, logging, metrics
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/obs"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
	Metrics        *obs.Metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.Log))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(Instrument(opts.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(h.Tokens))

			// Reads
			r.Get("/stock", h.GetStock)
			r.Get("/usage", h.GetUsage)
			r.Get("/usage/list", h.ListUsage)
			r.Get("/deliveries", h.ListDeliveries)
			r.Get("/misc", h.ListMisc)
			r.Get("/expenses", h.ListExpenses)
			r.Get("/dashboard", h.Dashboard)

			// Moderator activity; the service enforces ownership
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(ledger.RoleModerator, ledger.RoleAdmin))
				r.Post("/usage", h.IssueBottles)
				r.Post("/usage/done", h.SetDone)
				r.Post("/usage/return", h.ReturnBottles)
				r.Post("/usage/misc", h.AddMiscUsage)
				r.Post("/deliveries", h.CreateDelivery)
				r.Delete("/deliveries/{id}", h.DeleteDelivery)
				r.Post("/misc", h.CreateMisc)
				r.Delete("/misc/{id}", h.DeleteMisc)
				r.Post("/expenses", h.CreateExpense)
				r.Delete("/expenses/{id}", h.DeleteExpense)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(ledger.RoleAdmin))

				r.Post("/stock/init", h.InitStock)
				r.Put("/stock", h.AdjustStock)

				r.Put("/usage/{id}", h.EditUsage)
				r.Post("/usage/{id}/reset", h.ResetUsage)
				r.Delete("/usage/{id}", h.DeleteUsage)

				r.Route("/customers", func(r chi.Router) {
					r.Get("/", h.ListCustomers)
					r.Post("/", h.CreateCustomer)
					r.Put("/{id}", h.UpdateCustomer)
					r.Delete("/{id}", h.DeleteCustomer)
				})

				r.Put("/deliveries/{id}", h.UpdateDelivery)
				r.Delete("/deliveries/{id}", h.DeleteDelivery)
				r.Put("/misc/{id}", h.UpdateMisc)
				r.Delete("/misc/{id}", h.DeleteMisc)
				r.Put("/expenses/{id}", h.UpdateExpense)
				r.Delete("/expenses/{id}", h.DeleteExpense)

				r.Route("/moderators", func(r chi.Router) {
					r.Get("/", h.ListModerators)
					r.Post("/", h.CreateModerator)
					r.Put("/{id}", h.UpdateModerator)
					r.Delete("/{id}", h.DeleteModerator)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", nil)
	})

	return r
}
