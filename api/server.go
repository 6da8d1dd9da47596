/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. CORS:           Cross-origin requests for the frontend
  2. RequestLogger:  Structured request logs (httplog over slog)
  3. CleanPath:      Normalized URLs
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. Heartbeat:      Liveness probe on /health

ROUTE GROUPS:
  /api/clients/*       Client and bonus management
  /api/bonuses/*       Bonus redemption
  /api/staff/*         Employees, balances, payouts
  /api/invoices/*      Invoice finalization
  /api/appointments/*  Calendar
  /api/dashboard/*     Aggregated stats
  /api/admin/*         Seed data

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Put the server behind a trusted proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Put("/{id}", h.UpdateClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Post("/{id}/bonuses", h.IssueBonus)
		})

		r.Route("/bonuses", func(r chi.Router) {
			r.Post("/{id}/redeem", h.RedeemBonus)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateEmployee)
			r.Get("/balances", h.GetBalances)
			r.Post("/{id}/payments", h.PayEmployee)
			r.Post("/settle", h.SettleAll)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Post("/", h.CreateAppointment)
			r.Put("/{id}", h.UpdateAppointment)
			r.Delete("/{id}", h.DeleteAppointment)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", h.DashboardStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.LoadSeed)
		})
	})

	return r
}
