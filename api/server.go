/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request line (method, path, status, latency)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the POS frontend

ROUTE GROUPS:
  /api/auth/login, /api/auth/users   Public
  everything else under /api         Bearer token required
  /api/jornadas|clientes|pagos|gastos|historial   admin, super_admin
  /api/scenarios/*                   super_admin, development only

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware and RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/warp/lavadero/ledger"
)

// RouterOptions are the deployment-dependent router settings.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(opts.AllowedOrigins)))

	admins := RequireRole(ledger.RoleAdmin, ledger.RoleSuperAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Public auth routes
		r.Post("/auth/login", h.Login)
		r.Get("/auth/users", h.ListUsers)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Get("/auth/me", h.Me)
			r.Get("/dashboard", h.GetDashboard)

			// Shift routes; status is visible to every role
			r.Route("/jornadas", func(r chi.Router) {
				r.Get("/today", h.GetTodayShift)
				r.Get("/active", h.GetActiveShift)

				r.Group(func(r chi.Router) {
					r.Use(admins)
					r.Post("/", h.OpenShift)
					r.Post("/{id}/reopen", h.ReopenShift)
					r.Post("/{id}/close", h.CloseShift)
					r.Get("/{id}/preview", h.PreviewShift)
				})
			})

			// Wash job routes; role rules live in lavado.Service
			r.Route("/lavados", func(r chi.Router) {
				r.Get("/", h.ListWashJobs)
				r.Post("/", h.CreateWashJob)
				r.Put("/{id}", h.UpdateWashJob)
				r.Delete("/{id}", h.DeleteWashJob)
			})

			r.Group(func(r chi.Router) {
				r.Use(admins)

				r.Route("/clientes", func(r chi.Router) {
					r.Get("/", h.ListClients)
					r.Post("/", h.CreateClient)
					r.Get("/{id}", h.GetClient)
					r.Put("/{id}", h.UpdateClient)
					r.Delete("/{id}", h.DeleteClient)
					r.Get("/{id}/deuda", h.GetClientDebt)
					r.Get("/{id}/estado", h.GetClientStatement)
					r.Get("/{id}/deudas", h.ListManualDebts)
					r.Post("/{id}/deudas", h.CreateManualDebt)
				})

				r.Route("/pagos", func(r chi.Router) {
					r.Get("/", h.ListPayments)
					r.Post("/", h.RegisterPayment)
				})

				r.Route("/gastos", func(r chi.Router) {
					r.Get("/", h.ListExpenses)
					r.Post("/", h.CreateExpense)
				})

				r.Get("/historial", h.GetHistory)
			})

			// Scenario routes
			if h.DevMode {
				r.Route("/scenarios", func(r chi.Router) {
					r.Use(RequireRole(ledger.RoleSuperAdmin))
					r.Get("/", h.ListScenarios)
					r.Get("/current", h.GetCurrentScenario)
					r.Post("/load", h.LoadScenario)
				})
			}
		})
	})

	return r
}

// corsOptions allows credentials only for an explicit origin list. A
// wildcard origin gets plain CORS without credentials.
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	credentials := true
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: credentials,
	}
}

// requestLogger logs each request with method, path, status, latency, and request_id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}
