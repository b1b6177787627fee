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
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/summary            Ledger overview
  /api/employees          Employees with their ads balances
  /api/projects           Projects (filterable by region)
  /api/balances/*         Balance initialization
  /api/distributions/*    Ads distribution + audit log
  /api/admin/*            Demo seeding

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/summary", h.GetSummary)
		r.Get("/employees", h.ListEmployees)
		r.Get("/projects", h.ListProjects)

		// Balance routes
		r.Route("/balances", func(r chi.Router) {
			r.Post("/initialize", h.InitializeBalances)
		})

		// Distribution routes
		r.Route("/distributions", func(r chi.Router) {
			r.Post("/", h.CreateDistribution)
			r.Get("/log", h.GetDistributionLog)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.SeedDemo)
		})
	})

	// Landing page listing the API surface
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Ads Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Ads Ledger API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/summary">/api/summary</a> - Ledger overview</li>
<li><a href="/api/employees">/api/employees</a> - Employees and balances</li>
<li><a href="/api/projects">/api/projects</a> - Projects (?region=North)</li>
<li><a href="/api/distributions/log">/api/distributions/log</a> - Distribution audit log</li>
<li>POST /api/balances/initialize - Split the global budget across employees</li>
<li>POST /api/distributions - Distribute ads for an employee in a region</li>
<li>POST /api/admin/seed - Load the demo dataset</li>
</ul>
</body>
</html>`))
	})

	return r
}
