/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging
  3. Metrics:    Response counts by status code
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend
  /api only:
  6. Identity:   401 without X-User-ID
  7. RateLimit:  Per-user token bucket on POST /api/checkins

ROUTE GROUPS:
  /api/checkins/*       Check-ins
  /api/stats/*          Streak statistics
  /api/mysteries        Reference data
  /api/intentions       Reference data
  /api/content/*        Articles
  /metrics              Prometheus
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging, metrics, identity, rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/metrics"
)

// RouterOptions configures the router around a Handler.
type RouterOptions struct {
	Identity        IdentityResolver // nil = HeaderIdentity
	AllowedOrigins  []string
	SubmitPerMinute int
	Metrics         metrics.Recorder
	MetricsHandler  http.Handler // served at /metrics when set
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Identity == nil {
		opts.Identity = HeaderIdentity{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := newUserLimiter(opts.SubmitPerMinute)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger, opts.Identity))
	r.Use(statusMetrics(opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID, HeaderUserName},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reference data needs no identity
		r.Get("/mysteries", h.ListMysteries)
		r.Get("/intentions", h.ListIntentions)
		r.Get("/content/{category}/{slug}", h.GetArticle)

		r.Group(func(r chi.Router) {
			r.Use(requireUser(opts.Identity))

			// Check-in routes
			r.Route("/checkins", func(r chi.Router) {
				r.With(limiter.middleware).Post("/", h.SubmitCheckIn)
				r.Get("/today", h.GetToday)
				r.Get("/recent", h.GetRecent)
				r.Get("/weekly", h.GetWeeklyCheckIns)
			})

			// Stats routes
			r.Route("/stats", func(r chi.Router) {
				r.Get("/", h.GetStats)
				r.Get("/weekly", h.GetWeeklyStats)
			})
		})
	})

	return r
}
