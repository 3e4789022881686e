package view

import (
	"log/slog"
	"net/http"
	"time"

	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Log     *slog.Logger
	Metrics *metrics.Metrics
	// CORSOrigins lists allowed browser origins; empty disables CORS headers.
	CORSOrigins []string
	// MutationsPerMinute caps POST requests per client IP; <= 0 disables it.
	MutationsPerMinute int
	// ScrapeHook runs before each /metrics scrape.
	ScrapeHook func()
}

// NewRouter mounts h with request logging, metrics, CORS and rate limiting.
func NewRouter(h *Handler, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Log != nil {
		r.Use(logger.RequestLogger(opts.Log))
	}
	if opts.Metrics != nil {
		r.Use(metrics.RequestMiddleware(opts.Metrics))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler(opts.ScrapeHook))
	}

	r.Route("/trending", func(r chi.Router) {
		r.Get("/", h.GetView)
		r.Get("/ws", h.Live)
		r.Group(func(r chi.Router) {
			if opts.MutationsPerMinute > 0 {
				r.Use(httprate.LimitByIP(opts.MutationsPerMinute, time.Minute))
			}
			r.Post("/radius", h.SetRadius)
			r.Post("/limit", h.SetLimit)
			r.Post("/page", h.GoToPage)
			r.Post("/refresh", h.Refresh)
			r.Post("/relocate", h.Relocate)
		})
	})
	return r
}
