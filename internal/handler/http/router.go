package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wbuist/mgu-api-integration/internal/repository"
	"github.com/wbuist/mgu-api-integration/internal/service"
	"github.com/wbuist/mgu-api-integration/pkg/health"
	"github.com/wbuist/mgu-api-integration/pkg/middleware"
)

// RouterConfig bundles the cross-cutting knobs the router needs.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	PprofCIDRs []string
}

// NewRouter creates a chi router with all quote-flow routes registered.
func NewRouter(
	flowService *service.FlowService,
	sessions repository.SessionStore,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("quoteflow"))
	r.Use(middleware.Tracing("quoteflow"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	flowHandler := NewFlowHandler(flowService, sessions, logger)

	r.Route("/api/v1/flow", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Session issuance is the only unauthenticated flow endpoint.
		r.Post("/session", flowHandler.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(SessionAuth(sessions, logger))
			r.Post("/{action}", flowHandler.Dispatch)
		})
	})

	return r
}
