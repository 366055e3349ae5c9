// Package httpapi wires the search proxy's stable v1 HTTP contract (spec
// §6) onto a go-chi/chi/v5 router, paired with go-chi/cors the way the
// pack's erigon repo carries that combination. Every handler funnels its
// errors through writeError, the single point that maps apierrors.Kind to
// an HTTP status (spec §7: "the orchestrator is the sole component that
// maps kinds to HTTP status" — here, the layer immediately downstream).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thaiproxy/searchproxy/internal/config"
	"github.com/thaiproxy/searchproxy/internal/dictionary"
	"github.com/thaiproxy/searchproxy/internal/metrics"
	"github.com/thaiproxy/searchproxy/internal/proxy"
	"github.com/thaiproxy/searchproxy/internal/telemetry"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
)

// Server holds every dependency the HTTP surface needs to serve requests.
type Server struct {
	cfg    *config.Config
	tok    *tokenizer.Tokenizer
	proxy  *proxy.Proxy
	dict   *dictionary.Store
	health *HealthChecker
	mx     *metrics.Registry
	qm     *telemetry.QueryMetrics

	router chi.Router
}

// New builds a Server and wires its router. The returned Server's Router
// method is an http.Handler ready to pass to http.Server.
func New(cfg *config.Config, tok *tokenizer.Tokenizer, p *proxy.Proxy, dict *dictionary.Store, health *HealthChecker, mx *metrics.Registry) *Server {
	s := &Server{cfg: cfg, tok: tok, proxy: p, dict: dict, health: health, mx: mx}
	s.router = s.buildRouter()
	return s
}

// Router returns the http.Handler serving every endpoint in spec §6.
func (s *Server) Router() http.Handler {
	return s.router
}

// SetQueryMetrics attaches a telemetry.QueryMetrics that every search
// request is recorded against (spec §4.J). Omitted, no query-level
// telemetry is collected beyond the plain counters in HealthChecker.
func (s *Server) SetQueryMetrics(qm *telemetry.QueryMetrics) {
	s.qm = qm
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(s.cfg.Server.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleHealthDetailed)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(s.requireAPIKey)

		api.Route("/api/v1", func(v1 chi.Router) {
			v1.Post("/tokenize", s.handleTokenize)
			v1.Post("/tokenize/compound", s.handleTokenizeCompound)
			v1.Post("/search", s.handleSearch)
			v1.Post("/batch-search", s.handleBatchSearch)

			v1.Get("/compounds", s.handleListCompounds)
			v1.Post("/compounds", s.handleCreateCompound)
			v1.Put("/compounds/{surface}", s.handleUpdateCompound)
			v1.Delete("/compounds/{surface}", s.handleDeleteCompound)
		})
	})

	return r
}

func corsOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

// requireAPIKey enforces spec §6's minimum auth hook: when
// Auth.Required is set, reject requests missing a matching X-API-Key.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Required {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.cfg.Auth.APIKey {
			writeError(w, unauthorized("missing or invalid X-API-Key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
