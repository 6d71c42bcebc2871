package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maze-wars/internal/match"
)

// StatsSource is the read-only view of the running match the HTTP surface
// exposes. The controller publishes it atomically each tick, so handlers
// never touch live match state.
type StatsSource interface {
	Stats() match.Stats
}

// Server is the HTTP side of the match server: the websocket upgrade
// endpoint plus health, stats and prometheus metrics.
type Server struct {
	hub         *Hub
	stats       StatsSource
	router      *chi.Mux
	rateLimiter *IPRateLimiter
}

// ServerOptions tunes the HTTP surface.
type ServerOptions struct {
	// RateLimitConfig overrides the default per-IP HTTP rate limit.
	// Tests raise it so httptest clients aren't throttled.
	RateLimitConfig *RateLimitConfig

	// DisableLogging drops the request logger middleware.
	DisableLogging bool
}

// NewServer builds the router. No goroutines start and no ports open until
// Start is called, so tests can construct a Server and use Router() freely.
func NewServer(hub *Hub, stats StatsSource, opts ServerOptions) *Server {
	rlCfg := DefaultRateLimitConfig
	if opts.RateLimitConfig != nil {
		rlCfg = *opts.RateLimitConfig
	}

	s := &Server{
		hub:         hub,
		stats:       stats,
		rateLimiter: NewIPRateLimiter(rlCfg),
	}

	r := chi.NewRouter()
	if !opts.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware)
		r.Get("/healthz", s.handleHealthz)
		r.Get("/stats", s.handleStats)
	})

	r.Handle("/metrics", promhttp.Handler())

	// The websocket upgrade skips the HTTP rate limiter; the hub enforces
	// its own per-IP session limits.
	r.Get("/ws", hub.HandleWS)

	s.router = r
	return s
}

// Router returns the HTTP handler, for httptest in integration tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP on addr. Blocks until the listener fails.
func (s *Server) Start(addr string) error {
	log.Printf("🌐 HTTP surface listening on %s (ws endpoint: /ws)", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	writeJSON(w, map[string]interface{}{
		"match":     stats,
		"sessions":  s.hub.SessionCount(),
		"rateLimit": s.rateLimiter.GetStats(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
