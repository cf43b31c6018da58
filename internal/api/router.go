// Package api serves a browsing session over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/browser"
	"github.com/Sternrassler/catalog-sync/pkg/detail"
	"github.com/Sternrassler/catalog-sync/pkg/metrics"
	"github.com/Sternrassler/catalog-sync/pkg/scroll"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins for CORS. Defaults to localhost on any port.
	AllowedOrigins []string

	// RequestTimeout bounds handlers that wait on the catalog.
	RequestTimeout time.Duration
}

// Server holds the HTTP server dependencies.
type Server struct {
	session  *browser.Session
	observer *scroll.ManualObserver
	details  *detail.Fetcher
	opts     Options
	router   chi.Router
	logger   zerolog.Logger
}

// New creates a server for session. observer must be the observer the
// session was created with; sentinel reports are fed into it.
func New(session *browser.Session, observer *scroll.ManualObserver, details *detail.Fetcher, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		session:  session,
		observer: observer,
		details:  details,
		opts:     opts,
		router:   chi.NewRouter(),
		logger:   log.With().Str("component", "api").Str("session_id", session.ID()).Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Browsing
		r.Get("/view", s.handleGetView)
		r.Get("/status", s.handleGetStatus)
		r.Get("/facets", s.handleGetFacets)
		r.Post("/sentinel", s.handleSentinel)
		r.Post("/retry", s.handleRetry)

		// Page size
		r.Get("/page-sizes", s.handleGetPageSizes)
		r.Put("/page-size", s.handleSetPageSize)

		// Detail
		r.Get("/records/{idOrName}", s.handleGetRecord)
	})

	s.router.Handle("/metrics", metrics.Handler())

	// Health check
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status_code", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
