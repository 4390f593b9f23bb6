// Package server wires every domain's HTTP handler package, the auth
// gatekeeper, and the reference-data cache into a single chi router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	aicategorizationhandlers "github.com/adrianvollmer/solvency/internal/aicategorization/handlers"
	"github.com/adrianvollmer/solvency/internal/auth"
	"github.com/adrianvollmer/solvency/internal/cache"
	"github.com/adrianvollmer/solvency/internal/database"
	importinghandlers "github.com/adrianvollmer/solvency/internal/importing/handlers"
	ledgerhandlers "github.com/adrianvollmer/solvency/internal/ledger/handlers"
	portfoliohandlers "github.com/adrianvollmer/solvency/internal/portfolio/handlers"
	settingshandlers "github.com/adrianvollmer/solvency/internal/settings/handlers"
)

// Config holds everything Server needs to build its router. A single
// embedded database backs every handler (spec.md §4.1), unlike the
// teacher's seven-database DI container.
type Config struct {
	Log        zerolog.Logger
	DB         *database.DB
	Port       int
	Gatekeeper *auth.Gatekeeper
	Cache      *cache.Cache

	Ledger           *ledgerhandlers.Handler
	Portfolio        *portfoliohandlers.Handler
	Importing        *importinghandlers.Handler
	AICategorization *aicategorizationhandlers.Handler
	Settings         *settingshandlers.Handler
}

// Server is the HTTP server: one chi router, one *http.Server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
}

// New builds the router and wraps it in an *http.Server; call Start to
// begin serving.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		db:     cfg.DB,
	}

	s.setupMiddleware(cfg.Gatekeeper, cfg.Cache)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware mirrors aristath-sentinel's setupMiddleware ordering
// (Recoverer, RequestID, RealIP, logging, Timeout, CORS), inserting the
// session gate, the XSRF check, and the mutation-aware cache-invalidation
// middleware (§4.12) between logging and the route tree.
func (s *Server) setupMiddleware(gatekeeper *auth.Gatekeeper, c *cache.Cache) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.XSRFHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(gatekeeper.RequireSession)
	s.router.Use(auth.Middleware(gatekeeper.XSRF))
	s.router.Use(cacheInvalidationMiddleware(c))
}

// setupRoutes mounts /health and /login /logout as public routes, then
// every domain handler package's RegisterRoutes under /api.
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/login", cfg.Gatekeeper.LoginHandler)
	s.router.Post("/logout", cfg.Gatekeeper.LogoutHandler)

	s.router.Route("/api", func(r chi.Router) {
		cfg.Ledger.RegisterRoutes(r)
		cfg.Portfolio.RegisterRoutes(r)
		cfg.Importing.RegisterRoutes(r)
		cfg.AICategorization.RegisterRoutes(r)
		cfg.Settings.RegisterRoutes(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.db.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start begins serving; it blocks until the listener is closed.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs method, path, status, bytes written, and duration
// for every request, grounded on aristath-sentinel's loggingMiddleware.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
