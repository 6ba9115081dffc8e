// Package web serves the annotated region map, per-region summaries and
// reload controls over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/regionmap/internal/config"
	"github.com/JonMunkholm/regionmap/internal/core"
	mw "github.com/JonMunkholm/regionmap/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front end over a core.Service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	readLimiter   *ipRateLimiter
	reloadLimiter *ipRateLimiter
}

// NewServer wires middleware and routes. Call Shutdown to stop background
// limiter cleanup even if Start was never called.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.readLimiter = newIPRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.reloadLimiter = newIPRateLimiter(cfg.Rate.ReloadLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json", "application/geo+json", "text/html", "text/plain"))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.readLimiter != nil {
				r.Use(s.readLimiter.middleware)
			}
			r.Get("/regions", s.handleRegions)
			r.Get("/regions/{region}", s.handleRegion)
			r.Get("/regions/{region}/summary", s.handleSummary)
			r.Get("/categories", s.handleCategories)
			r.Get("/legend", s.handleLegend)
			r.Get("/snapshot", s.handleSnapshot)
		})

		r.Group(func(r chi.Router) {
			if s.reloadLimiter != nil {
				r.Use(s.reloadLimiter.middleware)
			}
			r.Use(mw.APIKeyAuth(s.cfg.Security.ReloadAPIKeys))
			r.Post("/reload", s.handleReload)
		})
	})
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the limiter cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.readLimiter.stop()
	s.reloadLimiter.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to every response.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
