// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects the store, the auth
// manager, handlers, middleware, and routes. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and hands it to New, which creates:
//
//	sqlstore.DB → service.Manager (+ password policy, OAuth verifiers, metrics)
//	            → handler.AuthHandler → routes
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/authcore/internal/auth"
	"github.com/sakif/authcore/internal/config"
	"github.com/sakif/authcore/internal/handler"
	"github.com/sakif/authcore/internal/metrics"
	"github.com/sakif/authcore/internal/middleware"
	"github.com/sakif/authcore/internal/oauth"
	"github.com/sakif/authcore/internal/repository/sqlstore"
	"github.com/sakif/authcore/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine. Close releases both; Start calls it during graceful shutdown.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqlstore.DB
	manager  *service.Manager
	github   *oauth.GitHubVerifier
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
	metrics  *metrics.Collector
	cancel   context.CancelFunc
}

// New opens (and migrates) the database described by cfg and wires every
// route. Background work (the Google key refresh) lives until Close.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	manager, github, err := NewManager(ctx, cfg, db, logger, service.WithRecorder(collector))
	if err != nil {
		cancel()
		db.Close()
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		manager:  manager,
		github:   github,
		registry: registry,
		metrics:  collector,
		cancel:   cancel,
		limiter: middleware.NewRateLimiter(
			middleware.LoginRateLimiterConfig(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
			logger, collector),
	}
	s.setupRoutes()

	return s, nil
}

// NewManager builds the authentication manager for cfg over db and
// registers the OAuth verifiers cfg enables. The GitHub verifier is also
// returned (nil when GitHub is not configured) because the browser flow
// needs its authorization URL.
//
// The Google key set refreshes in the background until ctx is done.
func NewManager(ctx context.Context, cfg config.Config, db *sqlstore.DB, logger *slog.Logger, opts ...service.Option) (*service.Manager, *oauth.GitHubVerifier, error) {
	passwords := auth.NewPasswordPolicy(cfg.Auth.BcryptCost, cfg.Auth.MinStrength, auth.ZxcvbnScorer{})

	opts = append([]service.Option{service.WithSessionDaysValid(cfg.Auth.SessionDaysValid)}, opts...)
	manager := service.NewManager(db, passwords, logger, opts...)

	var github *oauth.GitHubVerifier
	if cfg.GitHub.ClientID != "" {
		github = oauth.NewGitHubVerifier(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHubCallbackURL())
		if err := manager.RegisterVerifier(github); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Google.ClientID != "" {
		keys, err := oauth.NewGoogleKeyfunc(ctx, cfg.Google.CertsURL)
		if err != nil {
			return nil, nil, err
		}
		if err := manager.RegisterVerifier(oauth.NewGoogleVerifier(cfg.Google.ClientID, keys)); err != nil {
			return nil, nil, err
		}
	}

	logger.Info("auth manager ready",
		slog.Int("sessionDaysValid", cfg.Auth.SessionDaysValid),
		slog.Any("providers", manager.Providers()),
	)
	return manager, github, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                → store liveness
// GET    /metrics                → Prometheus scrape endpoint
// POST   /api/users              → register (rate limited)
// POST   /api/login              → password login (rate limited)
// GET    /api/oauth/providers    → configured providers
// POST   /api/oauth/{provider}   → login with a provider assertion (rate limited)
// GET    /auth/github/login      → redirect to GitHub
// GET    /auth/github/callback   → finish GitHub login (rate limited)
// GET    /api/me                 → current user            [auth]
// POST   /api/logout             → expire current session  [auth]
// POST   /api/logout/all         → expire all sessions     [auth]
// GET    /api/sessions           → list own sessions       [auth]
// PUT    /api/me/password        → change password         [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: only with TRUST_PROXY_HEADERS; rewrites RemoteAddr from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request and feeds the HTTP metrics
//
// The rate limiter keys on RemoteAddr. Without a trusted proxy in front,
// X-Forwarded-For is whatever the client sent, so RealIP would let a client
// pick a fresh key for every request.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxyHeaders {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger, s.metrics))

	// A nil *GitHubVerifier must not become a non-nil interface.
	var github handler.AuthURLer
	if s.github != nil {
		github = s.github
	}

	authHandler := handler.NewAuthHandler(s.manager, github, handler.OauthPolicy{
		AllowCreate: s.config.Auth.AllowCreate,
		AllowExpand: s.config.Auth.AllowExpand,
	}, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	tokens := auth.NewTokenExtractor(s.config.Auth.SessionHeader, s.config.Auth.SessionParam)
	requireAuth := auth.RequireAuth(tokens, s.manager.SessionUser, s.logger)
	limited := s.limiter.Middleware

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	s.router.Route("/api", func(r chi.Router) {
		r.With(limited).Post("/users", authHandler.HandleRegister)
		r.With(limited).Post("/login", authHandler.HandleLogin)
		r.Get("/oauth/providers", authHandler.HandleProviders)
		r.With(limited).Post("/oauth/{provider}", authHandler.HandleOauthLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Put("/me/password", authHandler.HandleChangePassword)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/logout/all", authHandler.HandleLogoutAll)
			r.Get("/sessions", authHandler.HandleSessions)
		})
	})

	s.router.Route("/auth/github", func(r chi.Router) {
		r.Get("/login", authHandler.HandleGitHubLogin)
		r.With(limited).Get("/callback", authHandler.HandleGitHubCallback)
	})
}

// Handler returns the fully wired router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	s.cancel()
	s.limiter.Stop()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("dbDriver", s.db.Driver()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
