package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/handler"
	"github.com/pterodactyl/panel/internal/server/middleware"
	"github.com/pterodactyl/panel/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RemoteRateLimit int   // daemon callbacks per minute per node token
	LoginRateLimit  int   // login attempts per minute per IP
	SessionTTL      time.Duration
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20, // 1MB
		RemoteRateLimit: 600,
		LoginRateLimit:  30,
		SessionTTL:      service.DefaultSessionTTL,
		Version:         "dev",
	}
}

// Deps are the components the HTTP layer dispatches to.
type Deps struct {
	Store    *config.Store
	Auth     *service.AuthService
	Provider handler.KeyProvider
	Revoker  handler.KeyRevoker
	Users    *service.UserService
	Nodes    *service.NodeService
	Servers  *service.ServerService
	Subusers *service.SubuserService
}

// Server is the top-level HTTP server for the panel.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	health := handler.NewHealthHandler(s.deps.Store, s.cfg.Version)
	sessions := handler.NewSessionHandler(s.deps.Auth, s.cfg.SessionTTL)
	keys := handler.NewDaemonKeyHandler(s.deps.Store, s.deps.Provider, s.deps.Revoker)
	admin := handler.NewAdminHandler(s.deps.Store, s.deps.Users, s.deps.Nodes, s.deps.Servers, s.deps.Subusers)

	// --- Health checks (no auth required) ---
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// --- Panel API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(s.cfg.LoginRateLimit)).Post("/session", sessions.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.Auth))

			r.Get("/servers/{serverID}/daemon-key", keys.GetKey)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Get("/users", admin.ListUsers)
				r.Post("/users", admin.CreateUser)
				r.Delete("/users/{userID}", admin.DeleteUser)
				r.Delete("/users/{userID}/daemon-keys", keys.RevokeUserKeys)

				r.Get("/nodes", admin.ListNodes)
				r.Post("/nodes", admin.CreateNode)

				r.Get("/servers", admin.ListServers)
				r.Post("/servers", admin.CreateServer)
				r.Delete("/servers/{serverID}", admin.DeleteServer)
				r.Get("/servers/{serverID}/subusers", admin.ListSubusers)
				r.Post("/servers/{serverID}/subusers", admin.AddSubuser)

				r.Delete("/subusers/{subuserID}", admin.RemoveSubuser)
			})
		})
	})

	// --- Daemon callbacks ---
	r.Route("/api/remote", func(r chi.Router) {
		r.Use(middleware.RateLimitByNode(s.cfg.RemoteRateLimit))
		r.Use(middleware.AuthenticateNode(s.deps.Auth))

		r.Get("/keys/{secret}", keys.RemoteLookup)
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
