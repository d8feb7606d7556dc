package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/forum"
	"github.com/forumgate/forumgate/internal/handler"
	"github.com/forumgate/forumgate/internal/openapi"
	"github.com/forumgate/forumgate/internal/server/middleware"
	"github.com/forumgate/forumgate/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RatePerMinute   int
	TrustedProxies  []string
	JWTTTL          time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		RatePerMinute:   120,
		JWTTTL:          24 * time.Hour,
	}
}

// Server is the top-level HTTP server. It owns the chi router, the gateway
// state store, the board database connection and the services behind the
// endpoints.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	board      forum.Forum
	auth       *service.Authorizer
	users      *service.UserService
	keys       *service.KeyService
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires up all routes and middleware and returns a server ready to
// listen.
func New(cfg Config, store *config.Store, board forum.Forum, auth *service.Authorizer, users *service.UserService, keys *service.KeyService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		board:  board,
		auth:   auth,
		users:  users,
		keys:   keys,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(middleware.NewClientIPExtractor(s.cfg.TrustedProxies)))
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(openapi.Build()).Serve)

	// --- Gated user endpoints ---
	// Every request resolves its bearer token; handlers answer 404 when the
	// key lacks the permission, so the routes look like they do not exist.
	r.Route("/api/users", func(r chi.Router) {
		if s.cfg.RatePerMinute > 0 {
			r.Use(middleware.RateLimit(s.cfg.RatePerMinute))
		}
		r.Use(middleware.Resolve(s.auth))

		usersHandler := handler.NewUsersHandler(s.users)
		r.Post("/register", usersHandler.Register)
		r.Post("/login", usersHandler.Login)
	})

	// --- Admin surface ---
	r.Route("/api/v1/system", func(r chi.Router) {
		sysHandler := handler.NewSystemHandler(s.store, s.auth, s.keys, s.cfg.JWTTTL)

		// Session endpoints: login is unauthenticated, logout stateless.
		r.Post("/session", sysHandler.Login)
		r.Delete("/session", sysHandler.Logout)

		// Key management: admin sessions or keys with the manage permission.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Resolve(s.auth))
			r.Use(middleware.RequireManage())

			r.Get("/keys", sysHandler.ListKeys)
			r.Post("/keys", sysHandler.CreateKey)
			r.Delete("/keys/{keyID}", sysHandler.DeleteKey)
		})

		// Admin accounts and the audit log: admin sessions only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Resolve(s.auth))
			r.Use(middleware.RequireAdmin())

			r.Get("/admins", sysHandler.ListAdmins)
			r.Post("/admins", sysHandler.CreateAdmin)
			r.Get("/audit", sysHandler.Audit)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports 200 when both the gateway store and the board
// database answer pings, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
	} else {
		checks["store"] = "ok"
	}

	if s.board != nil {
		if err := s.board.Ping(r.Context()); err != nil {
			checks["forum"] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks["forum"] = "ok"
		}
	}

	httpStatus := http.StatusOK
	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the server and blocks until SIGINT or SIGTERM, then
// drains in-flight requests and closes the database connections.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	if s.board != nil {
		s.board.Disconnect()
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
