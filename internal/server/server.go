package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/config"
	"github.com/jackzampolin/itihasa/internal/dbcontainer"
	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/llmcall"
	"github.com/jackzampolin/itihasa/internal/prompts"
	"github.com/jackzampolin/itihasa/internal/providers"
	"github.com/jackzampolin/itihasa/internal/server/endpoints"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/svcctx"
)

// Server is the quiz API server.
// It opens the quiz store on start and closes it on shutdown.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	openStore  func(ctx context.Context) (store.Store, error)
	logger     *slog.Logger

	// services holds all core services for context enrichment.
	// Store stays nil until the store is open.
	services atomic.Pointer[svcctx.Services]
	ownStore bool

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string

	// Store is an already open quiz store. When nil, OpenStore is called
	// by Start and the store is closed on shutdown.
	Store     store.Store
	OpenStore func(ctx context.Context) (store.Store, error)

	// Container is reported by /status when the store runs in the local
	// development container.
	Container *dbcontainer.Manager

	Home     *home.Dir
	LLMCalls *llmcall.Store
	Prompts  *prompts.Resolver

	DeepDiveCacheSize int
	DeepDiveCacheTTL  time.Duration
	SwaggerSpecPath   string

	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil && cfg.OpenStore == nil {
		return nil, errors.New("server requires a store or a way to open one")
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		openStore: cfg.OpenStore,
		logger:    cfg.Logger,
	}
	s.services.Store(&svcctx.Services{
		Store:        cfg.Store,
		Registry:     registry,
		Logger:       cfg.Logger,
		Home:         cfg.Home,
		LLMCallStore: cfg.LLMCalls,
		Prompts:      cfg.Prompts,
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Container:         cfg.Container,
		DeepDiveCacheSize: cfg.DeepDiveCacheSize,
		DeepDiveCacheTTL:  cfg.DeepDiveCacheTTL,
		SwaggerSpecPath:   cfg.SwaggerSpecPath,
	}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireStore)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store if needed and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.services.Load().Store == nil {
		s.logger.Info("opening quiz store")
		st, err := s.openStore(ctx)
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to open store: %w", err)
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			s.setNotRunning()
			return fmt.Errorf("store health check failed: %w", err)
		}
		next := *s.services.Load()
		next.Store = st
		s.services.Store(&next)
		s.ownStore = true
		s.logger.Info("quiz store is ready")
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server and closes a store opened by Start.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.ownStore {
		svc := s.services.Load()
		if err := svc.Store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
		next := *svc
		next.Store = nil
		s.services.Store(&next)
		s.ownStore = false
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the root handler with services attached.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services.Load())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireStore is middleware that answers 503 until the store is open.
func (s *Server) requireStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.StoreFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"quiz store not ready"}`))
			return
		}
		next(w, r)
	}
}
