package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	// Registers the OpenAPI document served at /swagger.json.
	_ "github.com/jackzampolin/radreport/docs"
	"github.com/jackzampolin/radreport/internal/api"
	"github.com/jackzampolin/radreport/internal/config"
	"github.com/jackzampolin/radreport/internal/dialogue"
	"github.com/jackzampolin/radreport/internal/home"
	"github.com/jackzampolin/radreport/internal/llmcall"
	"github.com/jackzampolin/radreport/internal/prompts"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/retry"
	"github.com/jackzampolin/radreport/internal/server/endpoints"
	"github.com/jackzampolin/radreport/internal/structurer"
	"github.com/jackzampolin/radreport/internal/svcctx"
	"github.com/jackzampolin/radreport/internal/templates"
)

// Server is the radreport HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	registry   *providers.Registry
	structurer *structurer.Service
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080, "0" picks a free port)
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// Nil uses config.DefaultConfig().
	ConfigManager *config.Manager
	// Catalog is the template catalog (required)
	Catalog *templates.Catalog
	// Registry overrides the provider registry built from config (tests)
	Registry *providers.Registry
	// Home is the radreport home directory (optional)
	Home *home.Dir
	// CallHistory is the number of LLM calls kept in memory
	CallHistory int
	// DryRun answers every model call locally
	DryRun bool
	// Timer replaces the retry clock (tests)
	Timer retry.Timer
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("server: template catalog is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	current := func() *config.Config { return config.DefaultConfig() }
	if cfg.ConfigManager != nil {
		current = cfg.ConfigManager.Get
	}

	// Create provider registry
	registry := cfg.Registry
	if registry == nil {
		registry = providers.NewRegistry()
		registry.SetLogger(cfg.Logger)
		registry.Reload(current().ToProviderRegistryConfig())

		if cfg.ConfigManager != nil {
			// Watch for config changes
			cfg.ConfigManager.OnChange(func(c *config.Config) {
				registry.Reload(c.ToProviderRegistryConfig())
				cfg.Logger.Info("provider registry reloaded from config")
			})
		}
	}

	callStore := llmcall.NewStore(cfg.CallHistory)

	svc, err := structurer.New(structurer.Options{
		Config:   current,
		Registry: registry,
		Catalog:  cfg.Catalog,
		Recorder: llmcall.NewRecorder(callStore),
		Logger:   cfg.Logger,
		DryRun:   cfg.DryRun,
		Timer:    cfg.Timer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create structurer: %w", err)
	}

	promptRegistry := prompts.NewRegistry(cfg.Logger)
	dialogue.RegisterPrompts(promptRegistry)

	s := &Server{
		registry:   registry,
		structurer: svc,
		configMgr:  cfg.ConfigManager,
		logger:     cfg.Logger,
		services: &svcctx.Services{
			Structurer:   svc,
			Registry:     registry,
			Catalog:      cfg.Catalog,
			Prompts:      promptRegistry,
			Config:       cfg.ConfigManager,
			Logger:       cfg.Logger,
			Home:         cfg.Home,
			LLMCallStore: callStore,
		},
	}

	s.endpointRegistry = api.NewRegistry(endpoints.All()...)
	mux := http.NewServeMux()
	s.endpointRegistry.Mount(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(current()),
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// writeTimeout covers a dialogue that exhausts its retries: each attempt
// makes two calls that may each run to the slowest provider timeout, and
// each is followed by the retry delay.
func writeTimeout(cfg *config.Config) time.Duration {
	attempts := cfg.Retry.MaxAttempts
	if attempts == 0 {
		attempts = retry.DefaultMaxAttempts
	}
	call := providers.DefaultTimeout
	for _, p := range cfg.LLMProviders {
		call = max(call, p.Timeout)
	}
	return time.Duration(attempts)*(2*call+cfg.Retry.Delay) + time.Minute
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if !s.structurer.Ready() {
		s.logger.Warn("no LLM client available; report endpoints return 503 until one is configured",
			"provider", s.structurer.ProviderName())
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "templates", s.services.Catalog.Len())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
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

// Addr returns the server's listen address. Once started it is the
// bound address, so a "0" port resolves to the chosen one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Services returns the services shared with endpoints.
func (s *Server) Services() *svcctx.Services {
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures an LLM client is available.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.structurer.Ready() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"no LLM provider configured"}`))
			return
		}
		next(w, r)
	}
}
