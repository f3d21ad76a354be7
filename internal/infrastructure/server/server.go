package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/modhost/internal/api/http"
	"github.com/GriffinCanCode/modhost/internal/api/middleware"
	"github.com/GriffinCanCode/modhost/internal/api/ws"
	"github.com/GriffinCanCode/modhost/internal/domain/host"
	"github.com/GriffinCanCode/modhost/internal/domain/registry"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	httpclient "github.com/GriffinCanCode/modhost/internal/providers/http/client"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *registry.Manager
	host     *host.Host
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing module host",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Dir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	client := httpclient.NewClient(httpclient.Options{
		Timeout:   cfg.Fetch.Timeout.Std(),
		Retries:   cfg.Fetch.Retries,
		RPS:       cfg.Fetch.RPS,
		UserAgent: cfg.Fetch.UserAgent,
	})

	ctx := context.Background()

	storage := registry.NewStorage(cfg.Storage.Dir)
	manager := registry.NewManager(storage, client, logger.Named("registry"), registry.WithMetrics(metrics))
	if err := manager.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize module registry: %w", err)
	}
	if _, err := manager.Prune(); err != nil {
		logger.Warn("Failed to prune orphaned scripts", zap.Error(err))
	}

	if cfg.Storage.SeedFile != "" {
		seeder := registry.NewSeeder(manager, cfg.Storage.SeedFile, logger.Named("seeder"))
		result, err := seeder.Seed(ctx)
		if err != nil {
			logger.Warn("Failed to seed modules", zap.Error(err))
		} else {
			logger.Info("Seeded modules",
				zap.Int("installed", result.Installed),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
			)
		}
	}

	var bundle string
	if cfg.Runtime.BundlePath != "" {
		data, err := os.ReadFile(cfg.Runtime.BundlePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read support bundle: %w", err)
		}
		bundle = string(data)
	}

	moduleHost := host.New(manager, host.Config{
		Logger:      logger.Component("host"),
		Metrics:     metrics,
		Fetcher:     client,
		Output:      os.Stdout,
		LoadTimeout: cfg.Runtime.LoadTimeout.Std(),
		CallTimeout: cfg.Runtime.CallTimeout.Std(),
		Bundle:      bundle,
	})
	if err := moduleHost.Restore(ctx); err != nil {
		// a broken active module must not keep the API down
		logger.Warn("Failed to restore active module", zap.Error(err))
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := api.NewHandlers(manager, moduleHost, logger.Named("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager, metrics, logger.Named("stream"))
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry: manager,
		host:     moduleHost,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}

	if err := s.host.Close(); err != nil {
		s.logger.Error("Failed to close module host", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close module host: %w", err))
	}
	s.registry.Wait()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
