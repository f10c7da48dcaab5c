package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/CodePrep/backend/internal/api/http"
	"github.com/GriffinCanCode/CodePrep/backend/internal/api/middleware"
	"github.com/GriffinCanCode/CodePrep/backend/internal/api/ws"
	"github.com/GriffinCanCode/CodePrep/backend/internal/catalog"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/progress"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
	"github.com/GriffinCanCode/CodePrep/backend/internal/tutor"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	http        *http.Server
	pool        *sandbox.Pool
	playgrounds *playground.Manager
	progress    progress.Store
	tracer      *tracing.Tracer
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// Option customises a server before it is wired
type Option func(*options)

type options struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// WithLogger replaces the logger built from the logging config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics replaces the metrics registry
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}
	logger.Info("Initializing CodePrep server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("sandbox_timeout", cfg.Sandbox.Timeout),
		zap.Duration("async_timeout", cfg.Sandbox.AsyncTimeout),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent),
	)

	metrics := o.metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	tracer := tracing.New("codeprep", logger)

	cat := catalog.Default()
	if cfg.Catalog.Dir != "" {
		loaded, err := catalog.Load(cfg.Catalog.Dir)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		cat = loaded
	}
	logger.Info("Catalog loaded", zap.Int("paths", len(cat.Paths())))

	store, err := progress.New(cfg.Progress)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}
	logger.Info("Progress store ready", zap.String("backend", cfg.Progress.Backend))

	tutorClient := tutor.New(cfg.Tutor, logger, tutor.WithMetrics(metrics))
	if !tutorClient.Configured() {
		logger.Warn("Tutor API key not set, tutoring requests will fail")
	}

	pool := sandbox.NewPool(sandbox.Config{
		Timeout:          cfg.Sandbox.Timeout,
		AsyncTimeout:     cfg.Sandbox.AsyncTimeout,
		MaxCallStackSize: cfg.Sandbox.MaxCallStackSize,
		MaxOutputRecords: cfg.Sandbox.MaxOutputRecords,
	}, cfg.Sandbox.MaxConcurrent)

	playgrounds := playground.NewManager(cfg.Playground.MaxInstances, logger, metrics,
		playground.WithExecutor(pool),
		playground.WithMaxOutput(cfg.Sandbox.MaxOutputRecords),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.AccessLog(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := api.NewHandlers(api.Deps{
		Playgrounds: playgrounds,
		Catalog:     cat,
		Progress:    store,
		Tutor:       tutorClient,
		Metrics:     metrics,
		Tracer:      tracer,
		Logger:      logger,
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(playgrounds, metrics, logger)
	router.GET("/playgrounds/:id/stream", wsHandler.HandleStream)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
		pool:        pool,
		playgrounds: playgrounds,
		progress:    store,
		tracer:      tracer,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then releases every playground and
// the stores behind them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	s.playgrounds.Close()
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sandbox pool: %w", err))
	}
	if err := s.progress.Close(); err != nil {
		s.logger.Error("Failed to close progress store", zap.Error(err))
		errs = append(errs, fmt.Errorf("progress store: %w", err))
	}
	s.tracer.Close()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
