package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"stickforstats/internal/audit"
	"stickforstats/internal/config"
	"stickforstats/internal/exporter"
	"stickforstats/internal/guardian"
	"stickforstats/internal/infrastructure"
	customMiddleware "stickforstats/internal/middleware"
	"stickforstats/internal/operations"
	"stickforstats/internal/services"
	handlers "stickforstats/internal/transport/http"
	ws "stickforstats/internal/websocket"
	"stickforstats/internal/workflow"
)

const (
	VERSION = "1.0.0"
	AppName = "StickForStats"
)

var (
	// BuildTime and BuildID are set at compile time via ldflags.
	BuildTime = ""
	BuildID   = ""
)

// Application is the dependency container: configuration, stores,
// services, handlers, and the HTTP server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	AuditStore    audit.Store
	Checker       *guardian.Checker
	WebSocketHub  *ws.Hub
	JobQueue      *operations.JobQueue
	WorkflowStore *workflow.Store

	StatsService      *services.StatsService
	AuditService      *services.AuditService
	OperationsService *services.OperationsService
	HealthService     *services.HealthService

	// cancelBackground stops the sweeper and queue workers.
	cancelBackground context.CancelFunc
}

// NewApplication wires the full dependency graph from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires the application from an explicit
// configuration, used by tests and the CLI.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices builds the stores and services in dependency order.
func (a *Application) initializeServices() error {
	store, err := audit.NewSQLiteStore(a.Config.Paths.AuditDBPath)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	a.AuditStore = store

	checker := guardian.NewChecker()
	checker.Alpha = a.Config.Guardian.Alpha
	checker.MinSample = a.Config.Guardian.MinSample
	a.Checker = checker

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	a.StatsService = services.NewStatsService(checker, store, a.Metrics,
		a.Config.Guardian.StrictMode, a.Logger)
	a.AuditService = services.NewAuditService(store, exporter.New(a.Logger), a.Logger)

	queue := operations.NewJobQueue(a.Config.Operations.Workers, operations.NewMemoryJobStore(), a.Logger)
	queue.SetBackoffBase(a.Config.Operations.BackoffBase)
	queue.SetProgressSink(ws.NewProgressBroadcaster(hub))
	a.JobQueue = queue
	a.OperationsService = services.NewOperationsService(queue, a.StatsService, a.Logger)

	a.WorkflowStore = workflow.NewStore(a.Config.Workflow.SessionTTL, a.Logger)

	a.HealthService = services.NewHealthService(VERSION, BuildTime, BuildID,
		a.Config.Paths, store, queue, hub, a.WorkflowStore, a.Logger)

	// Background goroutines: queue workers and the session sweeper.
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelBackground = cancel
	queue.Start(ctx)
	a.WorkflowStore.StartSweeper(ctx, a.Config.Workflow.SweepInterval)

	return nil
}

// setupRouter assembles the middleware chain and mounts the handlers.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	// The websocket route skips the response-wrapping middleware; the
	// upgrader needs the raw ResponseWriter.
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Logger)
	r.Handle("/ws", wsHandler)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.HTTPMetrics(a.Metrics))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.Config.Security.AllowedOrigins))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes mounts the REST endpoints.
func (a *Application) setupAPIRoutes(r chi.Router) {
	statsHandler := handlers.NewStatsHandler(a.StatsService, a.Logger)
	guardianHandler := handlers.NewGuardianHandler(a.StatsService, a.Logger)
	auditHandler := handlers.NewAuditHandler(a.AuditService, a.Logger)
	workflowHandler := handlers.NewWorkflowHandler(a.WorkflowStore, a.Logger)
	operationsHandler := handlers.NewOperationsHandler(a.OperationsService, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Mount("/guardian", guardianHandler.Routes())

		r.Route("/v1", func(r chi.Router) {
			r.Mount("/stats", statsHandler.Routes())
			r.Mount("/nonparametric", statsHandler.NonparametricRoutes())
			r.Mount("/categorical", statsHandler.CategoricalRoutes())
			r.Mount("/survival", statsHandler.SurvivalRoutes())
			r.Mount("/sqc", statsHandler.SQCRoutes())
			r.Mount("/audit", auditHandler.Routes())
			r.Mount("/workflow", workflowHandler.Routes())
			r.Mount("/operations", operationsHandler.Routes())
			r.Get("/export/audit", auditHandler.Export)
		})
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the HTTP server. Server errors cancel the context so
// Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("strict_guardian", a.Config.Guardian.StrictMode))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return nil
}

// Stop shuts everything down in reverse dependency order.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.JobQueue != nil {
		if err := a.JobQueue.Stop(30 * time.Second); err != nil {
			a.Logger.ErrorContext(ctx, "failed to stop job queue gracefully",
				slog.String("error", err.Error()))
		}
	}
	if a.cancelBackground != nil {
		a.cancelBackground()
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.AuditStore != nil {
		if err := a.AuditStore.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "failed to close audit store",
				slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
