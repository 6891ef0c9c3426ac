package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promogen/internal/ai"
	"promogen/internal/config"
	"promogen/internal/errors"
	"promogen/internal/generation"
	"promogen/internal/infrastructure"
	customMiddleware "promogen/internal/middleware"
	"promogen/internal/services"
	handlers "promogen/internal/transport/http"
	ws "promogen/internal/websocket"
	"promogen/pkg/contracts"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

const (
	VERSION = contracts.Version
	AppName = "PromoGen - Promotion Asset Generator"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	// Generate a deterministic build ID based on version and time
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config            *config.Config
	Router            *chi.Mux
	Server            *http.Server
	Orchestrator      *generation.Orchestrator
	WebSocketHub      *ws.Hub
	GenerationService *services.GenerationService
	BundleService     *services.BundleService
	HealthService     *services.HealthService
	Logger            *slog.Logger
	OTelProviders     *infrastructure.OTelProviders
	SystemMetrics     *infrastructure.SystemMetricsCollector
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize single infrastructure logger
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Log startup information
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("build_id", BuildID))

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Initialize global pipeline tracer
	if err := generation.InitGlobalPipelineTracer(otelProviders); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline tracer: %w", err)
	}

	// Initialize WebSocket OpenTelemetry metrics
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	// Create application
	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	// Periodic runtime metrics feed the same meter as the business metrics
	if otelProviders.Meter != nil {
		collector, err := infrastructure.NewSystemMetricsCollector(otelProviders.Meter, 30*time.Second)
		if err != nil {
			logger.Warn("System metrics collector unavailable", slog.String("error", err.Error()))
		} else {
			app.SystemMetrics = collector
		}
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	ctx := context.Background()

	// Build the provider capability set first; everything downstream
	// depends on the orchestrator it feeds.
	sel, aiCfg := providerSetup(a.Config.Providers)
	caps, err := ai.NewCapabilities(ctx, sel, aiCfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize provider capabilities: %w", err)
	}

	// Initialize generation orchestrator
	orchestrator := generation.New(pipelineConfig(a.Config), caps, a.Logger)
	a.Orchestrator = orchestrator

	// Initialize WebSocket hub bridging orchestrator progress to clients
	hub := ws.NewHub(orchestrator, a.Logger)
	hub.Start() // Start the hub's goroutines
	a.WebSocketHub = hub

	// Initialize generation service
	generationService, err := services.NewGenerationService(orchestrator, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize generation service: %w", err)
	}
	a.GenerationService = generationService

	// Initialize bundle service for downloads
	bundleService, err := services.NewBundleService(orchestrator, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize bundle service: %w", err)
	}
	a.BundleService = bundleService

	// Initialize health service with injected logger
	a.HealthService = services.NewHealthServiceWithBuildInfo(
		VERSION,
		BuildTime,
		BuildID,
		orchestrator,
		hub,
		a.Logger,
	)

	return nil
}

// pipelineConfig maps the loaded configuration onto the orchestrator's
// config, including the credentials checked at submission time.
func pipelineConfig(cfg *config.Config) *generation.Config {
	gen := cfg.Generation

	return &generation.Config{
		MaxConcurrentJobs: gen.MaxConcurrentJobs,
		CleanupInterval:   gen.CleanupInterval,
		JobTTL:            gen.JobTTL,
		StageTimeouts: map[generation.StageName]time.Duration{
			generation.StageAnalysis: gen.AnalysisTimeout,
			generation.StagePackages: gen.ImageTimeout,
			generation.StageAds:      gen.ImageTimeout,
			generation.StageTexts:    gen.TextTimeout,
		},
		Retry: generation.RetryConfig{
			MaxAttempts:  gen.Retry.MaxAttempts,
			InitialDelay: gen.Retry.InitialDelay,
			MaxDelay:     gen.Retry.MaxDelay,
			Multiplier:   gen.Retry.Multiplier,
		},
		IntraBranchConcurrency: gen.IntraBranchConcurrency,
		PacingDelay:            gen.PacingDelay,
		DownloadBasePath:       gen.DownloadBasePath,
		Providers: generation.ProviderSelection{
			Analysis: cfg.Providers.Analysis,
			Image:    cfg.Providers.Image,
			Text:     cfg.Providers.Text,
		},
		Credentials: generation.CredentialSet{
			ClaudeAPIKey: cfg.Providers.ClaudeAPIKey,
			OpenAIAPIKey: cfg.Providers.OpenAIAPIKey,
			GeminiAPIKey: cfg.Providers.GeminiAPIKey,
		},
	}
}

// providerSetup splits the providers section into the selection consumed by
// the pipeline and the client settings consumed by the factory.
func providerSetup(p config.ProvidersConfig) (generation.ProviderSelection, ai.Config) {
	sel := generation.ProviderSelection{
		Analysis: p.Analysis,
		Image:    p.Image,
		Text:     p.Text,
	}

	aiCfg := ai.Config{
		Claude: ai.ClaudeConfig{
			APIKey: p.ClaudeAPIKey,
			Model:  p.ClaudeModel,
		},
		OpenAI: ai.OpenAIConfig{
			APIKey:  p.OpenAIAPIKey,
			BaseURL: p.OpenAIBaseURL,
			Model:   p.OpenAIModel,
		},
		Gemini: ai.GeminiConfig{
			APIKey:     p.GeminiAPIKey,
			Model:      p.GeminiModel,
			ImageModel: p.GeminiImageModel,
		},
	}

	return sel, aiCfg
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Apply MINIMAL middleware that won't interfere with WebSocket
	// These are safe because they don't wrap the ResponseWriter
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	// WebSocket route with minimal middleware and tracing
	// MUST be registered after minimal middleware but before the group
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	// Create a route group for everything else with FULL middleware
	r.Group(func(r chi.Router) {
		// OpenTelemetry middleware for tracing and metrics
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		// Business metrics middleware
		businessMetrics, _ := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		r.Use(customMiddleware.BusinessMetricsMiddleware(businessMetrics))

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		// CORS middleware - configured for API consumers and development
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		// Rate limiting
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		// Now register all API routes within this group
		a.setupAPIRoutes(r)
	})

	// Add Prometheus metrics endpoint (outside the middleware group for performance)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Compress(5))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Create error handler shared by the resource handlers
		errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

		// Apply standard timeout to the snappy endpoints
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			// Health handler
			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)

			// System load and stats
			jobsStatusHandler := handlers.NewJobsHandler(a.GenerationService, a.WebSocketHub, a.Logger, errorHandler)
			r.Get("/system/status", jobsStatusHandler.SystemStatus)
			r.Get("/system/stats", healthHandler.SystemStats)

			// In-process metrics snapshots
			metricsHandler := handlers.NewMetricsHandler(a.WebSocketHub)
			r.Mount("/metrics", metricsHandler.Routes())
		})

		// Jobs and downloads need room: submissions carry image uploads and
		// the wait bridge blocks until the job settles, so they run under
		// the server's write budget instead of the read timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout, a.Logger))

			jobsHandler := handlers.NewJobsHandler(a.GenerationService, a.WebSocketHub, a.Logger, errorHandler)
			r.Mount("/jobs", jobsHandler.Routes())

			downloadsHandler := handlers.NewDownloadsHandler(a.BundleService, a.Logger, errorHandler)
			r.Mount("/downloads", downloadsHandler.Routes())
		})
	})
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	// Detect environment
	isDevelopment := a.isDevelopmentMode()

	config := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if isDevelopment {
		// Development mode: Allow common local frontend dev servers
		config.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		}
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", config.AllowedOrigins))
	} else {
		// Production mode: Only allow same origin
		config.AllowedOrigins = []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		}

		// Add any configured origins
		if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
			config.AllowedOrigins = append(config.AllowedOrigins, a.Config.Security.AllowedOrigins...)
		}

		a.Logger.Info("CORS configured for production mode",
			slog.Any("allowed_origins", config.AllowedOrigins))
	}

	return config
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	if a.Config != nil && a.Config.Logging.Development {
		return true
	}
	return false
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	// Collect runtime metrics until shutdown
	if a.SystemMetrics != nil {
		go a.SystemMetrics.Start(ctx)
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.Int("max_concurrent_jobs", a.Config.Generation.MaxConcurrentJobs),
		slog.String("analysis_provider", a.Config.Providers.Analysis),
		slog.String("image_provider", a.Config.Providers.Image),
		slog.String("text_provider", a.Config.Providers.Text))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Stop the orchestrator; in-flight jobs run to completion
	if a.Orchestrator != nil {
		a.Logger.InfoContext(ctx, "Stopping generation orchestrator")
		if err := a.Orchestrator.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop orchestrator gracefully", slog.String("error", err.Error()))
		}
	}

	// Stop WebSocket hub after the orchestrator so terminal events still reach clients
	a.WebSocketHub.Stop()

	if a.SystemMetrics != nil {
		a.SystemMetrics.Stop()
	}

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or server failure
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	// Graceful shutdown
	return a.Stop(context.Background())
}

// handleWebSocket handles WebSocket connections
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Extract any available request ID (might not have middleware)
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	readBuffer := a.Config.WebSocket.ReadBufferSize
	if readBuffer <= 0 {
		readBuffer = config.WebSocketReadBufferSize
	}
	writeBuffer := a.Config.WebSocket.WriteBufferSize
	if writeBuffer <= 0 {
		writeBuffer = config.WebSocketWriteBufferSize
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow if no origin (local file or same-origin request)
			if origin == "" {
				return true
			}

			// In development mode, be more permissive
			if a.isDevelopmentMode() {
				return true
			}

			// In production, validate against allowed origins
			corsConfig := a.getCORSConfig()
			for _, allowed := range corsConfig.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin check - origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", corsConfig.AllowedOrigins))
			return false
		},
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	// Create a new client with trace ID and register with hub
	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	// Start client goroutines with proper error handling
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}
