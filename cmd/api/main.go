// Package main is the entrypoint for the Daybook API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/daybook/daybook/internal/auth"
	"github.com/daybook/daybook/internal/cache"
	"github.com/daybook/daybook/internal/cleanup"
	"github.com/daybook/daybook/internal/config"
	"github.com/daybook/daybook/internal/handler"
	"github.com/daybook/daybook/internal/media"
	"github.com/daybook/daybook/internal/metrics"
	"github.com/daybook/daybook/internal/middleware"
	"github.com/daybook/daybook/internal/repository"
	"github.com/daybook/daybook/internal/server"
	"github.com/daybook/daybook/internal/service"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", config.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", config.RedactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", config.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", config.RedactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Metrics
	registry := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.NewNoop()
	if cfg.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewPrometheus(registry)
	}

	// Media store and cleanup queue
	store := media.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix, cfg.MaxUploadSize)
	cleanupQueue := cleanup.NewQueue(cacheClient.Client())

	healthHandler := handler.NewHealthHandler(logger,
		handler.Check{Name: "postgres", Checker: repo},
		handler.Check{Name: "redis", Checker: cacheClient},
		handler.Check{Name: "uploads", Checker: store},
	)

	// Initialize services
	momentService := service.NewMomentService(repo, store, cleanupQueue, logger, recorder)

	// Initialize handlers
	h := handler.New(logger)
	momentHandler := handler.NewMomentHandler(momentService, logger, recorder, handler.MomentHandlerConfig{
		MaxJSONBodySize: cfg.MaxJSONBodySize,
		MaxUploadSize:   cfg.MaxUploadSize,
	})

	resolver := middleware.NewSessionResolver(middleware.SessionResolverConfig{
		Logger:   logger,
		Sessions: repo,
		Cache:    cacheClient,
		CacheTTL: cfg.SessionCacheTTL,
		Recorder: recorder,
	})

	// Setup router
	r := setupRouter(routerDeps{
		h:             h,
		healthHandler: healthHandler,
		momentHandler: momentHandler,
		resolver:      resolver,
		limiter:       cacheClient,
		registry:      registry,
		store:         store,
		cfg:           cfg,
		logger:        logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})

	if cfg.CleanupEnabled {
		worker := cleanup.NewWorker(cleanupQueue, store, logger, recorder)
		worker.SetBatchSize(cfg.CleanupBatchSize)
		worker.SetPollInterval(cfg.CleanupPollInterval)
		worker.SetMaxAttempts(cfg.CleanupMaxAttempts)
		srv.Go("media-cleanup", worker.Run)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"upload_dir", cfg.UploadDir,
		"cleanup_enabled", cfg.CleanupEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	h             *handler.Handler
	healthHandler *handler.HealthHandler
	momentHandler *handler.MomentHandler
	resolver      auth.CurrentUserFunc
	limiter       middleware.RateLimiter
	registry      *prometheus.Registry
	store         *media.LocalStore
	cfg           *config.Config
	logger        *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg := d.cfg
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth required)
	r.Get("/healthz", d.healthHandler.Healthz)
	r.Get("/readyz", d.healthHandler.Readyz)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", handler.NewMetricsHandler(d.registry))
	}

	// Root info endpoint
	r.Get("/", d.h.Hello)

	// Stored media, read-only
	r.With(middleware.MediaHeaders).Get(d.store.Prefix()+"*", uploadsHandler(d.store))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      d.logger,
		Limiter:     d.limiter,
		Enabled:     cfg.RateLimitEnabled,
		PerMinute:   cfg.RateLimitPerMinute,
		Burst:       cfg.RateLimitBurst,
		IPPerSecond: cfg.RateLimitIPPerSecond,
		IPBurst:     cfg.RateLimitIPBurst,
	}

	r.Route("/moments", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.MaxBodySize(cfg.MaxUploadSize))
		r.Use(middleware.Authenticate(middleware.AuthConfig{
			Logger:      d.logger,
			Resolve:     d.resolver,
			MinDuration: middleware.DefaultMinAuthDuration,
		}))
		r.Use(middleware.RateLimitUser(rateLimitCfg))

		r.Get("/", d.momentHandler.List)
		r.Post("/", d.momentHandler.Create)
		r.Put("/{id}", d.momentHandler.Update)
		r.Delete("/{id}", d.momentHandler.Delete)
	})

	// 404 and 405 handlers
	r.NotFound(d.h.NotFound)
	r.MethodNotAllowed(d.h.MethodNotAllowed)

	return r
}

// uploadsHandler serves stored files without directory listings.
func uploadsHandler(store *media.LocalStore) http.HandlerFunc {
	files := http.StripPrefix(strings.TrimSuffix(store.Prefix(), "/"), http.FileServer(http.Dir(store.Dir())))
	return func(w http.ResponseWriter, r *http.Request) {
		if !store.IsManaged(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}
