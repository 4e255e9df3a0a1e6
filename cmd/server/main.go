// Vital - unified health assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/vital-labs/internal/api"
	"github.com/ashureev/vital-labs/internal/assistant"
	"github.com/ashureev/vital-labs/internal/config"
	"github.com/ashureev/vital-labs/internal/conversation"
	"github.com/ashureev/vital-labs/internal/identity"
	"github.com/ashureev/vital-labs/internal/metrics"
	"github.com/ashureev/vital-labs/internal/middleware"
	"github.com/ashureev/vital-labs/internal/orchestrator"
	"github.com/ashureev/vital-labs/internal/provider"
	"github.com/ashureev/vital-labs/internal/store"
	"github.com/ashureev/vital-labs/internal/usercontext"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DB.Driver)

	repo, err := store.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.PostgresDSN)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	providers := provider.BuildRegistry(cfg, logger)
	defer providers.Close()
	if len(providers.IDs()) == 0 {
		slog.Warn("No generation providers available; full-path turns will fail with 500 until one is configured")
	}

	scorer, err := usercontext.NewScorer(usercontext.WeightsFromConfig(cfg.Context.Weights), cfg.Context.CompletenessThreshold)
	if err != nil {
		slog.Error("Invalid completeness weights", "error", err)
		os.Exit(1)
	}
	aggregator := usercontext.NewAggregator(
		usercontext.NewStoreFetcher(repo), nil, scorer, cfg.Context.FetchTimeout, logger, m)

	convLog, err := conversation.NewLogger(conversation.LogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Warn("failed to close conversation logger", "error", closeErr)
		}
	}()

	svc := assistant.NewService(
		aggregator,
		orchestrator.New(providers, logger, m),
		conversation.NewRecorder(repo, convLog, logger),
		assistant.Options{
			Chain:           cfg.Chain,
			FastPathEnabled: cfg.FastPath.Enabled,
			FastProvider:    cfg.FastPath.Provider,
			FastTimeout:     cfg.FastPath.Timeout,
			FastMaxRunes:    cfg.FastPath.MaxRunes,
			Locale:          cfg.Locale,
			MaxSummaryRunes: cfg.Context.MaxSummaryRunes,
			TurnTimeout:     cfg.Timeout.Turn,
		},
		logger, m,
	)

	limiter := assistant.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	defer limiter.Stop()
	sessions := assistant.NewSessionManager()

	assistantHandler := assistant.NewHandler(svc, limiter, sessions, assistant.HandlerConfig{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AllowedOrigins:     cfg.AllowedOrigins(),
	}, logger)

	checkers := make(map[string]api.HealthChecker)
	for id, hc := range providers.HealthCheckers() {
		checkers[id] = hc
	}
	healthHandler := api.NewHealthHandler(repo, checkers, cfg.Timeout.HealthCheck)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware())

	healthHandler.RegisterHealth(r)
	assistantHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// No WriteTimeout: websocket sessions are long-lived and HTTP turns are
	// bounded by TURN_TIMEOUT inside the service.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "chain", cfg.Chain, "providers", providers.IDs())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
