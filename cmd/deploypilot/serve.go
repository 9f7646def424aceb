package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	dphttp "github.com/deploypilot/deploypilot/internal/adapter/http"
	dpmcp "github.com/deploypilot/deploypilot/internal/adapter/mcp"
	dpnats "github.com/deploypilot/deploypilot/internal/adapter/nats"
	dpotel "github.com/deploypilot/deploypilot/internal/adapter/otel"
	"github.com/deploypilot/deploypilot/internal/adapter/postgres"
	"github.com/deploypilot/deploypilot/internal/logger"
	"github.com/deploypilot/deploypilot/internal/middleware"
	"github.com/deploypilot/deploypilot/internal/port/cache"
	"github.com/deploypilot/deploypilot/internal/service"
)

// idempotencyTTL is how long async request responses are replayed.
const idempotencyTTL = 24 * time.Hour

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (default deploypilot.yaml if present)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"reader", cfg.Reader.Provider,
		"cache", cfg.Cache.Enabled,
		"history", cfg.Postgres.DSN != "",
		"events", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := dpotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(shutdownCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := dpotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Analysis ---

	reader, err := newReader(cfg, cfg.Reader.Provider, metrics)
	if err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	svc := service.NewAnalysisService(newExtractor(cfg, reader))
	svc.SetMetrics(metrics)

	var probes []dphttp.Probe

	// --- Infrastructure (all optional) ---

	// NATS
	var queue *dpnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = dpnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Drain() }()
		svc.SetQueue(queue)
		probes = append(probes, dphttp.Probe{Name: "nats", Check: func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}

	// Result cache
	var resultCache cache.Cache
	if cfg.Cache.Enabled {
		var closeCache func()
		resultCache, closeCache, err = newCache(ctx, cfg.Cache, queue)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer closeCache()
		svc.SetCache(resultCache, cfg.Cache.TTL)
	}

	// PostgreSQL
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")

		svc.SetHistory(postgres.NewStore(pool))
		probes = append(probes, dphttp.Probe{Name: "postgres", Check: pool.Ping})
	}

	// Async analysis requests
	if queue != nil {
		cancelRequests, err := svc.StartRequestSubscriber(ctx)
		if err != nil {
			return fmt.Errorf("request subscriber: %w", err)
		}
		defer cancelRequests()
	}

	// --- HTTP ---

	handlers := &dphttp.Handlers{
		Analysis:        svc,
		Probes:          probes,
		Version:         version,
		AnalysisTimeout: cfg.Analysis.Timeout,
	}
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, cfg.Rate.MaxIdleTime)

	var asyncMiddleware []func(http.Handler) http.Handler
	if resultCache != nil {
		asyncMiddleware = append(asyncMiddleware, middleware.Idempotency(resultCache, idempotencyTTL))
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(dphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dphttp.SecurityHeaders)
	r.Use(dphttp.Logger)
	r.Use(chimw.Recoverer)
	if cfg.OTEL.Enabled {
		r.Use(dpotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		dphttp.MountRoutes(r, handlers, asyncMiddleware...)
	})

	// MCP endpoint (streamable HTTP, no request timeout)
	if cfg.MCP.Enabled {
		mcpServer := dpmcp.NewServer(dpmcp.ServerConfig{
			Name:    "deploypilot",
			Version: version,
			Path:    cfg.MCP.Path,
			APIKey:  cfg.MCP.APIKey,
		}, dpmcp.ServerDeps{Analyzer: svc})
		r.With(limiter.Handler).Handle(mcpServer.Path(), mcpServer.Handler())
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
