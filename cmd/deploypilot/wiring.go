package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/deploypilot/deploypilot/internal/adapter/github"
	"github.com/deploypilot/deploypilot/internal/adapter/gitlocal"
	dpnats "github.com/deploypilot/deploypilot/internal/adapter/nats"
	"github.com/deploypilot/deploypilot/internal/adapter/natskv"
	dpotel "github.com/deploypilot/deploypilot/internal/adapter/otel"
	"github.com/deploypilot/deploypilot/internal/adapter/ristretto"
	"github.com/deploypilot/deploypilot/internal/adapter/tiered"
	"github.com/deploypilot/deploypilot/internal/config"
	"github.com/deploypilot/deploypilot/internal/domain/stack"
	"github.com/deploypilot/deploypilot/internal/port/cache"
	"github.com/deploypilot/deploypilot/internal/port/repository"
)

// loadConfig loads from path, or from the default locations when empty.
// An explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return config.LoadFrom(path, config.DefaultEnvFile)
}

// readerConfig flattens the configuration of the named reader into the
// string map its registered factory takes.
func readerConfig(cfg *config.Config, provider string) map[string]string {
	switch provider {
	case "local":
		return map[string]string{
			gitlocal.ConfigRoot:     cfg.Local.Root,
			gitlocal.ConfigGitProcs: strconv.Itoa(cfg.Local.GitProcs),
		}
	default:
		return map[string]string{
			github.ConfigAPIURL:         cfg.GitHub.APIURL,
			github.ConfigToken:          cfg.GitHub.Token,
			github.ConfigTokenFile:      cfg.GitHub.TokenFile,
			github.ConfigTimeout:        cfg.GitHub.Timeout.String(),
			github.ConfigETagCacheSize:  strconv.Itoa(cfg.GitHub.ETagCacheSize),
			github.ConfigBreakerMax:     strconv.Itoa(cfg.Breaker.MaxFailures),
			github.ConfigBreakerTimeout: cfg.Breaker.Timeout.String(),
		}
	}
}

// newReader creates the named repository reader, instrumented when metrics
// are available.
func newReader(cfg *config.Config, provider string, metrics *dpotel.Metrics) (repository.Reader, error) {
	reader, err := repository.New(provider, readerConfig(cfg, provider))
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, repository.Available())
	}
	if metrics == nil {
		return reader, nil
	}
	return dpotel.WrapReader(reader, metrics), nil
}

func newExtractor(cfg *config.Config, reader repository.Reader) *stack.Extractor {
	return stack.NewExtractor(reader,
		stack.WithMaxParallel(cfg.Analysis.MaxParallel),
		stack.WithMaxManifestBytes(cfg.Analysis.MaxManifestBytes),
	)
}

// newCache builds the in-process L1 cache and, when NATS is connected, puts
// the JetStream KV bucket behind it as L2. The returned func releases L1.
func newCache(ctx context.Context, cfg config.Cache, queue *dpnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB, cfg.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("l1 cache: %w", err)
	}
	if queue == nil {
		return l1, l1.Close, nil
	}

	kv, err := queue.KeyValue(ctx, cfg.L2Bucket, cfg.TTL)
	if err != nil {
		slog.Warn("l2 cache unavailable, using l1 only", "bucket", cfg.L2Bucket, "error", err)
		return l1, l1.Close, nil
	}
	slog.Info("tiered cache enabled", "l2_bucket", cfg.L2Bucket, "ttl", cfg.TTL)
	return tiered.New(l1, natskv.New(kv), cfg.TTL), l1.Close, nil
}
