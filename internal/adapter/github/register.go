package github

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/deploypilot/deploypilot/internal/port/repository"
	"github.com/deploypilot/deploypilot/internal/resilience"
	"github.com/deploypilot/deploypilot/internal/secrets"
)

// Config keys understood by the registered factory.
const (
	ConfigAPIURL         = "api_url"
	ConfigToken          = "token"
	ConfigTokenFile      = "token_file"
	ConfigTimeout        = "timeout"
	ConfigETagCacheSize  = "etag_cache_size"
	ConfigBreakerMax     = "breaker_max_failures"
	ConfigBreakerTimeout = "breaker_timeout"
)

func init() {
	repository.Register(readerName, func(cfg map[string]string) (repository.Reader, error) {
		return newFromConfig(cfg)
	})
}

func newFromConfig(cfg map[string]string) (*Reader, error) {
	timeout, err := durationOr(cfg[ConfigTimeout], 15*time.Second)
	if err != nil {
		return nil, err
	}
	cacheSize, err := intOr(cfg[ConfigETagCacheSize], 512)
	if err != nil {
		return nil, err
	}
	maxFailures, err := intOr(cfg[ConfigBreakerMax], 5)
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := durationOr(cfg[ConfigBreakerTimeout], 30*time.Second)
	if err != nil {
		return nil, err
	}

	breaker := resilience.NewBreaker(maxFailures, breakerTimeout,
		resilience.WithFailureFilter(func(err error) bool {
			return errors.Is(err, repository.ErrUnreachable)
		}),
	)
	opts := []Option{
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithETagCache(cacheSize),
		WithBreaker(breaker),
	}
	if path := cfg[ConfigTokenFile]; path != "" {
		tokenFile, err := secrets.NewFileSecret("github token", path)
		if err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		slog.Info("github token loaded from file", "path", path, "token", tokenFile.Redacted())
		opts = append(opts, WithTokenFile(tokenFile))
	}
	return NewReader(cfg[ConfigAPIURL], cfg[ConfigToken], opts...), nil
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("github: invalid duration %q: %w", v, err)
	}
	return d, nil
}

func intOr(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("github: invalid integer %q: %w", v, err)
	}
	return n, nil
}
