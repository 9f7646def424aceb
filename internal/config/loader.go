package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the path checked for YAML configuration.
	DefaultConfigFile = "deploypilot.yaml"
	// DefaultEnvFile is the optional dotenv file loaded before the environment.
	DefaultEnvFile = ".env"
)

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile, DefaultEnvFile)
}

// LoadFrom returns a Config loaded from the given YAML path, then the given
// dotenv files, then the process environment. Values already present in the
// environment are never replaced by a dotenv file.
func LoadFrom(yamlPath string, envFiles ...string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotEnv exports variables from dotenv files that exist.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DEPLOYPILOT_PORT")
	setString(&cfg.Server.CORSOrigin, "DEPLOYPILOT_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "DEPLOYPILOT_REQUEST_TIMEOUT")
	setString(&cfg.Logging.Level, "DEPLOYPILOT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEPLOYPILOT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DEPLOYPILOT_LOG_ASYNC")

	// Repository readers
	setString(&cfg.Reader.Provider, "DEPLOYPILOT_READER")
	setString(&cfg.GitHub.APIURL, "DEPLOYPILOT_GITHUB_API_URL")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.Token, "DEPLOYPILOT_GITHUB_TOKEN")
	setString(&cfg.GitHub.TokenFile, "DEPLOYPILOT_GITHUB_TOKEN_FILE")
	setDuration(&cfg.GitHub.Timeout, "DEPLOYPILOT_GITHUB_TIMEOUT")
	setInt(&cfg.GitHub.ETagCacheSize, "DEPLOYPILOT_GITHUB_ETAG_CACHE_SIZE")
	setString(&cfg.Local.Root, "DEPLOYPILOT_LOCAL_ROOT")
	setInt(&cfg.Local.GitProcs, "DEPLOYPILOT_LOCAL_GIT_PROCS")

	// Analysis
	setInt(&cfg.Analysis.MaxParallel, "DEPLOYPILOT_ANALYSIS_MAX_PARALLEL")
	setInt(&cfg.Analysis.MaxManifestBytes, "DEPLOYPILOT_ANALYSIS_MAX_MANIFEST_BYTES")
	setDuration(&cfg.Analysis.Timeout, "DEPLOYPILOT_ANALYSIS_TIMEOUT")

	// Cache
	setBool(&cfg.Cache.Enabled, "DEPLOYPILOT_CACHE_ENABLED")
	setDuration(&cfg.Cache.TTL, "DEPLOYPILOT_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "DEPLOYPILOT_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "DEPLOYPILOT_CACHE_L2_BUCKET")

	// Storage and messaging
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DEPLOYPILOT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DEPLOYPILOT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DEPLOYPILOT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DEPLOYPILOT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DEPLOYPILOT_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "DEPLOYPILOT_NATS_STREAM")

	// Resilience
	setInt(&cfg.Breaker.MaxFailures, "DEPLOYPILOT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DEPLOYPILOT_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "DEPLOYPILOT_RATE_RPS")
	setInt(&cfg.Rate.Burst, "DEPLOYPILOT_RATE_BURST")
	setDuration(&cfg.Rate.MaxIdleTime, "DEPLOYPILOT_RATE_MAX_IDLE_TIME")

	// Telemetry
	setBool(&cfg.OTEL.Enabled, "DEPLOYPILOT_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "DEPLOYPILOT_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "DEPLOYPILOT_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "DEPLOYPILOT_MCP_ENABLED")
	setString(&cfg.MCP.Path, "DEPLOYPILOT_MCP_PATH")
	setString(&cfg.MCP.APIKey, "DEPLOYPILOT_MCP_API_KEY")
}

// validate checks that required fields are set and values are in range.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Reader.Provider {
	case "github", "local":
	default:
		return fmt.Errorf("reader.provider %q is not one of github, local", cfg.Reader.Provider)
	}
	if cfg.Reader.Provider == "local" && cfg.Local.Root == "" {
		return errors.New("local.root is required for the local reader")
	}
	if cfg.Analysis.MaxParallel < 1 {
		return errors.New("analysis.max_parallel must be >= 1")
	}
	if cfg.Analysis.MaxManifestBytes < 1 {
		return errors.New("analysis.max_manifest_bytes must be >= 1")
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0 when the cache is enabled")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0,1]")
	}
	if cfg.MCP.Enabled && !strings.HasPrefix(cfg.MCP.Path, "/") {
		return errors.New("mcp.path must start with /")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
