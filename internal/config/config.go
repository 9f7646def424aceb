// Package config provides hierarchical configuration loading for deploypilot.
// Precedence: defaults < YAML file < .env file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the deploypilot service and CLI.
type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Reader   Reader   `yaml:"reader"`
	GitHub   GitHub   `yaml:"github"`
	Local    Local    `yaml:"local"`
	Analysis Analysis `yaml:"analysis"`
	Cache    Cache    `yaml:"cache"`
	Postgres Postgres `yaml:"postgres"`
	NATS     NATS     `yaml:"nats"`
	Breaker  Breaker  `yaml:"breaker"`
	Rate     Rate     `yaml:"rate"`
	OTEL     OTEL     `yaml:"otel"`
	MCP      MCP      `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port           string        `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Reader selects the repository reader ("github" or "local").
type Reader struct {
	Provider string `yaml:"provider"`
}

// GitHub holds GitHub REST API configuration.
type GitHub struct {
	APIURL        string        `yaml:"api_url"`
	Token         string        `yaml:"token"`
	TokenFile     string        `yaml:"token_file"` // Read per request and reloaded on 401; overrides Token
	Timeout       time.Duration `yaml:"timeout"`
	ETagCacheSize int           `yaml:"etag_cache_size"` // Conditional-request cache entries (0 disables)
}

// Local holds the local checkout reader configuration.
// Repositories are resolved as <root>/<owner>/<repo>. GitProcs bounds
// concurrent git processes used for branch reads.
type Local struct {
	Root     string `yaml:"root"`
	GitProcs int    `yaml:"git_procs"`
}

// Analysis holds signal extraction limits.
type Analysis struct {
	MaxParallel      int           `yaml:"max_parallel"`       // Concurrent ecosystem detectors (default: 4)
	MaxManifestBytes int           `yaml:"max_manifest_bytes"` // Bytes of each manifest scanned (default: 256 KiB)
	Timeout          time.Duration `yaml:"timeout"`            // Upper bound for one analysis (default: 30s)
}

// Cache holds analysis result cache configuration.
type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	TTL         time.Duration `yaml:"ttl"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L2Bucket    string        `yaml:"l2_bucket"`
}

// Postgres holds PostgreSQL connection configuration.
// An empty DSN disables analysis history.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds NATS JetStream configuration.
// An empty URL disables analysis events and the L2 cache.
type NATS struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// OTEL holds OpenTelemetry configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MCP holds the Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// APIKey, when set, is required as a Bearer token on MCP requests.
	APIKey string `yaml:"api_key"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			CORSOrigin:     "http://localhost:3000",
			RequestTimeout: 60 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "deploypilot",
		},
		Reader: Reader{
			Provider: "github",
		},
		GitHub: GitHub{
			APIURL:        "https://api.github.com",
			Timeout:       15 * time.Second,
			ETagCacheSize: 512,
		},
		Local: Local{
			Root:     ".",
			GitProcs: 4,
		},
		Analysis: Analysis{
			MaxParallel:      4,
			MaxManifestBytes: 256 * 1024,
			Timeout:          30 * time.Second,
		},
		Cache: Cache{
			Enabled:     true,
			TTL:         10 * time.Minute,
			L1MaxSizeMB: 32,
			L2Bucket:    "DEPLOYPILOT_ANALYSES",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		NATS: NATS{
			Stream: "DEPLOYPILOT",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 5,
			Burst:             20,
			MaxIdleTime:       10 * time.Minute,
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "deploypilot",
			Insecure:    true,
			SampleRate:  1.0,
		},
		MCP: MCP{
			Enabled: true,
			Path:    "/mcp",
		},
	}
}
