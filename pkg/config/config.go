// Package config provides the configuration system for clawprobe
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kart-io/clawprobe/pkg/config/platforms"
	"gopkg.in/yaml.v3"
)

// FeishuConfig is the Feishu app configuration
type FeishuConfig = platforms.FeishuConfig

// Cache types
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the unified configuration structure
type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level"`

	Feishu    FeishuConfig    `json:"feishu" yaml:"feishu"`
	Sandbox   SandboxConfig   `json:"sandbox" yaml:"sandbox"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Health    HealthConfig    `json:"health" yaml:"health"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// SandboxConfig configures the container sandbox
type SandboxConfig struct {
	// DockerHost is the persistent override for the address containers use to
	// reach the host. OPENCLAW_DOCKER_HOST still wins over it at resolve time.
	DockerHost string `json:"docker_host" yaml:"docker_host"`
}

// CacheConfig selects where probed bot identities are kept
type CacheConfig struct {
	Type  string      `json:"type" yaml:"type"`
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis-backed bot-info store
type RedisConfig struct {
	Addr      string        `json:"addr" yaml:"addr"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"` // 0 keeps entries until evicted by Redis
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	Environment    string            `json:"environment" yaml:"environment"`
	OTLPEndpoint   string            `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders    map[string]string `json:"otlp_headers" yaml:"otlp_headers"`
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	TracingEnabled bool              `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool              `json:"metrics_enabled" yaml:"metrics_enabled"`
	// SampleRate is nil when unset; 0 keeps metrics but samples no traces
	SampleRate     *float64          `json:"sample_rate" yaml:"sample_rate"`
}

// Sampling returns the trace sampling ratio, 1 when unset
func (t TelemetryConfig) Sampling() float64 {
	if t.SampleRate == nil {
		return 1.0
	}
	return *t.SampleRate
}

// HealthConfig configures periodic health checks
type HealthConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// ServerConfig configures the HTTP server of the serve command
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// APIKeys guard /probe, which spends provider API quota. Empty disables auth.
	APIKeys []string `json:"api_keys" yaml:"api_keys"`
}

// Option defines a functional option for configuration
type Option func(*Config) error

// Default returns a configuration populated with defaults
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// New creates a new configuration with the given options
func New(opts ...Option) (*Config, error) {
	cfg := &Config{}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads a YAML configuration file, overlays the process environment,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML data and applies environment overrides from lookup.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if lookup != nil {
		cfg.ApplyEnvironment(lookup)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvironment overlays environment variables on the configuration.
// OPENCLAW_DOCKER_HOST is intentionally not read here; the resolver reads it
// directly so that it keeps precedence over sandbox.docker_host.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	c.Feishu.ApplyEnvironment(lookup)

	if v, ok := lookup("CLAWPROBE_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}

	if v, ok := lookup("CLAWPROBE_CACHE_TYPE"); ok && v != "" {
		c.Cache.Type = v
	}

	if v, ok := lookup("CLAWPROBE_REDIS_ADDR"); ok && v != "" {
		c.Cache.Redis.Addr = v
	}

	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

// SetDefaults fills zero values with defaults
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	c.Feishu.SetDefaults()

	c.Cache.Type = strings.ToLower(strings.TrimSpace(c.Cache.Type))
	if c.Cache.Type == "" {
		c.Cache.Type = CacheMemory
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "clawprobe:botinfo:"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "clawprobe"
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "0.1.0"
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate == nil {
		rate := 1.0
		c.Telemetry.SampleRate = &rate
	}

	if c.Health.Interval == 0 {
		c.Health.Interval = 30 * time.Second
	}
	if c.Health.Timeout == 0 {
		c.Health.Timeout = 10 * time.Second
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Feishu.Validate(); err != nil {
		return fmt.Errorf("feishu configuration validation failed: %w", err)
	}

	switch c.Cache.Type {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required when cache.type is redis")
		}
		if c.Cache.Redis.TTL < 0 {
			return fmt.Errorf("cache.redis.ttl cannot be negative")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}

	if r := c.Telemetry.SampleRate; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1")
	}

	if c.Health.Interval < 0 || c.Health.Timeout < 0 {
		return fmt.Errorf("health interval and timeout cannot be negative")
	}

	return nil
}
