// Functional options for clawprobe configuration
package config

import (
	"fmt"
	"time"
)

// WithFeishuApp sets the Feishu app credentials
func WithFeishuApp(appID, appSecret string) Option {
	return func(c *Config) error {
		c.Feishu.AppID = appID
		c.Feishu.AppSecret = appSecret
		return nil
	}
}

// WithFeishu replaces the whole Feishu section
func WithFeishu(feishu FeishuConfig) Option {
	return func(c *Config) error {
		c.Feishu = feishu
		return nil
	}
}

// WithDockerHost sets the configured docker host address
func WithDockerHost(host string) Option {
	return func(c *Config) error {
		c.Sandbox.DockerHost = host
		return nil
	}
}

// WithRedisCache selects the Redis bot-info store
func WithRedisCache(addr string, ttl time.Duration) Option {
	return func(c *Config) error {
		if addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		c.Cache.Type = CacheRedis
		c.Cache.Redis.Addr = addr
		c.Cache.Redis.TTL = ttl
		return nil
	}
}

// WithLogLevel sets the log level name
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

// WithTelemetry enables OTLP export to endpoint
func WithTelemetry(endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.TracingEnabled = true
		c.Telemetry.MetricsEnabled = true
		c.Telemetry.OTLPEndpoint = endpoint
		return nil
	}
}

// WithHealthInterval sets the periodic health check interval
func WithHealthInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return fmt.Errorf("health interval must be positive")
		}
		c.Health.Interval = interval
		return nil
	}
}

// WithServerAddr sets the listen address of the serve command
func WithServerAddr(addr string) Option {
	return func(c *Config) error {
		c.Server.Addr = addr
		return nil
	}
}
