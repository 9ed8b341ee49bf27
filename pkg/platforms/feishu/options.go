package feishu

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/errors"
	"github.com/kart-io/clawprobe/pkg/logger"
	"github.com/kart-io/clawprobe/pkg/observability"
)

// ConfigOption represents a configuration option function
type ConfigOption func(*config.FeishuConfig) error

// WithApp sets the app ID and secret
func WithApp(appID, appSecret string) ConfigOption {
	return func(cfg *config.FeishuConfig) error {
		if appID == "" {
			return fmt.Errorf("app ID cannot be empty")
		}
		if appSecret == "" {
			return fmt.Errorf("app secret cannot be empty")
		}
		cfg.AppID = appID
		cfg.AppSecret = appSecret
		return nil
	}
}

// WithBaseURL selects the open platform host, e.g. https://open.larksuite.com
func WithBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.FeishuConfig) error {
		if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			return fmt.Errorf("base URL must start with http:// or https://")
		}
		cfg.BaseURL = baseURL
		return nil
	}
}

// WithTimeout sets the timeout option
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(cfg *config.FeishuConfig) error {
		if timeout < 0 {
			return fmt.Errorf("timeout cannot be negative")
		}
		cfg.Timeout = timeout
		return nil
	}
}

// WithMaxRetries sets the max retries option
func WithMaxRetries(maxRetries int) ConfigOption {
	return func(cfg *config.FeishuConfig) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries cannot be negative")
		}
		cfg.MaxRetries = maxRetries
		return nil
	}
}

// WithRateLimit sets the rate limit option (requests per minute)
func WithRateLimit(rateLimit int) ConfigOption {
	return func(cfg *config.FeishuConfig) error {
		if rateLimit < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		cfg.RateLimit = rateLimit
		return nil
	}
}

// NewConfig creates a new FeishuConfig with options
func NewConfig(options ...ConfigOption) (*config.FeishuConfig, error) {
	cfg := &config.FeishuConfig{}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	SetDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithConfig applies connection settings from cfg. Credentials in cfg are ignored;
// the client always uses the credentials it was created with.
func WithConfig(cfg *config.FeishuConfig) ClientOption {
	return func(c *Client) {
		if cfg != nil {
			c.cfg = *cfg
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) { c.logger = logger.OrDiscard(log) }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter shares an outbound rate limiter instead of deriving a new one
// from RateLimit
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithRetryPolicy overrides the retry policy derived from MaxRetries
func WithRetryPolicy(policy errors.RetryPolicy) ClientOption {
	return func(c *Client) { c.retryPolicy = policy }
}

// WithTelemetry traces API calls and records call metrics
func WithTelemetry(tp *observability.TelemetryProvider) ClientOption {
	return func(c *Client) { c.telemetry = tp }
}

// WithClock overrides time.Now for token expiry bookkeeping
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
