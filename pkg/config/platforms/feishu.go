// Package platforms provides platform-specific configuration structures
package platforms

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Feishu defaults
const (
	DefaultFeishuBaseURL    = "https://open.feishu.cn"
	DefaultFeishuTimeout    = 30 * time.Second
	DefaultFeishuMaxRetries = 3
	DefaultFeishuRateLimit  = 60
)

// FeishuConfig represents configuration for the Feishu/Lark open platform app
type FeishuConfig struct {
	// App credentials
	AppID     string `json:"app_id" yaml:"app_id"`
	AppSecret string `json:"app_secret" yaml:"app_secret"`

	// BaseURL selects the tenant: https://open.feishu.cn or https://open.larksuite.com
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Connection settings
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	RateLimit  int           `json:"rate_limit" yaml:"rate_limit"` // requests per minute, 0 disables
}

// HasCredentials reports whether both app id and secret are set
func (c *FeishuConfig) HasCredentials() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// Validate validates the Feishu configuration. Credentials are optional here:
// a probe without them reports the missing credentials instead of failing startup.
func (c *FeishuConfig) Validate() error {
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	return nil
}

// SetDefaults fills zero values with defaults
func (c *FeishuConfig) SetDefaults() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.AppSecret = strings.TrimSpace(c.AppSecret)

	if c.BaseURL == "" {
		c.BaseURL = DefaultFeishuBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Timeout == 0 {
		c.Timeout = DefaultFeishuTimeout
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultFeishuMaxRetries
	}

	if c.RateLimit == 0 {
		c.RateLimit = DefaultFeishuRateLimit
	}
}

// ApplyEnvironment overlays FEISHU_* variables. Malformed numeric values are ignored.
func (c *FeishuConfig) ApplyEnvironment(lookup func(string) (string, bool)) {
	if v, ok := lookup("FEISHU_APP_ID"); ok && v != "" {
		c.AppID = v
	}

	if v, ok := lookup("FEISHU_APP_SECRET"); ok && v != "" {
		c.AppSecret = v
	}

	if v, ok := lookup("FEISHU_BASE_URL"); ok && v != "" {
		c.BaseURL = v
	}

	if v, ok := lookup("FEISHU_TIMEOUT"); ok && v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			c.Timeout = timeout
		}
	}

	if v, ok := lookup("FEISHU_MAX_RETRIES"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxRetries = n
		}
	}

	if v, ok := lookup("FEISHU_RATE_LIMIT"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RateLimit = n
		}
	}
}
