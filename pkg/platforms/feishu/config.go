// Package feishu probes Feishu/Lark bot apps through the open API.
// This file handles credentials and client configuration.
package feishu

import (
	"fmt"

	"github.com/kart-io/clawprobe/pkg/config"
)

// Credentials identify a Feishu app
type Credentials struct {
	AppID     string `json:"appId" yaml:"app_id"`
	AppSecret string `json:"appSecret" yaml:"app_secret"`
}

// Complete reports whether both the app id and secret are present
func (c *Credentials) Complete() bool {
	return c != nil && c.AppID != "" && c.AppSecret != ""
}

// CredentialsFromConfig extracts the app credentials from cfg
func CredentialsFromConfig(cfg *config.FeishuConfig) *Credentials {
	if cfg == nil {
		return nil
	}
	return &Credentials{AppID: cfg.AppID, AppSecret: cfg.AppSecret}
}

// ValidateConfig validates the Feishu configuration
func ValidateConfig(cfg *config.FeishuConfig) error {
	if cfg == nil {
		return fmt.Errorf("feishu config cannot be nil")
	}
	return cfg.Validate()
}

// SetDefaults sets default values for Feishu configuration
func SetDefaults(cfg *config.FeishuConfig) {
	cfg.SetDefaults()
}

// DefaultConfig returns a Feishu configuration with defaults and no credentials
func DefaultConfig() *config.FeishuConfig {
	cfg := &config.FeishuConfig{}
	SetDefaults(cfg)
	return cfg
}
