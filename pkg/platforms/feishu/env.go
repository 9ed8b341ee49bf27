package feishu

import (
	"os"

	"github.com/kart-io/clawprobe/pkg/config"
)

// LoadFromEnvironment creates a FeishuConfig from FEISHU_* environment variables:
// FEISHU_APP_ID, FEISHU_APP_SECRET, FEISHU_BASE_URL, FEISHU_TIMEOUT,
// FEISHU_MAX_RETRIES and FEISHU_RATE_LIMIT.
func LoadFromEnvironment() *config.FeishuConfig {
	return loadFromLookup(os.LookupEnv)
}

func loadFromLookup(lookup func(string) (string, bool)) *config.FeishuConfig {
	cfg := &config.FeishuConfig{}
	cfg.ApplyEnvironment(lookup)

	SetDefaults(cfg)
	return cfg
}
