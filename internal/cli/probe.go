package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"io"

	"github.com/kart-io/clawprobe/pkg/observability"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
)

// ErrProbeFailed is returned after a failed probe result has been printed
var ErrProbeFailed = errors.New("probe failed")

const probeUsage = `Usage: clawprobe probe [options]

Checks the Feishu app credentials and prints the bot identity as JSON.
Credentials come from -app-id/-app-secret, the config file, or
FEISHU_APP_ID and FEISHU_APP_SECRET. Exits non-zero when the probe fails.`

// RunProbe probes the configured Feishu bot once
func RunProbe(args []string, stdout, stderr io.Writer) error {
	var (
		common    commonFlags
		appID     string
		appSecret string
	)

	fs := newFlagSet("probe", probeUsage, stderr)
	common.register(fs)
	fs.StringVar(&appID, "app-id", "", "Feishu app id (overrides config)")
	fs.StringVar(&appSecret, "app-secret", "", "Feishu app secret (overrides config)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, log, err := common.load()
	if err != nil {
		return err
	}

	creds := feishu.CredentialsFromConfig(&cfg.Feishu)
	if appID != "" {
		creds.AppID = appID
	}
	if appSecret != "" {
		creds.AppSecret = appSecret
	}

	ctx, cancel := signalContext()
	defer cancel()

	telemetry, err := observability.NewTelemetryProvider(&cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetry.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	store, err := feishu.NewBotInfoStore(&cfg.Cache, log)
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	prober := feishu.NewProber(
		feishu.WithStore(store),
		feishu.WithClientConfig(&cfg.Feishu),
		feishu.WithProberLogger(log),
		feishu.WithProberTelemetry(telemetry),
	)
	defer prober.Close()

	result := prober.Probe(ctx, creds)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.OK {
		return ErrProbeFailed
	}
	return nil
}
