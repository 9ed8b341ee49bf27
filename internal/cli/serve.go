package cli

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"time"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/dockerhost"
	"github.com/kart-io/clawprobe/pkg/health"
	"github.com/kart-io/clawprobe/pkg/logger"
	"github.com/kart-io/clawprobe/pkg/observability"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
	httptransport "github.com/kart-io/clawprobe/transport/http"
)

const serveUsage = `Usage: clawprobe serve [options]

Runs the HTTP server exposing /healthz, /probe, /docker-host and /metrics,
and re-runs the health checks on the configured interval.`

const shutdownTimeout = 10 * time.Second

// RunServe runs the HTTP server until SIGINT or SIGTERM
func RunServe(args []string, stderr io.Writer) error {
	var (
		common commonFlags
		addr   string
	)

	fs := newFlagSet("serve", serveUsage, stderr)
	common.register(fs)
	fs.StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
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
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	metrics := httptransport.NewMetrics(nil)

	telemetry, err := observability.NewTelemetryProvider(&cfg.Telemetry,
		observability.WithPrometheusRegisterer(metrics.Registry()),
	)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
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
	creds := feishu.CredentialsFromConfig(&cfg.Feishu)
	resolver := dockerhost.NewResolver()

	checker := health.NewHealthChecker(log)
	checker.SetInterval(cfg.Health.Interval)
	checker.SetTimeout(cfg.Health.Timeout)
	checker.SetVersion(cfg.Telemetry.ServiceVersion)
	checker.RegisterCheck("feishu", health.FeishuCheck(prober, creds))
	checker.RegisterCheck("docker_host", health.DockerHostCheck(resolver, cfg.Sandbox.DockerHost))
	if rs, ok := store.(*feishu.RedisBotInfoStore); ok {
		checker.RegisterCheck("redis", health.RedisHealthCheck(rs.Client()))
	}

	server := httptransport.NewHTTPServer(httptransport.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		APIKeys:      cfg.Server.APIKeys,
	}, httptransport.Dependencies{
		Checker:          checker,
		Prober:           prober,
		Credentials:      creds,
		Resolver:         resolver,
		DockerHostConfig: cfg.Sandbox.DockerHost,
		Metrics:          metrics,
		Logger:           log,
	})

	checker.StartPeriodicChecks(ctx)
	defer checker.StopPeriodicChecks()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down", "addr", cfg.Server.Addr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func closeStore(store feishu.BotInfoStore, log logger.Logger) {
	c, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("Closing bot info store failed", "error", err)
	}
}
