package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kart-io/clawprobe/pkg/dockerhost"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
)

// Prober is satisfied by *feishu.Prober
type Prober interface {
	Probe(ctx context.Context, creds *feishu.Credentials) feishu.ProbeResult
}

// FeishuCheck probes the bot app behind creds
func FeishuCheck(prober Prober, creds *feishu.Credentials) Check {
	return func(ctx context.Context) CheckResult {
		result := prober.Probe(ctx, creds)

		details := map[string]interface{}{}
		if result.AppID != "" {
			details["appId"] = result.AppID
		}

		if !result.OK {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: result.Error,
				Details: details,
				Error:   fmt.Errorf("%s", result.Error),
			}
		}

		details["botName"] = result.BotName
		details["botOpenId"] = result.BotOpenID

		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("Feishu bot %q reachable", result.BotName),
			Details: details,
		}
	}
}

// DockerHostCheck reports the address sandboxes use to reach the host.
// Resolution cannot fail, so the check is always healthy.
func DockerHostCheck(resolver *dockerhost.Resolver, configValue string) Check {
	return func(ctx context.Context) CheckResult {
		res := resolver.ResolveWithSource(configValue)
		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("Docker host resolves to %s", res.Address),
			Details: map[string]interface{}{
				"address":  res.Address,
				"source":   string(res.Source),
				"platform": string(resolver.Platform()),
			},
		}
	}
}

// TCPHealthCheck creates a health check for TCP connectivity
func TCPHealthCheck(address string, timeout time.Duration) Check {
	return func(ctx context.Context) CheckResult {
		details := map[string]interface{}{
			"address": address,
			"timeout": timeout.String(),
		}

		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			details["error"] = err.Error()
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("TCP connection to %s failed: %v", address, err),
				Details: details,
				Error:   err,
			}
		}
		_ = conn.Close()

		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("TCP connection to %s successful", address),
			Details: details,
		}
	}
}

// RedisHealthCheck creates a health check for Redis connectivity
func RedisHealthCheck(client redis.UniversalClient) Check {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		if err := client.Ping(ctx).Err(); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("Redis ping failed: %v", err),
				Details: map[string]interface{}{
					"error": err.Error(),
				},
				Error: err,
			}
		}

		return CheckResult{
			Status:  StatusHealthy,
			Message: "Redis connection successful",
			Details: map[string]interface{}{
				"latency": time.Since(start).String(),
			},
		}
	}
}
