// Package dockerhost resolves the address a containerized sandbox uses to
// reach the machine it runs on.
//
// Precedence:
//  1. OPENCLAW_DOCKER_HOST environment variable (CI, temporary overrides)
//  2. Configured value (persistent user configuration)
//  3. Platform default
//
// Common values for non-standard setups: rootless Docker and Podman use
// 10.0.2.2, Colima uses host.lima.internal, custom bridges use their gateway IP.
package dockerhost

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EnvDockerHost is the environment variable that overrides every other source.
const EnvDockerHost = "OPENCLAW_DOCKER_HOST"

const (
	// DesktopHost is provided by Docker Desktop on macOS and Windows.
	DesktopHost = "host.docker.internal"
	// BridgeGateway is the default docker0 bridge gateway on Linux.
	BridgeGateway = "172.17.0.1"
)

// Platform identifies the host operating system family.
type Platform string

const (
	PlatformDarwin Platform = "darwin"
	PlatformWin32  Platform = "win32"
	PlatformLinux  Platform = "linux"
)

// CurrentPlatform maps runtime.GOOS to a Platform. "windows" becomes
// PlatformWin32; other values are passed through unchanged.
func CurrentPlatform() Platform {
	return PlatformFromGOOS(runtime.GOOS)
}

// PlatformFromGOOS maps a GOOS value to a Platform.
func PlatformFromGOOS(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWin32
	case "darwin":
		return PlatformDarwin
	default:
		return Platform(goos)
	}
}

// HasDesktopHost reports whether Docker on this platform runs inside a VM
// that exposes host.docker.internal.
func (p Platform) HasDesktopHost() bool {
	return p == PlatformDarwin || p == PlatformWin32
}

// DefaultHost returns the platform fallback address.
func (p Platform) DefaultHost() string {
	if p.HasDesktopHost() {
		return DesktopHost
	}
	// Rootless Docker, Podman, custom bridges and Docker-in-Docker need an override.
	return BridgeGateway
}

// Source names the tier that produced a resolved address.
type Source string

const (
	SourceEnv      Source = "env"
	SourceConfig   Source = "config"
	SourcePlatform Source = "platform"
)

// Resolution is a resolved address and where it came from.
type Resolution struct {
	Address string `json:"address"`
	Source  Source `json:"source"`
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Resolver resolves the host address for a fixed platform and environment.
// The zero value is not usable; use NewResolver.
type Resolver struct {
	platform Platform
	lookup   LookupFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlatform injects the platform instead of detecting it.
func WithPlatform(p Platform) Option {
	return func(r *Resolver) { r.platform = p }
}

// WithLookup injects the environment lookup. A nil lookup means no environment.
func WithLookup(lookup LookupFunc) Option {
	return func(r *Resolver) {
		if lookup == nil {
			lookup = func(string) (string, bool) { return "", false }
		}
		r.lookup = lookup
	}
}

// WithEnv uses a fixed map as the environment.
func WithEnv(env map[string]string) Option {
	return WithLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

// NewResolver creates a resolver for the current platform reading the
// process environment, unless overridden by options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		platform: CurrentPlatform(),
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Platform returns the platform the resolver was built for.
func (r *Resolver) Platform() Platform {
	return r.platform
}

// Resolve returns the host address. configValue may be blank, which is
// treated as absent. The environment is read on every call.
func (r *Resolver) Resolve(configValue string) string {
	return r.ResolveWithSource(configValue).Address
}

// ResolveWithSource is Resolve plus the tier that produced the address.
func (r *Resolver) ResolveWithSource(configValue string) Resolution {
	if env, ok := r.lookup(EnvDockerHost); ok && strings.TrimSpace(env) != "" {
		return Resolution{Address: Normalize(env), Source: SourceEnv}
	}

	if strings.TrimSpace(configValue) != "" {
		return Resolution{Address: Normalize(configValue), Source: SourceConfig}
	}

	return Resolution{Address: r.platform.DefaultHost(), Source: SourcePlatform}
}

// Resolve resolves using the current platform and process environment.
func Resolve(configValue string) string {
	return NewResolver().Resolve(configValue)
}

// Normalize trims whitespace and wraps a bare IPv6 literal in brackets so
// it can be embedded in a URL. Already-bracketed input is left alone.
func Normalize(host string) string {
	trimmed := strings.TrimSpace(host)
	if strings.Contains(trimmed, ":") && !strings.HasPrefix(trimmed, "[") {
		return "[" + trimmed + "]"
	}
	return trimmed
}

// BaseURL joins scheme, a resolved address and a port. The address is
// normalized first, so IPv6 literals end up bracketed exactly once.
func BaseURL(scheme, address string, port int) string {
	host := Normalize(address)
	if port <= 0 {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
