package dockerhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linuxResolver(env map[string]string) *Resolver {
	return NewResolver(WithPlatform(PlatformLinux), WithEnv(env))
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		config string
		want   string
		source Source
	}{
		{
			name:   "env var when set",
			env:    map[string]string{EnvDockerHost: "10.0.2.2"},
			want:   "10.0.2.2",
			source: SourceEnv,
		},
		{
			name:   "env var takes precedence over config",
			env:    map[string]string{EnvDockerHost: "10.0.2.2"},
			config: "192.168.1.1",
			want:   "10.0.2.2",
			source: SourceEnv,
		},
		{
			name:   "config value when no env var",
			config: "192.168.1.1",
			want:   "192.168.1.1",
			source: SourceConfig,
		},
		{
			name:   "trims env var",
			env:    map[string]string{EnvDockerHost: "  10.0.2.2  "},
			want:   "10.0.2.2",
			source: SourceEnv,
		},
		{
			name:   "trims config value",
			config: "  192.168.1.1  ",
			want:   "192.168.1.1",
			source: SourceConfig,
		},
		{
			name:   "wraps IPv6 from env",
			env:    map[string]string{EnvDockerHost: "::1"},
			want:   "[::1]",
			source: SourceEnv,
		},
		{
			name:   "does not double-wrap IPv6",
			env:    map[string]string{EnvDockerHost: "[::1]"},
			want:   "[::1]",
			source: SourceEnv,
		},
		{
			name:   "wraps IPv6 from config",
			config: " fe80::1 ",
			want:   "[fe80::1]",
			source: SourceConfig,
		},
		{
			name:   "ignores blank env var",
			env:    map[string]string{EnvDockerHost: "   "},
			want:   BridgeGateway,
			source: SourcePlatform,
		},
		{
			name:   "blank env falls through to config",
			env:    map[string]string{EnvDockerHost: ""},
			config: "host.lima.internal",
			want:   "host.lima.internal",
			source: SourceConfig,
		},
		{
			name:   "ignores blank config value",
			config: "   ",
			want:   BridgeGateway,
			source: SourcePlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := linuxResolver(tt.env)
			assert.Equal(t, tt.want, r.Resolve(tt.config))

			res := r.ResolveWithSource(tt.config)
			assert.Equal(t, tt.want, res.Address)
			assert.Equal(t, tt.source, res.Source)
		})
	}
}

func TestResolve_PlatformDefaults(t *testing.T) {
	tests := []struct {
		platform Platform
		want     string
	}{
		{PlatformDarwin, "host.docker.internal"},
		{PlatformWin32, "host.docker.internal"},
		{PlatformLinux, "172.17.0.1"},
		{Platform("freebsd"), "172.17.0.1"},
		{Platform(""), "172.17.0.1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			r := NewResolver(WithPlatform(tt.platform), WithLookup(nil))
			assert.Equal(t, tt.want, r.Resolve(""))
			assert.Equal(t, tt.platform, r.Platform())
		})
	}
}

func TestResolve_ConfigBeatsPlatformOnDesktop(t *testing.T) {
	r := NewResolver(WithPlatform(PlatformDarwin), WithEnv(nil))
	assert.Equal(t, "192.168.1.1", r.Resolve("192.168.1.1"))
}

func TestResolve_ReadsEnvironmentEachCall(t *testing.T) {
	env := map[string]string{}
	r := linuxResolver(env)
	assert.Equal(t, BridgeGateway, r.Resolve(""))

	env[EnvDockerHost] = "10.0.2.2"
	assert.Equal(t, "10.0.2.2", r.Resolve(""))
}

func TestResolve_ProcessEnvironment(t *testing.T) {
	t.Setenv(EnvDockerHost, " 10.0.2.2 ")
	assert.Equal(t, "10.0.2.2", Resolve("192.168.1.1"))
}

func TestPlatformFromGOOS(t *testing.T) {
	assert.Equal(t, PlatformWin32, PlatformFromGOOS("windows"))
	assert.Equal(t, PlatformDarwin, PlatformFromGOOS("darwin"))
	assert.Equal(t, PlatformLinux, PlatformFromGOOS("linux"))
	assert.Equal(t, Platform("plan9"), PlatformFromGOOS("plan9"))
	assert.NotEmpty(t, CurrentPlatform())
}

func TestNormalize(t *testing.T) {
	inputs := []string{
		"", "   ", "::1", "[::1]", " [::1] ", "10.0.2.2", " host.docker.internal ",
		"fe80::1%eth0", "[fe80::1", "host:8080", "\t2001:db8::1\n",
	}

	assert.Equal(t, "[::1]", Normalize("::1"))
	assert.Equal(t, "[::1]", Normalize("[::1]"))
	assert.Equal(t, "10.0.2.2", Normalize(" 10.0.2.2 "))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "[2001:db8::1]", Normalize("\t2001:db8::1\n"))

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", in)
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://172.17.0.1:8080", BaseURL("http", "172.17.0.1", 8080))
	assert.Equal(t, "http://[::1]:8080", BaseURL("http", "::1", 8080))
	assert.Equal(t, "http://[::1]:8080", BaseURL("http", "[::1]", 8080))
	assert.Equal(t, "https://host.docker.internal", BaseURL("https", "host.docker.internal", 0))
}
