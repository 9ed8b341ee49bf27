package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/kart-io/clawprobe/pkg/dockerhost"
)

const dockerHostUsage = `Usage: clawprobe docker-host [options]

Prints the address sandbox containers use to reach the host.
OPENCLAW_DOCKER_HOST wins over -value and sandbox.docker_host, which win
over the platform default.`

// RunDockerHost resolves and prints the Docker host address
func RunDockerHost(args []string, stdout, stderr io.Writer) error {
	var (
		common  commonFlags
		value   string
		asJSON  bool
		verbose bool
	)

	fs := newFlagSet("docker-host", dockerHostUsage, stderr)
	common.register(fs)
	fs.StringVar(&value, "value", "", "configured address (overrides sandbox.docker_host)")
	fs.BoolVar(&asJSON, "json", false, "print address, source and platform as JSON")
	fs.BoolVar(&verbose, "v", false, "print where the address came from")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, _, err := common.load()
	if err != nil {
		return err
	}

	configValue := cfg.Sandbox.DockerHost
	if value != "" {
		configValue = value
	}

	resolver := dockerhost.NewResolver()
	res := resolver.ResolveWithSource(configValue)

	switch {
	case asJSON:
		return json.NewEncoder(stdout).Encode(struct {
			dockerhost.Resolution
			Platform dockerhost.Platform `json:"platform"`
		}{res, resolver.Platform()})
	case verbose:
		_, err = fmt.Fprintf(stdout, "%s (source: %s, platform: %s)\n", res.Address, res.Source, resolver.Platform())
	default:
		_, err = fmt.Fprintln(stdout, res.Address)
	}
	return err
}
