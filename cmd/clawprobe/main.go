package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kart-io/clawprobe/internal/cli"
)

const usage = `clawprobe - Feishu bot probe and Docker host resolver

Usage:
  clawprobe <command> [options]

Commands:
  probe         Check Feishu app credentials and print the bot identity
  docker-host   Print the address sandbox containers use to reach the host
  serve         Run the health, probe and metrics HTTP server

Run 'clawprobe <command> -h' for help on a specific command.`

func main() {
	if err := run(); err != nil {
		// The probe result already explains the failure.
		if !errors.Is(err, cli.ErrProbeFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return nil
	}

	switch os.Args[1] {
	case "probe":
		return cli.RunProbe(os.Args[2:], os.Stdout, os.Stderr)
	case "docker-host":
		return cli.RunDockerHost(os.Args[2:], os.Stdout, os.Stderr)
	case "serve":
		return cli.RunServe(os.Args[2:], os.Stderr)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\nRun 'clawprobe help' for usage", os.Args[1])
	}
}
