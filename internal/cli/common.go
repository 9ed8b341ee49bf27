// Package cli implements the clawprobe subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/logger"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// commonFlags are accepted by every subcommand
type commonFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a YAML config file (default: environment only)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: silent, error, warn, info, debug (overrides config)")
	fs.StringVar(&c.logFormat, "log-format", FormatText, "log format: text or json")
}

// load reads the configuration and builds the logger it asks for
func (c *commonFlags) load() (*config.Config, logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.Parse(nil, os.LookupEnv)
	}
	if err != nil {
		return nil, nil, err
	}

	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	log, err := newLogger(c.logFormat, logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

func newLogger(format string, level logger.LogLevel) (logger.Logger, error) {
	switch format {
	case "", FormatText:
		return logger.New(level), nil
	case FormatJSON:
		return logger.NewProductionZapLogger(level)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name, usage string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}
	return fs
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
