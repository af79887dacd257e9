// file: cmd/webhook-gateway/main.go

package main

import (
	"fmt"
	"log"

	flag "github.com/spf13/pflag"

	"webhook-gateway/config"
	"webhook-gateway/internal/app"
	"webhook-gateway/internal/lifecycle"
	"webhook-gateway/internal/logger"
)

type options struct {
	configPath  string
	envFile     string
	envRequired bool
	httpAddr    string
	metricsAddr string
	logLevel    string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts := parseFlags()

	envFile := config.NewEnvFile(opts.envFile, opts.envRequired)

	// Env file and config are re-read on every reload so rotated keys are picked up
	loadConfig := func() (*config.Config, error) {
		if _, err := envFile.Load(); err != nil {
			return nil, err
		}
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyOverrides(opts.httpAddr, opts.metricsAddr, opts.logLevel)
		return cfg, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	first := true
	createApp := func() (lifecycle.Application, error) {
		if !first {
			cfg, err = loadConfig()
			if err != nil {
				return nil, err
			}
			appLogger.SetLevel(cfg.Logging.Level)
		}
		first = false
		// One logger for the process; encoding and output path changes need a restart
		return app.NewGatewayApp(cfg, appLogger)
	}

	return lifecycle.RunWithReload(createApp, appLogger)
}

// parseFlags parses command line arguments
func parseFlags() options {
	var opts options
	flag.StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML or JSON); empty uses defaults and environment")
	flag.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with sender keys and overrides; ignored when missing unless set explicitly")
	flag.StringVar(&opts.httpAddr, "http-addr", "", "override HTTP listen address (empty = use config)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "override metrics server address and enable metrics (empty = use config)")
	flag.StringVar(&opts.logLevel, "log-level", "", "override log level: debug, info, warn, error (empty = use config)")
	flag.Parse()
	opts.envRequired = flag.CommandLine.Changed("env-file")
	return opts
}
