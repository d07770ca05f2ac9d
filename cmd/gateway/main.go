// Package main is the entry point for the API Gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Environment variables read as flag defaults.
const (
	envConfigPath = "GATEWAY_CONFIG_PATH"
	envLogLevel   = "GATEWAY_LOG_LEVEL"
	envLogFormat  = "GATEWAY_LOG_FORMAT"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags. Environment variables provide the
// defaults.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault(envConfigPath, ""),
		"Path to configuration file; the built-in routes are used when empty")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault(envLogLevel, ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault(envLogFormat, ""),
		"Log format (json, console); overrides the configuration")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "apigateway version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// run loads the configuration, serves until ctx is canceled, then shuts
// down.
func run(ctx context.Context, flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting apigateway",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.Int("routes", len(cfg.Routes)),
	)

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize gateway", observability.Error(err))
		return err
	}

	return app.run(ctx)
}

// loadConfig reads the configuration file, or the built-in configuration
// when no path is given, and applies flag overrides.
func loadConfig(flags cliFlags) (*config.GatewayConfig, error) {
	var cfg *config.GatewayConfig
	if flags.configPath == "" {
		cfg = config.DefaultConfig()
		config.AuthKeysFromEnv(&cfg.Auth)
	} else {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger.
func initLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
