// netbox-dns-handler publishes NetBox IP addresses and services as A, AAAA
// and SRV records in a PowerDNS SQL database.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alexbarcelo/netbox-dns-handler/internal/config"
	"github.com/alexbarcelo/netbox-dns-handler/internal/metrics"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// app carries the global flags and the state shared by subcommands.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	dryRun     bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "netbox-dns-handler",
		Short: "Publish NetBox addresses and services to PowerDNS",
		Long: "netbox-dns-handler reads IP addresses and services from NetBox and\n" +
			"creates, updates and prunes the matching A, AAAA and SRV records in a\n" +
			"PowerDNS generic SQL database.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file, YAML or TOML (env "+config.ConfigPathEnv+")")
	f.StringVar(&a.envFile, "env-file", "", "Load environment variables from this file (default ./.env when present)")
	f.StringVar(&a.logLevel, "log-level", "", "Override the log level (debug|info|warn|error)")
	f.StringVar(&a.logFormat, "log-format", "", "Override the log format (json|text)")
	f.BoolVar(&a.dryRun, "dry-run", false, "Run every pass and roll it back")

	cmd.AddCommand(newCmdSync(a))
	cmd.AddCommand(newCmdServe(a))
	cmd.AddCommand(newCmdResolve(a))
	cmd.AddCommand(newCmdVerify(a))
	cmd.AddCommand(newCmdMigrate(a))
	cmd.AddCommand(newCmdVersion())
	return cmd
}

// setup loads the environment file and the configuration, applies the
// command-line overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := loadEnvFile(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = a.dryRun
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	metrics.SetBuildInfo(Version, runtime.Version())
	return nil
}

// loadEnvFile loads path, which must exist, or ./.env when present.
// Variables already set in the environment are kept.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

func setupLogger(level, format string, w io.Writer) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
