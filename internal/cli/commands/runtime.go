package commands

import (
	"fmt"
	"os"
	"strings"

	"ezvis/internal/config"
	"ezvis/internal/database"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// NewLogger maps a LOG_LEVEL value to a pterm logger writing to stderr.
// Supported values: trace, debug, info, warn, error, fatal.
func NewLogger(level string) *pterm.Logger {
	var ptermLevel pterm.LogLevel
	switch strings.ToLower(level) {
	case "trace":
		ptermLevel = pterm.LogLevelTrace
	case "debug":
		ptermLevel = pterm.LogLevelDebug
	case "info":
		ptermLevel = pterm.LogLevelInfo
	case "warn", "warning":
		ptermLevel = pterm.LogLevelWarn
	case "error":
		ptermLevel = pterm.LogLevelError
	case "fatal":
		ptermLevel = pterm.LogLevelFatal
	default:
		ptermLevel = pterm.LogLevelInfo
	}
	return pterm.DefaultLogger.WithLevel(ptermLevel).WithWriter(os.Stderr)
}

// loadRuntime loads configuration honoring the root --config and --log-level flags
func loadRuntime(cmd *cobra.Command) (*config.Config, *pterm.Logger, error) {
	cfg, err := config.Load(stringFlag(cmd, "config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if level := stringFlag(cmd, "log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger := NewLogger(cfg.LogLevel)
	logger.Debug("Configuration loaded",
		logger.Args(
			"db_path", cfg.Database.Path,
			"server", cfg.Server.Addr(),
			"geoip_enabled", cfg.GeoIP.Enabled,
			"batch_size", cfg.Import.BatchSize,
		))
	return cfg, logger, nil
}

// stringFlag reads a flag that may be inherited from the root command
func stringFlag(cmd *cobra.Command, name string) string {
	f := cmd.Flag(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func databaseConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Path:               cfg.Database.Path,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLife:        cfg.Database.ConnMaxLife,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}
}
