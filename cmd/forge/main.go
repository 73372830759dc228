// AngelaMos | 2026
// main.go

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/viralforge/forge/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "forge",
	Short:         "ViralForge entitlements and usage-limit service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath, "config", "c", "",
		"path to a YAML config file (env vars override it)",
	)

	rootCmd.AddCommand(serveCmd, migrateCmd, plansCmd, tokenCmd, usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the configured logger as the
// slog default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
