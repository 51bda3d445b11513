package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"messenger-service/internal/config"
	"messenger-service/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "messenger-service",
	Short:   "One-to-one messaging backend: accounts, chats, messages and live updates",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	RunE:    runServe,
}

// Execute runs the CLI. Without a subcommand it serves.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config overlay (same as CONFIG_FILE)")
}

// loadConfig applies the --config flag, loads settings and builds the root logger.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if _, err := logger.Init(cfg.LogLevel, cfg.IsDevelopment()); err != nil {
		return config.Config{}, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
