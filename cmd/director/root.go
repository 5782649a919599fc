package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/director/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "director",
	Short: "Director decides how the next turn of a two-party conversation should go",
	Long: `Director reads a conversation transcript and emits a Directive for the next turn:
who speaks, how long, which speech act, and whether to fact-check, refocus or
acknowledge an earlier point.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file (DIRECTOR_* variables override it)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig resolves the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}
