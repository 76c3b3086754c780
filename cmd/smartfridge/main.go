// Smart Fridge - device controller
//
// This is the main entry point for the smart fridge controller. It samples
// the cabinet temperature and humidity, drives the door latch and the alarm
// buzzer, and serves the operator page and HTTP API.
//
// Usage:
//
//	smartfridge [--config path]          run the controller
//	smartfridge migrate [--down]         apply (or roll back) the event log schema
//	smartfridge history [--limit n]      print recent controller events
//	smartfridge version                  print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the controller
// until SIGINT or SIGTERM.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "smartfridge",
		Short: "Run the smart fridge controller.",
		Long: `Runs the smart fridge controller: samples temperature and humidity,
drives the door latch and alarm buzzer, records state changes to the local
event log and serves the operator page on the configured HTTP port.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, resolveConfigPath(configPath))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default $SMARTFRIDGE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		newVersionCmd(),
		newMigrateCmd(&configPath),
		newHistoryCmd(&configPath),
	)

	return root
}

// resolveConfigPath returns the configuration file path: the --config flag,
// then the SMARTFRIDGE_CONFIG environment variable, then the default.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("SMARTFRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smartfridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
