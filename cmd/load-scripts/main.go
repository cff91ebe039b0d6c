// Command load-scripts loads the scripts of a manifest into a JavaScript VM,
// each name at most once and in manifest order, and reports how each load
// settled.
//
// Usage:
//
//	load-scripts run -f scripts.yaml      # Load every script and wait for them
//	load-scripts validate -f scripts.yaml # Only check the manifest
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "load-scripts",
		Short: "Load a manifest of scripts into a JavaScript VM",
		Long: `load-scripts fetches and runs the scripts listed in a manifest.

A manifest is a YAML mapping of script name to url. Scripts run in the
order they are listed, and a name is only ever loaded once.

Example manifest:
  core: https://cdn.example.com/core.js
  plugin: https://cdn.example.com/plugin.js`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(1)
	}
}
