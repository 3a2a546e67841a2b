// Package main implements the reasond daemon and demo CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reasond",
	Short: "Autonomous knowledge-graph reasoning agent",
	Long: `reasond answers reasoning tasks by traversing a knowledge graph,
retaining experience in a tiered memory store, and scoring the confidence
of derived answers.

Tasks are submitted over the HTTP API (serve) or run one-shot against a
built-in sample graph (demo).`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)
}
