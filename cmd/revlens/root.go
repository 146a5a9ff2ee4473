package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "revlens",
	Short: "Revenue and usage reporting for subscription services",
	Long: `revlens aggregates subscription revenue, per-model API costs and
external costs into earnings reports.

Quick start:
  revlens serve       # Start the reporting server
  revlens report      # Print an earnings report for the last 30 days

Management:
  revlens subscribers # Inspect subscribers
  revlens validate    # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "revlens.yaml", "config file path")
}
