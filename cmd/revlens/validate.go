package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/revlens/revlens/config"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the revlens configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Database is reachable (optional)

Examples:
  revlens validate
  revlens validate --config /etc/revlens/config.yaml`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	fmt.Printf("  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  %s Pricing source: %s\n", checkMark, cfg.Pricing.Source)
	if cfg.Cache.Enabled {
		fmt.Printf("  %s Report cache: %s\n", checkMark, cfg.Cache.Addr)
	}
	if cfg.Admin.Token == "" {
		fmt.Printf("  %s Admin token not set, admin API is unauthenticated\n", crossMark)
	}
	if cfg.Meter.Token == "" {
		fmt.Printf("  %s Meter token not set, metering API is unauthenticated\n", crossMark)
	}

	if validateCheckDatabase {
		stores, err := openStores(cfg)
		if err != nil {
			fmt.Printf("  %s Database reachable\n", crossMark)
			return err
		}
		stores.Close()
		fmt.Printf("  %s Database reachable\n", checkMark)
	}

	fmt.Println("\nConfiguration valid")
	return nil
}
