package main

import (
	"os"

	"github.com/spf13/cobra"

	revhttp "github.com/revlens/revlens/adapters/http"
	"github.com/revlens/revlens/bootstrap"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reporting server",
	Long: `Start the revlens HTTP server.

The server will:
  - Load configuration from revlens.yaml (or --config)
  - Or load configuration from REVLENS_* environment variables
  - Connect to the database and run migrations
  - Serve the admin API at /admin/v1 and the metering API at /api/v1/meter

Environment variables (for Docker deployments):
  REVLENS_DATABASE_DRIVER   - sqlite, postgres or memory (default: sqlite)
  REVLENS_DATABASE_DSN      - Database path or connection string
  REVLENS_SERVER_PORT       - Server port (default: 8080)
  REVLENS_ADMIN_TOKEN       - Admin API token
  REVLENS_METER_TOKEN       - Metering API token
  REVLENS_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  revlens serve
  revlens serve --config /etc/revlens/config.yaml
  revlens serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	revhttp.Version = version

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: configPathIfPresent(),
		HotReload:  hotReload,
	})
	if err != nil {
		return err
	}

	return app.Run()
}

// configPathIfPresent returns the configured file path when the file exists,
// so bootstrap falls back to environment variables otherwise.
func configPathIfPresent() string {
	if _, err := os.Stat(cfgFile); err == nil {
		return cfgFile
	}
	return ""
}
