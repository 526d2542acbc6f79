package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/cmskit/bootstrap"
	"github.com/artpar/cmskit/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
	envFile   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the cmskit API server.

The server will:
  - Load variables from .env (or --env-file) when present
  - Load configuration from cmskit.yaml (or --config)
  - Or load configuration from CMSKIT_* environment variables
  - Connect to the database and apply migrations
  - Select one provider per capability for the deployment mode
  - Serve the API, health checks and metrics

Environment variables (for Docker deployments):
  CMSKIT_MODE              - self_hosted or hosted
  CMSKIT_DATABASE_DSN      - SQLite path or Postgres URL
  CMSKIT_CACHE_PROVIDER    - disabled, memory, filesystem, redis or s3
  CMSKIT_REMOTE_URL        - Control plane URL (hosted mode)
  CMSKIT_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  cmskit serve
  cmskit serve --config /etc/cmskit/config.yaml
  cmskit serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the log level when the config file changes or on SIGHUP")
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}

	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if !hasConfigFile {
		fmt.Fprintln(cmd.OutOrStdout(), "Running with environment variables (no config file)")
	}

	opts := bootstrap.Options{Version: version}
	if hasConfigFile && hotReload {
		logger := bootstrap.NewLogger(cfg.Logging, os.Stdout)
		holder, err := config.NewHolderWith(cfg, cfgFile, logger)
		if err != nil {
			return err
		}
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
		opts.Holder = holder
	}

	app, err := bootstrap.New(context.Background(), cfg, opts)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
