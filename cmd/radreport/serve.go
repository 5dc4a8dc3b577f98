package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/radreport/internal/server"
)

var (
	serveHost   string
	servePort   string
	serveDryRun bool
	serveCalls  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the radreport server",
	Long: `Start the radreport HTTP server.

The config file is watched: provider changes apply to the next report
without a restart. The template catalog is read once at startup.

The server provides:
  - /health                      - Basic server health check
  - /ready                       - Readiness check (catalog + LLM provider)
  - /api/reports/structure       - Structure a report
  - /swagger                     - API documentation
  - /                            - Web page for pasting reports

Examples:
  radreport serve                    # Start on the configured port (8080)
  radreport serve --port 3000        # Start on custom port
  radreport serve --host 0.0.0.0     # Bind to all interfaces
  radreport serve --dry-run          # Answer model calls locally`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		cm.SetLogger(logger)
		cm.WatchConfig()

		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		logger.Info("configuration loaded",
			"file", cm.ConfigFile(),
			"home", h.Path(),
			"templates", catalog.Len(),
			"provider", cfg.Defaults.LLMProvider)

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cm,
			Catalog:       catalog,
			Home:          h,
			CallHistory:   serveCalls,
			DryRun:        serveDryRun,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Answer model calls locally without a provider")
	serveCmd.Flags().IntVar(&serveCalls, "call-history", 0, "LLM calls kept in memory (0 = default)")

	rootCmd.AddCommand(serveCmd)
}
