package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	catanalyzer "github.com/menta2k/cat-analyzer"
	"github.com/menta2k/cat-analyzer/internal/config"
	"github.com/menta2k/cat-analyzer/internal/server"
	"github.com/menta2k/cat-analyzer/internal/store"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis API",
		Long: `Starts the analysis API server.

The server accepts photo uploads and image URLs, stores positive results
in SQLite, and pushes every new analysis to websocket subscribers.`,
		Example: `  # Start with defaults (port 8000)
  cat-analyzer serve

  # Custom bind address
  cat-analyzer serve --host 127.0.0.1 --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			slog.SetDefault(logger)

			eng, err := buildEngine(cfg.Engine)
			if err != nil {
				return err
			}

			analyzer := catanalyzer.NewWithConfig(eng, analyzerConfig(cfg))
			analyzer.SetLogger(logger)
			defer analyzer.Close()

			st, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("Starting cat-analyzer", "version", catanalyzer.GetVersion(),
				"backend", cfg.Engine.Backend, "db", cfg.Store.Path)

			srv := server.New(cfg.Server, analyzer, st, logger)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (overrides config)")

	return cmd
}
