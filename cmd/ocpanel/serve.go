package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.ServerAddr = addr
			}

			explorer, err := ocpanel.New(a.cfg, ocpanel.WithLogger(a.logger))
			if err != nil {
				return err
			}
			// a missing source is reported per request until a reload succeeds
			if err := explorer.Reload(cmd.Context()); err != nil {
				a.logger.Warn("starting without data", slog.String("error", err.Error()))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(explorer, server.WithLogger(a.logger)).ListenAndServe(ctx, a.cfg.ServerAddr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
