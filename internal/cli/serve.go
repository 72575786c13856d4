package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/internal/server"
	"github.com/tnpagents/processmate/pkg/pipeline"
)

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagram and process-store HTTP API",
		Long: `Serve the HTTP API: diagram generation, layout, preview and validation
endpoints, a process-table store, /healthz and Prometheus /metrics.

Backends for the cache (file, redis, none) and the store (file, mongo) come
from the [cache] and [store] sections of the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			st, err := c.cfg.Store.Open(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			metrics := server.NewMetrics()
			metrics.Register()

			srv := server.New(server.Options{
				Runner:  runner,
				Store:   st,
				Logger:  c.Logger,
				Config:  cfg,
				Metrics: metrics,
				Defaults: pipeline.Options{
					Title:    c.cfg.Diagram.Title,
					NoColors: c.cfg.Diagram.NoColors,
					Strict:   c.cfg.Diagram.Strict,
					Layout:   c.cfg.Layout,
				},
			})
			c.Logger.Info("starting server", "cache", c.cfg.Cache.Backend, "store", c.cfg.Store.Backend)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
