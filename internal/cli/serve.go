package cli

import (
	"github.com/spf13/cobra"

	"github.com/jlguenego/jlgcli/internal/output"
	"github.com/jlguenego/jlgcli/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and logs over HTTP",
		Long: `Serve the runs recorded in the working directory as a read-only JSON API:

  GET /status                      version, uptime and backends (?check=true probes them)
  GET /api/runs                    recorded runs (?page, ?limit, ?status)
  GET /api/runs/{id}               one run with its metadata
  GET /api/runs/{id}/transcript    the run transcript events
  GET /api/runs/{id}/logs          log entries recorded with the run
  GET /api/logs                    this server's log entries (?level, ?run_id, ?since, ?until, ?limit)
  GET /api/logs/stats              log counters

Without a run index in the working directory the /api/runs endpoints answer
503 and nothing is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := a.openHistory()
			if err != nil {
				return err
			}
			cfg := server.Config{
				Root:     a.dir,
				Version:  Version,
				Registry: a.registry,
				Log:      a.log,
			}
			if ok {
				defer store.Close()
				cfg.History = store
			} else {
				a.printer.Printf(output.Minimal, "No run index in %s: run history is unavailable", a.dir)
			}

			a.printer.Printf(output.Minimal, "Listening on http://%s", addr)
			srv := server.New(cfg)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	return cmd
}
