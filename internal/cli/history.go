package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jlguenego/jlgcli/internal/api"
	"github.com/jlguenego/jlgcli/internal/artifacts"
	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/output"
)

// openHistory opens the index of the working directory. A missing index is
// reported as ok=false rather than created.
func (a *app) openHistory() (*history.Store, bool, error) {
	path := history.DefaultPath(a.dir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, false, err
	}
	return store, true, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse runs recorded with --artifacts",
	}

	var (
		opts   history.ListOptions
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := a.openHistory()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				if asJSON {
					return output.WriteJSON(out, history.ListResult{Entries: []history.Entry{}, Page: 1, Limit: history.DefaultLimit})
				}
				fmt.Fprintln(out, "No runs recorded. Use --artifacts with run or loop.")
				return nil
			}
			defer store.Close()

			res, err := store.List(opts)
			if err != nil {
				return err
			}
			if asJSON {
				return output.WriteJSON(out, res)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOMMAND\tBACKEND\tSTATUS\tEXIT\tITER\tDURATION\tPROMPT")
			for _, e := range res.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.ID, e.Command, e.Backend, e.Status, e.ExitCode, e.Iterations,
					output.FormatDuration(msDuration(e.DurationMs)), output.Preview(e.PromptPreview, 40))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if res.TotalPages > 1 {
				fmt.Fprintf(out, "page %d/%d (%d runs)\n", res.Page, res.TotalPages, res.Total)
			}
			return nil
		},
	}
	list.Flags().IntVar(&opts.Page, "page", 1, "page number")
	list.Flags().IntVar(&opts.Limit, "limit", history.DefaultLimit, "runs per page (max 100)")
	list.Flags().StringVar(&opts.Status, "status", "", "only runs with this status")
	list.Flags().StringVar(&opts.PromptDigest, "digest", "", "only runs of the prompt with this digest")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := a.openHistory()
			if err != nil {
				return err
			}
			if !ok {
				return exitcode.Newf(exitcode.Failure, "%s: %v", args[0], history.ErrNotFound)
			}
			defer store.Close()

			entry, err := store.Get(args[0])
			if err != nil {
				return err
			}
			detail := api.RunDetail{Entry: *entry}
			if entry.ArtifactsDir != "" {
				if meta, err := artifacts.ReadMeta(entry.ArtifactsDir); err == nil {
					detail.Meta = meta
				}
			}
			return output.WriteJSON(cmd.OutOrStdout(), detail)
		},
	})

	return cmd
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
