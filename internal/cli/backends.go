package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jlguenego/jlgcli/internal/backend"
	"github.com/jlguenego/jlgcli/internal/output"
)

// backendListItem is one entry of `backends --json`.
type backendListItem struct {
	backend.Info
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

func newBackendsCmd(a *app) *cobra.Command {
	var check, asJSON bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List supported backends",
		Long: `List supported backends. With --check each backend is probed with
"<bin> --version" and reported as available, missing, unauthenticated or
unsupported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]backendListItem, 0, len(a.registry.IDs()))
			for _, info := range a.registry.Describe() {
				item := backendListItem{Info: info, Status: "unknown"}
				if info.Planned {
					item.Status = "planned"
				}
				if check {
					adapter, _ := a.registry.Resolve(string(info.ID))
					av := adapter.IsAvailable(cmd.Context())
					item.Status = string(av.Status)
					item.Details = av.Details
				}
				items = append(items, item)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return output.WriteJSON(out, map[string]any{"backends": items})
			}
			fmt.Fprintln(out, "Supported backends:")
			fmt.Fprintln(out)
			for _, it := range items {
				fmt.Fprintf(out, "  %-10s %s (%s)\n", it.ID, it.Name, it.Status)
				if it.Details != "" && it.Status != string(backend.StatusAvailable) {
					fmt.Fprintf(out, "  %-10s %s\n", "", output.Preview(it.Details, 100))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "probe each backend for availability")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
