package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jlguenego/jlgcli/internal/config"
	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit configuration",
		Long: fmt.Sprintf(`Configuration is merged from built-in defaults, the user file
(~/%[1]s, or $%[2]s/%[1]s) and the nearest %[1]s found from the
working directory upwards. Later layers win.

Keys: %[3]s`, config.ProjectFileName, config.HomeEnv, strings.Join(config.Keys, ", ")),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the resolved value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(a.dir)
			if err != nil {
				return exitcode.Wrap(exitcode.Failure, "configuration error", err)
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return exitcode.Wrap(exitcode.Failure, "config get", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value in the user configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetUserValue(args[0], args[1]); err != nil {
				return exitcode.Wrap(exitcode.Failure, "config set", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	})

	var showJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(a.dir)
			if err != nil {
				return exitcode.Wrap(exitcode.Failure, "configuration error", err)
			}
			if showJSON {
				return output.WriteJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().BoolVar(&showJSON, "json", false, "print JSON instead of YAML")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var project *string
			if p := config.ProjectPath(a.dir); p != "" {
				project = &p
			}
			return output.WriteJSON(cmd.OutOrStdout(), map[string]any{
				"user_config_path":    config.UserPath(),
				"project_config_path": project,
			})
		},
	})

	return cmd
}
