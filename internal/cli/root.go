// Package cli implements the jlgcli command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jlguenego/jlgcli/internal/backend"
	"github.com/jlguenego/jlgcli/internal/logging"
	"github.com/jlguenego/jlgcli/internal/output"
)

// Version is reported by `jlgcli version` and the HTTP status endpoint.
var Version = "0.0.0-dev"

// app carries state shared by all commands of one invocation.
type app struct {
	verbosity int
	dir       string

	registry *backend.Registry
	log      *logging.Logger
	printer  *output.Printer
}

// NewRootCmd constructs the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "jlgcli",
		Short: "Drive AI coding assistants in a loop until the task is done",
		Long: `jlgcli sends a prompt to an AI assistant CLI (GitHub Copilot, OpenAI Codex)
and repeats until the assistant reports completion or a guardrail trips:
iteration limit, global timeout or repeated identical answers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().IntVarP(&a.verbosity, "verbosity", "V", int(output.Normal),
		"verbosity level: 0 silent, 1 summary, 2 progress, 3 debug")
	cmd.PersistentFlags().StringVarP(&a.dir, "cwd", "C", "", "working directory (default: current directory)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of jlgcli",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jlgcli version %s\n", Version)
		},
	})
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newLoopCmd(a))
	cmd.AddCommand(newBackendsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		a.dir = wd
	}

	level := output.ParseLevel(a.verbosity)
	stderr := cmd.ErrOrStderr()
	a.printer = output.NewPrinter(stderr, level)

	var logOut io.Writer = io.Discard
	logLevel := logging.LevelFromEnv(logging.LevelInfo)
	if level >= output.Debug {
		logOut = stderr
		logLevel = logging.LevelFromEnv(logging.LevelDebug)
	}
	a.log = logging.New(logging.Config{Output: logOut, Level: logLevel, Component: "jlgcli"})

	if a.registry == nil {
		a.registry = backend.NewRegistry()
	}
	return nil
}
