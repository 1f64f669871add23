package commands

import (
	"fmt"

	"github.com/reeflective/console"
	"github.com/spf13/cobra"
)

// shellCmd launches an interactive someipdctl console built on
// reeflective/console, which gives the shell history, completion, and
// multi-line editing instead of a line-by-line bufio.Scanner loop.
func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive someipdctl console",
		Long:  "Launches an interactive console that accepts someipdctl subcommands with history and completion. Type 'help' or 'exit'.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app := console.New("someipdctl")

			menu := app.ActiveMenu()
			menu.Prompt().Primary = func() string {
				return fmt.Sprintf("someipdctl (%s)> ", serverAddr)
			}
			menu.SetCommands(func() *cobra.Command {
				return shellRootCmd()
			})

			if err := app.Start(); err != nil {
				return fmt.Errorf("start console: %w", err)
			}

			return nil
		},
	}
}

// shellRootCmd builds a fresh copy of the command tree for each console
// read/eval loop, dropping "shell" itself so the console can't recurse
// into another console.
func shellRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "someipdctl",
		Short:         rootCmd.Short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(rsiCmd())
	root.AddCommand(applicationCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(versionCmd())

	return root
}
