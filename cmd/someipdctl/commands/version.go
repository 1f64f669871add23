package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	appversion "github.com/someipd/someipd/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print someipdctl build information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Print(appversion.Full("someipdctl"))
			fmt.Println()
		},
	}
}
