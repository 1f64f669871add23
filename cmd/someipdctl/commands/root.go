package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/someipd/someipd/internal/adminclient"
)

var (
	// client is the admin surface's ConnectRPC client, initialized in
	// PersistentPreRunE.
	client *adminclient.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon's admin server address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for someipdctl.
var rootCmd = &cobra.Command{
	Use:   "someipdctl",
	Short: "CLI client for the someipd daemon",
	Long:  "someipdctl communicates with the someipd daemon's admin surface via ConnectRPC to inspect required service instances, connected applications, and service discovery events.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = adminclient.New(http.DefaultClient, "http://"+serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:50051",
		"someipd daemon admin address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(rsiCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
