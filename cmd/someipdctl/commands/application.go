package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func applicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "application",
		Short: "Inspect connected applications",
	}

	cmd.AddCommand(applicationListCmd())

	return cmd
}

func applicationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all currently connected applications",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			apps, err := client.ListApplications(context.Background())
			if err != nil {
				return fmt.Errorf("list applications: %w", err)
			}

			out, err := formatApplications(apps, outputFormat)
			if err != nil {
				return fmt.Errorf("format applications: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
