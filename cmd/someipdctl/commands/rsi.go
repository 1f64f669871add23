package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func rsiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsi",
		Short: "Inspect required service instances",
	}

	cmd.AddCommand(rsiListCmd())

	return cmd
}

func rsiListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured required service instances",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			rsis, err := client.ListRequiredServiceInstances(context.Background())
			if err != nil {
				return fmt.Errorf("list required service instances: %w", err)
			}

			out, err := formatRSIs(rsis, outputFormat)
			if err != nil {
				return fmt.Errorf("format required service instances: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
