package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
)

func newGuideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide",
		Short: "Explain the input parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), flow.DefaultGuide)
			return err
		},
	}
}
