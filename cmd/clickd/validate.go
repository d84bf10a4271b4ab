package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clickd/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := app.Check(cfgPath)
		if err != nil {
			return fmt.Errorf("%s: %w", cfgPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", cfgPath)
		for _, line := range summary {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
		}
		return nil
	},
}
