package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clickd/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the click daemon",
	Long: `Run loads the config, starts the controller and waits for commands on
stdin (start, stop, toggle, status, quit). Config edits are applied while
running. SIGINT or SIGTERM stops any session and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noInput, _ := cmd.Flags().GetBool("no-input")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts := []app.Option{app.WithOutput(cmd.OutOrStdout())}
		if !noInput {
			opts = append(opts, app.WithInput(cmd.InOrStdin()))
		}
		a, err := app.New(cfgPath, opts...)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

func init() {
	runCmd.Flags().Bool("no-input", false, "ignore stdin (triggers and auto_start only)")
}
