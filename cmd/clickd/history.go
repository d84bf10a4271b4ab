package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"clickd/internal/app"
	"clickd/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded click sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		recs, err := app.History(ctx, cfgPath, limit)
		if errors.Is(err, storage.ErrDisabled) {
			fmt.Fprintln(cmd.OutOrStdout(), "session history is disabled (set storage.driver)")
			return nil
		}
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
			return nil
		}

		data := pterm.TableData{{"Started", "Duration", "Delay", "Click", "Origin", "Clicks", "Outcome"}}
		for _, r := range recs {
			outcome := r.Outcome
			if r.Error != "" {
				outcome += ": " + r.Error
			}
			data = append(data, []string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Duration().Round(10 * time.Millisecond).String(),
				r.Delay,
				r.Kind + " " + r.Button,
				r.Origin,
				strconv.FormatUint(r.Clicks, 10),
				outcome,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum sessions to list (0 for all kept)")
}
