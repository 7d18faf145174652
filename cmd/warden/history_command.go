package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"warden/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent daemon lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}

			store, err := journal.Open(ctrl.Paths().VarDir)
			if err != nil {
				return fmt.Errorf("open lifecycle journal: %w", err)
			}
			defer store.Close()

			events, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(stdout, "No lifecycle events recorded")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, event := range events {
				rows = append(rows, []string{
					strconv.FormatInt(event.ID, 10),
					titleLabel(event.Type),
					strconv.Itoa(event.PID),
					event.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					event.Detail,
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Event", "PID", "Time", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")
	return cmd
}
