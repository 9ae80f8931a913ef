package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gazetteer/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline health and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			results := preflight.RunAll(cmd.Context(), cfg, store)
			checkRows := make([][]string, 0, len(results))
			for _, result := range results {
				state := "FAIL"
				if result.Passed {
					state = "ok"
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, checkRows, nil))

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tasks", "Pending", "Archiving", "Failed", "Media", "Locations"},
				[][]string{{
					fmt.Sprintf("%d", health.Total),
					fmt.Sprintf("%d", health.Pending),
					fmt.Sprintf("%d", health.Archiving),
					fmt.Sprintf("%d", health.Failed),
					fmt.Sprintf("%d", health.Media),
					fmt.Sprintf("%d", health.Locations),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if failed := preflight.Failures(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failing", len(failed))
			}
			return nil
		},
	}
}
