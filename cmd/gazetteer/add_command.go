package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add <location-id> <url>",
		Short: "Enqueue a page capture for a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locationID, url := args[0], args[1]

			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if existing, err := store.FindTaskByURL(cmd.Context(), locationID, url); err != nil {
				return err
			} else if existing != nil {
				return fmt.Errorf("url already enqueued for this location as task %s (status %s)", existing.ID, existing.Status)
			}

			task, err := store.NewTask(cmd.Context(), locationID, url, title, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued task %s for %s\n", task.ID, task.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Optional page title")
	cmd.Flags().StringVar(&description, "description", "", "Optional page description")
	return cmd
}
