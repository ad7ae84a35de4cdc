package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDefaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "default",
		Short: "Manage factory default recordings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "assign <slot> <file>",
		Short: "Store a file as the slot's read-only default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				record, err := app.manager.AssignDefault(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assigned default for slot %s: %s\n", args[0], record.Path)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <slot>",
		Short: "Replace the slot's recording with a copy of its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				record, err := app.manager.RestoreDefault(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored default for slot %s: %s\n", args[0], record.Path)
				return nil
			})
		},
	})

	return cmd
}
