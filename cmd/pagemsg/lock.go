package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLockCmd returns "lock" when readOnly is set and "unlock" otherwise.
func newLockCmd(readOnly bool) *cobra.Command {
	use, short, verb := "unlock <slot>", "Allow a slot to be overwritten or deleted", "Unlocked"
	if readOnly {
		use, short, verb = "lock <slot>", "Protect a slot from overwrite and delete", "Locked"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				if err := app.manager.SetReadOnly(args[0], readOnly); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s slot %s\n", verb, args[0])
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slot>",
		Short: "Delete a slot's recording and file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				if err := app.manager.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted slot %s\n", args[0])
				return nil
			})
		},
	}
}
