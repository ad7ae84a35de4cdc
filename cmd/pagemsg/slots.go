package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect slot allocation",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "next <message-type>",
		Short: "Print the slot the next recording of a type would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), app.manager.NextSlot(args[0]))
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "empty <message-type>",
		Short: "Print the bitmask of slots without a recording of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), app.manager.EmptySlotsMask(args[0]))
				return err
			})
		},
	})

	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Show the selected audio backend and devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				info := app.manager.DeviceInfo()
				keys := slices.Sorted(maps.Keys(info))
				for _, key := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", key, info[key])
				}
				return nil
			})
		},
	}
}
