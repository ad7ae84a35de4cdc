package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	var messageType string

	cmd := &cobra.Command{
		Use:   "play [slot|path]",
		Short: "Play a stored recording or an audio file",
		Long:  "Plays a file path, a slot's recording, or with --type the newest recording of that message type (optionally restricted to a slot).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" && messageType == "" {
				return errors.New("give a slot, a path or --type")
			}

			return withApp(cmd, func(app *App) error {
				if messageType != "" {
					path, err := app.manager.MessagePath(messageType, target)
					if err != nil {
						return err
					}
					target = path
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				if err := app.manager.Play(ctx, target, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Played %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&messageType, "type", "t", "", "play the newest recording of this message type")
	return cmd
}
