package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pagemsg/internal/audio"
)

func newRecordCmd() *cobra.Command {
	var (
		slotID      string
		messageType string
		duration    time.Duration
		discard     bool
		meter       bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a message into a slot",
		Long:  "Records from the microphone until the duration elapses or the command is interrupted, then stores the clip. Without --slot the next free slot of the message type is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				return runRecord(cmd, app, slotID, messageType, duration, discard, meter)
			})
		},
	}

	cmd.Flags().StringVarP(&slotID, "slot", "s", "", "slot id (default: allocate)")
	cmd.Flags().StringVarP(&messageType, "type", "t", "", "message type (default from config)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&discard, "discard", false, "capture and then discard instead of storing")
	cmd.Flags().BoolVar(&meter, "meter", false, "print input levels while recording")
	return cmd
}

func runRecord(cmd *cobra.Command, app *App, slotID string, messageType string, duration time.Duration, discard bool, meter bool) error {
	out := cmd.OutOrStdout()
	manager := app.manager

	if meter {
		errOut := cmd.ErrOrStderr()
		manager.SetLevelFunc(func(rms float64) {
			fmt.Fprintf(errOut, "level %s\n", levelBar(rms))
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	slot, err := manager.StartRecording(slotID, messageType, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recording slot %s, press Ctrl+C to stop\n", slot)

	<-ctx.Done()

	pending, err := manager.StopRecording(context.Background())
	if err != nil {
		return err
	}

	if discard {
		removed, err := manager.Discard(slot)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Discarded %d staged file(s) for slot %s\n", removed, slot)
		return nil
	}

	record, err := manager.Finalize(context.Background(), pending)
	if err != nil {
		if _, discardErr := manager.Discard(slot); discardErr != nil {
			app.services.Logger.Warnw("failed to discard staged recording", "slot", slot, "error", discardErr)
		}
		return err
	}
	fmt.Fprintf(out, "Saved slot %s: %s (%.2fs, %s)\n", slot, record.Path, pending.DurationSeconds, record.AudioFormat)
	return nil
}

// levelBar renders an RMS amplitude as a 20 column dBFS bar.
func levelBar(rms float64) string {
	filled := int(audio.MeterLevel(rms)*20 + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", 20-filled) + "]"
}
