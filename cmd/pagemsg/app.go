package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"pagemsg/internal/bootstrap"
	"pagemsg/internal/domain"
	"pagemsg/internal/usecase"
)

// App adapts the backend to a terminal: it is the event sink and owns the
// assembled services for one command.
type App struct {
	errOut io.Writer
	mu     sync.Mutex

	manager  *usecase.Manager
	services bootstrap.Services
	bootErr  error
}

func newApp(errOut io.Writer) *App {
	return &App{errOut: errOut}
}

func (a *App) startup() error {
	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}
	a.services = services
	a.manager = services.Manager
	return nil
}

func (a *App) shutdown() {
	if a.manager != nil {
		if err := a.manager.Cleanup(context.Background()); err != nil {
			a.services.Logger.Warnw("cleanup failed", "error", err)
		}
	}
	if a.services.Close != nil {
		a.services.Close()
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.manager == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// withApp builds services for cmd, runs fn and flushes logs afterwards.
func withApp(cmd *cobra.Command, fn func(app *App) error) error {
	app := newApp(cmd.ErrOrStderr())
	if err := app.startup(); err != nil {
		return err
	}
	defer app.shutdown()
	if err := app.requireReady(); err != nil {
		return err
	}
	return fn(app)
}

// SessionStateChanged prints recorder lifecycle updates.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	message := sessionReasonMessage(reason)
	if message == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.errOut, "[%s] %s\n", state, message)
}

// SessionError prints backend errors.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.errOut, "error: %s: %s\n", errorMessage(code, detail), detail)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingStopping:
		return "Recording stopped. Saving..."
	case domain.SessionReasonRecordingSaved:
		return "Recording saved to staging"
	case domain.SessionReasonCaptureFailed:
		return "Capture failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Audio capture issue"
	case domain.ErrorCodeContainer:
		return "Audio file issue"
	case domain.ErrorCodeStopTimeout:
		return "Recorder did not stop in time"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
