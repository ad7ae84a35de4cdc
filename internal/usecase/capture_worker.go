package usecase

import (
	"context"
	"fmt"
	"os"
	"time"

	"pagemsg/internal/audio"
	"pagemsg/internal/domain"
)

func (c *SessionController) runCapture(ctx context.Context, active *activeSession, onComplete CompleteFunc) {
	defer close(active.done)

	pending, code, err := c.capture(ctx, active)
	active.setResult(pending, err)

	reason := domain.SessionReasonRecordingSaved
	if err != nil {
		reason = domain.SessionReasonCaptureFailed
		c.logger.Errorw("recording failed", "session", active.id, "slot", active.slotID, "error", err)
		c.events.SessionError(code, err.Error())
	} else {
		c.logger.Infow("recording captured", "session", active.id, "slot", active.slotID,
			"path", pending.TempPath, "duration", pending.DurationSeconds)
	}

	c.finishSession(active, reason)
	if onComplete != nil {
		onComplete(pending)
	}
}

// capture returns the pending descriptor, or the error code to report and the failure.
func (c *SessionController) capture(ctx context.Context, active *activeSession) (*domain.PendingRecording, domain.ErrorCode, error) {
	params := c.cfg.Capture
	pcm, err := c.driver.Record(ctx, params, c.reportLevel)
	if err != nil {
		return nil, domain.ErrorCodeCapture, fmt.Errorf("%s capture: %w", c.driver.Name(), err)
	}

	if err := os.MkdirAll(c.cfg.TempDir, 0o755); err != nil {
		return nil, domain.ErrorCodeContainer, fmt.Errorf("create temp dir: %w", err)
	}
	if err := audio.WriteWAV(active.tempPath, pcm, params.SampleRate, params.Channels); err != nil {
		_ = os.Remove(active.tempPath)
		return nil, domain.ErrorCodeContainer, fmt.Errorf("write temp container: %w", err)
	}

	return &domain.PendingRecording{
		SlotID:          active.slotID,
		MessageType:     active.messageType,
		DurationSeconds: audio.PCMDuration(len(pcm), params.SampleRate, params.Channels),
		TempPath:        active.tempPath,
		Timestamp:       domain.FormatTimestamp(active.startedAt),
		Channels:        params.Channels,
		SampleRate:      params.SampleRate,
		AudioFormat:     "wav",
	}, "", nil
}

func waitForWorker(ctx context.Context, done <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
