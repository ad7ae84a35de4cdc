package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"pagemsg/internal/ports"
)

// captureStream is a live source of S16LE PCM.
type captureStream interface {
	Read(p []byte) (int, error)
	Stop() error
}

var errCaptureEnded = errors.New("capture stream ended before stop was requested")

// pumpCapture reads period-sized chunks from stream until ctx is cancelled,
// metering every LevelEvery-th chunk, and returns the captured PCM trimmed to
// whole frames.
func pumpCapture(ctx context.Context, stream captureStream, params ports.CaptureParams, level ports.LevelFunc) ([]byte, error) {
	frameBytes := params.Channels * BytesPerSample
	if frameBytes <= 0 {
		frameBytes = BytesPerSample
	}
	chunkSize := params.PeriodSize * frameBytes
	if chunkSize < 256 {
		chunkSize = 4096
	}

	// Unblocks a Read stuck on a quiet device once stop is requested.
	pumpDone := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			_ = stream.Stop()
		case <-pumpDone:
		}
	}()

	meter := newLevelMeter(level)
	var pcm bytes.Buffer
	buf := make([]byte, chunkSize)

	var readErr error
	for ctx.Err() == nil {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			pcm.Write(chunk)
			meter.observe(chunk)
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				readErr = errCaptureEnded
			} else {
				readErr = fmt.Errorf("capture read failed: %w", err)
			}
			break
		}
	}

	close(pumpDone)
	<-watcherDone

	stopErr := stream.Stop()
	out := pcm.Bytes()
	out = out[:len(out)-len(out)%frameBytes]

	if readErr != nil {
		return out, readErr
	}
	if stopErr != nil {
		return out, fmt.Errorf("failed to stop capture: %w", stopErr)
	}
	return out, nil
}
