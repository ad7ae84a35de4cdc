package ports

import (
	"context"

	"pagemsg/internal/domain"
)

// CaptureParams describes how the microphone should be captured.
type CaptureParams struct {
	Channels   int
	SampleRate int
	PeriodSize int
	Device     string
}

// PlaybackParams describes raw 16-bit little-endian PCM handed to a driver.
type PlaybackParams struct {
	Channels   int
	SampleRate int
	Device     string
}

// LevelFunc receives an RMS level. It is invoked on the capture worker and must not block.
type LevelFunc func(rms float64)

// Driver is a platform capture/playback backend.
type Driver interface {
	Name() string
	Available() bool
	// Record captures S16LE PCM until ctx is cancelled and returns everything captured.
	Record(ctx context.Context, params CaptureParams, level LevelFunc) ([]byte, error)
	Play(ctx context.Context, pcm []byte, params PlaybackParams, blocking bool) error
	PlayFile(ctx context.Context, path string, blocking bool) error
	StopPlayback() error
	DeviceInfo() map[string]any
}

// Transcoder converts a linear PCM container into a companded one.
type Transcoder interface {
	Name() string
	Convert(ctx context.Context, inputPath string, outputPath string, target domain.AudioFormat, sampleRate int, channels int) error
}

// EventSink receives recorder state changes and errors.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
}
