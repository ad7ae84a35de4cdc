package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/ports"
)

// NoopDriver is always available. It captures silence at real-time pace and
// plays by waiting out the clip duration.
type NoopDriver struct {
	logger   *zap.SugaredLogger
	playback playbackTracker

	mu     sync.Mutex
	played int
}

func NewNoopDriver(logger *zap.SugaredLogger) *NoopDriver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &NoopDriver{logger: logger, playback: playbackTracker{logger: logger}}
}

func (d *NoopDriver) Name() string { return "noop" }

func (d *NoopDriver) Available() bool { return true }

func (d *NoopDriver) Record(ctx context.Context, params ports.CaptureParams, level ports.LevelFunc) ([]byte, error) {
	params = normalizeCapture(params, "noop")
	d.logger.Infow("noop capture started", "rate", params.SampleRate, "channels", params.Channels)
	return pumpCapture(ctx, newSilenceStream(params), params, level)
}

func (d *NoopDriver) Play(ctx context.Context, pcm []byte, params ports.PlaybackParams, blocking bool) error {
	length := time.Duration(PCMDuration(len(pcm), params.SampleRate, max(params.Channels, 1)) * float64(time.Second))
	d.logger.Infow("noop playback", "bytes", len(pcm), "rate", params.SampleRate, "duration", length)
	return d.playback.run(ctx, blocking, func(playCtx context.Context) error {
		d.mu.Lock()
		d.played++
		d.mu.Unlock()

		timer := time.NewTimer(length)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-playCtx.Done():
			return playCtx.Err()
		}
	})
}

func (d *NoopDriver) PlayFile(ctx context.Context, path string, blocking bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot play %q: %w", path, err)
	}
	clip, err := ReadClip(path)
	if err != nil {
		return fmt.Errorf("cannot decode %q: %w", path, err)
	}
	return d.Play(ctx, clip.PCM, ports.PlaybackParams{SampleRate: clip.SampleRate, Channels: clip.Channels}, blocking)
}

func (d *NoopDriver) StopPlayback() error {
	d.playback.stop()
	return nil
}

// Plays reports how many playbacks were started.
func (d *NoopDriver) Plays() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.played
}

func (d *NoopDriver) DeviceInfo() map[string]any {
	return map[string]any{"driver": d.Name(), "device": "noop", "available": true}
}

// silenceStream hands out one period of zeroed samples per period interval.
type silenceStream struct {
	period   int
	interval time.Duration
	stopped  chan struct{}
	once     sync.Once
	next     time.Time
}

func newSilenceStream(params ports.CaptureParams) *silenceStream {
	interval := time.Duration(float64(params.PeriodSize) / float64(params.SampleRate) * float64(time.Second))
	return &silenceStream{
		period:   params.PeriodSize * params.Channels * BytesPerSample,
		interval: interval,
		stopped:  make(chan struct{}),
		next:     time.Now().Add(interval),
	}
}

func (s *silenceStream) Read(p []byte) (int, error) {
	// Poll in 1ms steps so a stop is noticed quickly.
	for time.Now().Before(s.next) {
		select {
		case <-s.stopped:
			return 0, os.ErrClosed
		case <-time.After(time.Millisecond):
		}
	}
	s.next = s.next.Add(s.interval)

	n := min(len(p), s.period)
	clear(p[:n])
	return n, nil
}

func (s *silenceStream) Stop() error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}
