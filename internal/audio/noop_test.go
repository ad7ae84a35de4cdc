package audio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagemsg/internal/ports"
)

func TestNoopDriverRecordsSilenceUntilCancelled(t *testing.T) {
	t.Parallel()

	driver := NewNoopDriver(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	pcm, err := driver.Record(ctx, ports.CaptureParams{SampleRate: 8000, Channels: 1, PeriodSize: 160}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pcm)
	assert.Zero(t, len(pcm)%2)
	for _, b := range pcm {
		if b != 0 {
			t.Fatalf("expected silence")
		}
	}
}

func TestNoopDriverStopsPromptly(t *testing.T) {
	t.Parallel()

	driver := NewNoopDriver(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = driver.Record(ctx, ports.CaptureParams{SampleRate: 8000, Channels: 1, PeriodSize: 8000}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("noop capture did not observe cancellation")
	}
}

func TestNoopDriverPlayFileAndStop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, WriteWAV(path, make([]byte, 1600), 8000, 1))

	driver := NewNoopDriver(nil)
	require.NoError(t, driver.PlayFile(context.Background(), path, true))
	assert.Equal(t, 1, driver.Plays())

	long := make([]byte, 8000*2*10)
	require.NoError(t, driver.Play(context.Background(), long, ports.PlaybackParams{SampleRate: 8000, Channels: 1}, false))

	start := time.Now()
	require.NoError(t, driver.StopPlayback())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, driver.Plays())

	assert.Error(t, driver.PlayFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), true))
}

func TestNoopDriverInfo(t *testing.T) {
	t.Parallel()

	driver := NewNoopDriver(nil)
	assert.True(t, driver.Available())
	assert.Equal(t, "noop", driver.DeviceInfo()["driver"])
}
