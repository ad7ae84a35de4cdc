package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/ports"
)

// ALSAConfig names the alsa-utils binaries and devices used by ALSADriver.
type ALSAConfig struct {
	RecordCommand string
	PlayCommand   string
	InputDevice   string
	OutputDevice  string
}

// ALSADriver captures with arecord and plays with aplay.
type ALSADriver struct {
	cfg      ALSAConfig
	logger   *zap.SugaredLogger
	playback playbackTracker

	// startupGrace is how long a capture process must survive before Record trusts it.
	startupGrace time.Duration
	stopGrace    time.Duration
}

func NewALSADriver(cfg ALSAConfig, logger *zap.SugaredLogger) *ALSADriver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.RecordCommand == "" {
		cfg.RecordCommand = "arecord"
	}
	if cfg.PlayCommand == "" {
		cfg.PlayCommand = "aplay"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.OutputDevice == "" {
		cfg.OutputDevice = "default"
	}
	return &ALSADriver{
		cfg:          cfg,
		logger:       logger,
		playback:     playbackTracker{logger: logger},
		startupGrace: 250 * time.Millisecond,
		stopGrace:    1200 * time.Millisecond,
	}
}

func (d *ALSADriver) Name() string { return "alsa" }

func (d *ALSADriver) Available() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	if _, err := exec.LookPath(d.cfg.RecordCommand); err != nil {
		return false
	}
	if _, err := exec.LookPath(d.cfg.PlayCommand); err != nil {
		return false
	}
	return true
}

func (d *ALSADriver) Record(ctx context.Context, params ports.CaptureParams, level ports.LevelFunc) ([]byte, error) {
	params = normalizeCapture(params, d.cfg.InputDevice)

	stream, err := d.startCapture(params)
	if err != nil {
		return nil, err
	}
	d.logger.Infow("alsa capture started", "device", params.Device, "rate", params.SampleRate, "channels", params.Channels)
	return pumpCapture(ctx, stream, params, level)
}

func (d *ALSADriver) startCapture(params ports.CaptureParams) (*processStream, error) {
	args := []string{
		"-q",
		"-D", params.Device,
		"-t", "raw",
		"-f", "S16_LE",
		"-c", strconv.Itoa(params.Channels),
		"-r", strconv.Itoa(params.SampleRate),
		"--period-size=" + strconv.Itoa(params.PeriodSize),
	}

	cmd := exec.Command(d.cfg.RecordCommand, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s stdout pipe: %w", d.cfg.RecordCommand, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", d.cfg.RecordCommand, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%s exited before capture started: %w: %s", d.cfg.RecordCommand, err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, fmt.Errorf("%s exited before capture started", d.cfg.RecordCommand)
	case <-time.After(d.startupGrace):
	}

	return &processStream{
		stdout:    stdout,
		stderr:    &stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		stopGrace: d.stopGrace,
	}, nil
}

func (d *ALSADriver) Play(ctx context.Context, pcm []byte, params ports.PlaybackParams, blocking bool) error {
	device := params.Device
	if device == "" {
		device = d.cfg.OutputDevice
	}
	args := []string{
		"-q",
		"-D", device,
		"-t", "raw",
		"-f", "S16_LE",
		"-c", strconv.Itoa(max(params.Channels, 1)),
		"-r", strconv.Itoa(params.SampleRate),
	}
	return d.playback.run(ctx, blocking, func(playCtx context.Context) error {
		return d.runPlayer(playCtx, bytes.NewReader(pcm), args...)
	})
}

func (d *ALSADriver) PlayFile(ctx context.Context, path string, blocking bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot play %q: %w", path, err)
	}
	return d.playback.run(ctx, blocking, func(playCtx context.Context) error {
		return d.runPlayer(playCtx, nil, "-q", "-D", d.cfg.OutputDevice, path)
	})
}

func (d *ALSADriver) runPlayer(ctx context.Context, stdin io.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, d.cfg.PlayCommand, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w: %s", d.cfg.PlayCommand, err, stringsTrimSpaceSafe(stderr.String()))
	}
	return nil
}

func (d *ALSADriver) StopPlayback() error {
	d.playback.stop()
	return nil
}

func (d *ALSADriver) DeviceInfo() map[string]any {
	return map[string]any{
		"driver":         d.Name(),
		"record_command": d.cfg.RecordCommand,
		"play_command":   d.cfg.PlayCommand,
		"available":      d.Available(),
	}
}

// processStream is a running capture process whose stdout carries PCM.
type processStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process   *os.Process
	waitErr   <-chan error
	stopGrace time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *processStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts the process, killing it if it outlives the stop grace period.
func (s *processStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeCapture(params ports.CaptureParams, device string) ports.CaptureParams {
	if params.SampleRate <= 0 {
		params.SampleRate = 44100
	}
	if params.Channels <= 0 {
		params.Channels = 1
	}
	if params.PeriodSize <= 0 {
		params.PeriodSize = 1024
	}
	if params.Device == "" {
		params.Device = device
	}
	return params
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
