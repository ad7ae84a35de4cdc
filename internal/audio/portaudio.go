//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"pagemsg/internal/ports"
)

// PortAudioDriver captures and plays through PortAudio (cgo, built with -tags portaudio).
type PortAudioDriver struct {
	inputDevice  string
	outputDevice string
	logger       *zap.SugaredLogger
	playback     playbackTracker

	initOnce sync.Once
	initErr  error
}

// NewPortAudioDriver returns the PortAudio driver. Device names are matched
// against PortAudio's device list; "default" or empty picks the host default.
func NewPortAudioDriver(inputDevice string, outputDevice string, logger *zap.SugaredLogger) ports.Driver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PortAudioDriver{
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
		logger:       logger,
		playback:     playbackTracker{logger: logger},
	}
}

func (d *PortAudioDriver) Name() string { return "portaudio" }

func (d *PortAudioDriver) init() error {
	d.initOnce.Do(func() {
		d.initErr = portaudio.Initialize()
	})
	return d.initErr
}

func (d *PortAudioDriver) Available() bool {
	if err := d.init(); err != nil {
		return false
	}
	devices, err := portaudio.Devices()
	return err == nil && len(devices) > 0
}

func (d *PortAudioDriver) findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if device.Name != name {
			continue
		}
		if (input && device.MaxInputChannels > 0) || (!input && device.MaxOutputChannels > 0) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("portaudio device %q not found", name)
}

func (d *PortAudioDriver) Record(ctx context.Context, params ports.CaptureParams, level ports.LevelFunc) ([]byte, error) {
	if err := d.init(); err != nil {
		return nil, err
	}
	params = normalizeCapture(params, d.inputDevice)

	device, err := d.findDevice(params.Device, true)
	if err != nil {
		return nil, err
	}

	samples := make([]int16, params.PeriodSize*params.Channels)
	streamParams := portaudio.LowLatencyParameters(device, nil)
	streamParams.Input.Channels = params.Channels
	streamParams.SampleRate = float64(params.SampleRate)
	streamParams.FramesPerBuffer = params.PeriodSize

	stream, err := portaudio.OpenStream(streamParams, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to open portaudio input: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start portaudio input: %w", err)
	}

	d.logger.Infow("portaudio capture started", "device", device.Name, "rate", params.SampleRate, "channels", params.Channels)
	return pumpCapture(ctx, &portaudioStream{stream: stream, samples: samples}, params, level)
}

func (d *PortAudioDriver) Play(ctx context.Context, pcm []byte, params ports.PlaybackParams, blocking bool) error {
	if err := d.init(); err != nil {
		return err
	}
	name := params.Device
	if name == "" {
		name = d.outputDevice
	}
	device, err := d.findDevice(name, false)
	if err != nil {
		return err
	}
	channels := max(params.Channels, 1)

	return d.playback.run(ctx, blocking, func(playCtx context.Context) error {
		out := make([]int16, 1024*channels)
		streamParams := portaudio.LowLatencyParameters(nil, device)
		streamParams.Output.Channels = channels
		streamParams.SampleRate = float64(params.SampleRate)
		streamParams.FramesPerBuffer = 1024

		stream, err := portaudio.OpenStream(streamParams, out)
		if err != nil {
			return fmt.Errorf("failed to open portaudio output: %w", err)
		}
		defer stream.Close()
		if err := stream.Start(); err != nil {
			return fmt.Errorf("failed to start portaudio output: %w", err)
		}
		defer stream.Stop()

		total := len(pcm) / BytesPerSample
		for offset := 0; offset < total; offset += len(out) {
			if playCtx.Err() != nil {
				return playCtx.Err()
			}
			clear(out)
			for i := 0; i < len(out) && offset+i < total; i++ {
				out[i] = int16(binary.LittleEndian.Uint16(pcm[(offset+i)*2:]))
			}
			if err := stream.Write(); err != nil {
				return fmt.Errorf("portaudio write failed: %w", err)
			}
		}
		return nil
	})
}

func (d *PortAudioDriver) PlayFile(ctx context.Context, path string, blocking bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot play %q: %w", path, err)
	}
	clip, err := ReadClip(path)
	if err != nil {
		return fmt.Errorf("cannot decode %q: %w", path, err)
	}
	return d.Play(ctx, clip.PCM, ports.PlaybackParams{SampleRate: clip.SampleRate, Channels: clip.Channels}, blocking)
}

func (d *PortAudioDriver) StopPlayback() error {
	d.playback.stop()
	return nil
}

func (d *PortAudioDriver) DeviceInfo() map[string]any {
	info := map[string]any{"driver": d.Name(), "available": d.Available()}
	if in, err := d.findDevice(d.inputDevice, true); err == nil {
		info["input_name"] = in.Name
		info["input_default_rate"] = in.DefaultSampleRate
	}
	if out, err := d.findDevice(d.outputDevice, false); err == nil {
		info["output_name"] = out.Name
	}
	return info
}

// portaudioStream adapts a blocking PortAudio input stream to captureStream.
// The PortAudio stream is only closed while no Read is in flight.
type portaudioStream struct {
	stream  *portaudio.Stream
	samples []int16

	mu       sync.Mutex
	reading  bool
	stopping bool
	closed   bool
	closeErr error
}

func (s *portaudioStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.stopping {
		s.closeLocked()
		s.mu.Unlock()
		return 0, os.ErrClosed
	}
	s.reading = true
	s.mu.Unlock()

	err := s.stream.Read()

	s.mu.Lock()
	s.reading = false
	if s.stopping {
		s.closeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	n := min(len(p)/BytesPerSample, len(s.samples))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s.samples[i]))
	}
	return n * BytesPerSample, nil
}

func (s *portaudioStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	if !s.reading {
		s.closeLocked()
	}
	return s.closeErr
}

func (s *portaudioStream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.stream.Stop(); err != nil {
		s.closeErr = err
	}
	if err := s.stream.Close(); err != nil && s.closeErr == nil {
		s.closeErr = err
	}
}
