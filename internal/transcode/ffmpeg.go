// Package transcode converts captured linear PCM into G.711 containers.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
)

var (
	ErrTranscoderNotFound = errors.New("transcoder executable not found")
	ErrTimeout            = errors.New("transcoder timed out")
	ErrUnsupportedTarget  = errors.New("unsupported target format")
)

// DefaultTimeout bounds one ffmpeg invocation.
const DefaultTimeout = 10 * time.Second

// FFMPEG shells out to ffmpeg for each conversion.
type FFMPEG struct {
	command string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewFFMPEG(command string, timeout time.Duration, logger *zap.SugaredLogger) *FFMPEG {
	if command == "" {
		command = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FFMPEG{command: command, timeout: timeout, logger: logger}
}

func (f *FFMPEG) Name() string { return "ffmpeg" }

// Available reports whether the ffmpeg executable resolves.
func (f *FFMPEG) Available() bool {
	_, err := exec.LookPath(f.command)
	return err == nil
}

func (f *FFMPEG) Convert(ctx context.Context, inputPath string, outputPath string, target domain.AudioFormat, sampleRate int, channels int) error {
	codec, err := codecFor(target)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", inputPath,
		"-c:a", codec,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		outputPath,
	}

	cmd := exec.CommandContext(runCtx, f.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %w: %s", domain.ErrConversionFailed, ErrTranscoderNotFound, f.command)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w: %w after %s", domain.ErrConversionFailed, ErrTimeout, f.timeout)
		default:
			return fmt.Errorf("%w: %s: %v: %s", domain.ErrConversionFailed, f.command, err, stringsTrimSpaceSafe(stderr.String()))
		}
	}

	f.logger.Infow("converted recording", "input", inputPath, "output", outputPath, "format", target)
	return nil
}

func codecFor(target domain.AudioFormat) (string, error) {
	switch target {
	case domain.AudioFormatALaw:
		return "pcm_alaw", nil
	case domain.AudioFormatULaw:
		return "pcm_mulaw", nil
	default:
		return "", fmt.Errorf("%w: %w: %q", domain.ErrConversionFailed, ErrUnsupportedTarget, target)
	}
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
