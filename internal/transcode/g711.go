package transcode

import (
	"context"
	"fmt"
	"time"

	"github.com/zaf/g711"
	"go.uber.org/zap"

	"pagemsg/internal/audio"
	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
)

// G711 encodes in process. It cannot resample, so the input must already be
// at the requested rate and channel count.
type G711 struct {
	logger *zap.SugaredLogger
}

func NewG711(logger *zap.SugaredLogger) *G711 {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &G711{logger: logger}
}

func (g *G711) Name() string { return "builtin" }

func (g *G711) Convert(ctx context.Context, inputPath string, outputPath string, target domain.AudioFormat, sampleRate int, channels int) error {
	if _, err := codecFor(target); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	clip, err := audio.ReadClip(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}
	if clip.SampleRate != sampleRate || clip.Channels != channels {
		return fmt.Errorf("%w: input is %d Hz/%d ch, resampling to %d Hz/%d ch is not supported",
			domain.ErrConversionFailed, clip.SampleRate, clip.Channels, sampleRate, channels)
	}

	var encoded []byte
	if target == domain.AudioFormatALaw {
		encoded = g711.EncodeAlaw(clip.PCM)
	} else {
		encoded = g711.EncodeUlaw(clip.PCM)
	}

	if err := audio.WriteCompandedWAV(outputPath, encoded, target, sampleRate, channels); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	g.logger.Infow("converted recording", "input", inputPath, "output", outputPath, "format", target)
	return nil
}

// Engine names accepted by New.
const (
	EngineFFMPEG  = "ffmpeg"
	EngineBuiltin = "builtin"
)

// New returns the transcoder named by engine.
func New(engine string, command string, timeout time.Duration, logger *zap.SugaredLogger) (ports.Transcoder, error) {
	switch engine {
	case "", EngineFFMPEG:
		return NewFFMPEG(command, timeout, logger), nil
	case EngineBuiltin:
		return NewG711(logger), nil
	default:
		return nil, fmt.Errorf("unknown transcoder %q", engine)
	}
}
