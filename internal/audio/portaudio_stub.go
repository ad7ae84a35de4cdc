//go:build !portaudio

package audio

import (
	"go.uber.org/zap"

	"pagemsg/internal/ports"
)

// NewPortAudioDriver returns nil in builds without the portaudio tag.
func NewPortAudioDriver(_ string, _ string, _ *zap.SugaredLogger) ports.Driver {
	return nil
}
