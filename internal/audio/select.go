package audio

import (
	"fmt"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
)

// Driver names accepted by SelectDriver.
const (
	DriverAuto      = "auto"
	DriverALSA      = "alsa"
	DriverPortAudio = "portaudio"
	DriverNoop      = "noop"
)

// SelectConfig carries what every candidate driver needs.
type SelectConfig struct {
	Preferred     string
	InputDevice   string
	OutputDevice  string
	RecordCommand string
	PlayCommand   string
}

// Candidates returns drivers in preference order: native ALSA, PortAudio, no-op.
func Candidates(cfg SelectConfig, logger *zap.SugaredLogger) []ports.Driver {
	candidates := []ports.Driver{
		NewALSADriver(ALSAConfig{
			RecordCommand: cfg.RecordCommand,
			PlayCommand:   cfg.PlayCommand,
			InputDevice:   cfg.InputDevice,
			OutputDevice:  cfg.OutputDevice,
		}, logger),
	}
	if pa := NewPortAudioDriver(cfg.InputDevice, cfg.OutputDevice, logger); pa != nil {
		candidates = append(candidates, pa)
	}
	return append(candidates, NewNoopDriver(logger))
}

// SelectDriver returns the first available candidate. An explicit preference
// must be available; "auto" walks the list and always ends at the no-op driver.
func SelectDriver(cfg SelectConfig, candidates []ports.Driver, logger *zap.SugaredLogger) (ports.Driver, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	preferred := cfg.Preferred
	if preferred == "" {
		preferred = DriverAuto
	}

	if preferred != DriverAuto {
		for _, driver := range candidates {
			if driver.Name() != preferred {
				continue
			}
			if !driver.Available() {
				return nil, fmt.Errorf("%w: %s", domain.ErrDriverUnavailable, preferred)
			}
			logger.Infow("using audio driver", "driver", driver.Name())
			return driver, nil
		}
		return nil, fmt.Errorf("%w: %s is not compiled in", domain.ErrDriverUnavailable, preferred)
	}

	for _, driver := range candidates {
		if !driver.Available() {
			logger.Debugw("audio driver unavailable", "driver", driver.Name())
			continue
		}
		if driver.Name() == DriverNoop {
			logger.Warnw("no real audio driver available, using noop driver")
		} else {
			logger.Infow("using audio driver", "driver", driver.Name())
		}
		return driver, nil
	}
	return nil, domain.ErrDriverUnavailable
}
