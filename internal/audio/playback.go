package audio

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// playbackTracker runs at most one playback at a time and lets StopPlayback
// cancel it from another goroutine.
type playbackTracker struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *playbackTracker) run(ctx context.Context, blocking bool, play func(ctx context.Context) error) error {
	p.stop()

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	exec := func() error {
		defer close(done)
		defer cancel()
		err := play(playCtx)
		if err != nil && playCtx.Err() != nil && errors.Is(playCtx.Err(), context.Canceled) {
			return nil
		}
		return err
	}

	if blocking {
		return exec()
	}

	go func() {
		if err := exec(); err != nil && p.logger != nil {
			p.logger.Errorw("background playback failed", "error", err)
		}
	}()
	return nil
}

// stop cancels the running playback, if any, and waits for it to return.
func (p *playbackTracker) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
