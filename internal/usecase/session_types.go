package usecase

import (
	"sync"
	"time"

	"pagemsg/internal/domain"
)

// CompleteFunc receives the pending recording once the capture worker has
// written and closed the temp container. It receives nil when capture failed.
type CompleteFunc func(pending *domain.PendingRecording)

type activeSession struct {
	id          string
	slotID      string
	messageType string
	tempPath    string
	startedAt   time.Time

	cancel func()
	done   chan struct{}

	stateMu sync.Mutex
	state   domain.SessionState
	pending *domain.PendingRecording
	err     error
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *activeSession) setResult(pending *domain.PendingRecording, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.pending = pending
	s.err = err
}

func (s *activeSession) result() (*domain.PendingRecording, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.pending == nil {
		return nil, s.err
	}
	pending := *s.pending
	return &pending, s.err
}
