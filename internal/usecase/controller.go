package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
)

// DefaultStopTimeout bounds how long Stop waits for the capture worker.
const DefaultStopTimeout = 5 * time.Second

// Config controls recording behavior.
type Config struct {
	Capture     ports.CaptureParams
	TempDir     string
	StopTimeout time.Duration
	Now         func() time.Time
}

// SessionController owns the single recording session: Idle -> Recording ->
// Draining -> Idle.
type SessionController struct {
	driver ports.Driver
	events ports.EventSink
	logger *zap.SugaredLogger
	cfg    Config

	mu      sync.Mutex
	current *activeSession

	levelMu sync.RWMutex
	level   ports.LevelFunc
}

func NewSessionController(driver ports.Driver, events ports.EventSink, logger *zap.SugaredLogger, cfg Config) *SessionController {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 44100
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.PeriodSize <= 0 {
		cfg.Capture.PeriodSize = 1024
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionController{
		driver: driver,
		events: events,
		logger: logger,
		cfg:    cfg,
	}
}

// Start launches a capture worker for slotID. It returns the session id.
func (c *SessionController) Start(slotID string, messageType string, onComplete CompleteFunc) (string, error) {
	if err := domain.ValidateSlotID(slotID); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.current != nil {
		busy := c.current
		c.mu.Unlock()
		c.logger.Warnw("recording already in progress", "slot", slotID, "active_slot", busy.slotID, "state", busy.getState())
		return "", fmt.Errorf("%w: slot %s is %s", domain.ErrSessionBusy, busy.slotID, busy.getState())
	}

	startedAt := c.cfg.Now()
	sessionID := uuid.NewString()
	// The session suffix keeps names unique within one epoch second.
	name := fmt.Sprintf("%s_%s_%d-%s.wav", slotID, domain.MessageKeyword(messageType), startedAt.Unix(), sessionID[:8])
	ctx, cancel := context.WithCancel(context.Background())
	active := &activeSession{
		id:          sessionID,
		slotID:      slotID,
		messageType: messageType,
		tempPath:    filepath.Join(c.cfg.TempDir, name),
		startedAt:   startedAt,
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       domain.SessionStateRecording,
	}
	c.current = active
	c.mu.Unlock()

	c.logger.Infow("recording started", "session", active.id, "slot", slotID, "message_type", messageType, "driver", c.driver.Name())
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)

	go c.runCapture(ctx, active, onComplete)
	return active.id, nil
}

// Stop cancels the active capture and waits for the worker up to the
// configured timeout. A timed out worker keeps running and the controller
// stays Draining until it exits.
func (c *SessionController) Stop(ctx context.Context) (*domain.PendingRecording, error) {
	c.mu.Lock()
	active := c.current
	if active == nil || active.getState() != domain.SessionStateRecording {
		c.mu.Unlock()
		return nil, domain.ErrNoActiveSession
	}
	active.setState(domain.SessionStateDraining)
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateDraining, domain.SessionReasonRecordingStopping)
	active.cancel()

	if err := waitForWorker(ctx, active.done, c.cfg.StopTimeout); err != nil {
		c.logger.Errorw("recording worker still running after stop timeout; temp file may still be written",
			"session", active.id, "slot", active.slotID, "timeout", c.cfg.StopTimeout, "error", err)
		c.events.SessionError(domain.ErrorCodeStopTimeout, fmt.Sprintf("recording worker for slot %s did not stop", active.slotID))
		return nil, fmt.Errorf("%w: session %s: %w", domain.ErrStopTimeout, active.id, err)
	}

	pending, err := active.result()
	if err != nil {
		return nil, fmt.Errorf("recording slot %s: %w", active.slotID, err)
	}
	return pending, nil
}

// Status returns the current recorder status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	state := c.current.getState()
	return domain.Status{
		State:   state,
		Active:  state != domain.SessionStateIdle,
		SlotID:  c.current.slotID,
		Session: c.current.id,
	}
}

func (c *SessionController) IsRecording() bool {
	return c.Status().State == domain.SessionStateRecording
}

// SetLevelFunc registers the level callback. It applies to running sessions too.
func (c *SessionController) SetLevelFunc(fn ports.LevelFunc) {
	c.levelMu.Lock()
	defer c.levelMu.Unlock()
	c.level = fn
}

func (c *SessionController) reportLevel(rms float64) {
	c.levelMu.RLock()
	fn := c.level
	c.levelMu.RUnlock()
	if fn != nil {
		fn(rms)
	}
}

func (c *SessionController) finishSession(active *activeSession, reason domain.SessionStateReason) {
	active.setState(domain.SessionStateIdle)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
}
