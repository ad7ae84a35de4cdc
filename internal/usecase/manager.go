package usecase

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
	"pagemsg/internal/slots"
	"pagemsg/internal/store"
)

// ManagerConfig wires storage roots and recording parameters into the Manager.
type ManagerConfig struct {
	StorageDir         string
	TempDir            string
	Policy             slots.Policy
	DefaultMessageType string
	Format             domain.AudioFormat
	Capture            ports.CaptureParams
	OutputDevice       string
	StopTimeout        time.Duration
	Now                func() time.Time
}

// Manager is the entry point used by the CLI and panel adapters.
type Manager struct {
	store      *store.Store
	driver     ports.Driver
	controller *SessionController
	finalizer  recordingFinalizer
	logger     *zap.SugaredLogger
	cfg        ManagerConfig
	now        func() time.Time
}

func NewManager(
	st *store.Store,
	driver ports.Driver,
	transcoder ports.Transcoder,
	events ports.EventSink,
	logger *zap.SugaredLogger,
	cfg ManagerConfig,
) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if events == nil {
		events = discardEvents{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultMessageType == "" {
		cfg.DefaultMessageType = domain.MessageTypeCustom
	}
	if cfg.TempDir == "" {
		dir, err := os.MkdirTemp("", "pagemsg_staging_")
		if err != nil {
			dir = filepath.Join(os.TempDir(), "pagemsg_staging")
		}
		cfg.TempDir = dir
	}

	controller := NewSessionController(driver, events, logger, Config{
		Capture:     cfg.Capture,
		TempDir:     cfg.TempDir,
		StopTimeout: cfg.StopTimeout,
		Now:         cfg.Now,
	})
	return &Manager{
		store:      st,
		driver:     driver,
		controller: controller,
		finalizer:  newRecordingFinalizer(st, transcoder, cfg.StorageDir, cfg.Format, logger),
		logger:     logger,
		cfg:        cfg,
		now:        cfg.Now,
	}
}

// StartRecording begins capture for slotID. An empty slotID is allocated
// from messageType's pool. It returns the slot being recorded.
func (m *Manager) StartRecording(slotID string, messageType string, onComplete CompleteFunc) (string, error) {
	if messageType == "" {
		messageType = m.cfg.DefaultMessageType
	}
	if slotID == "" {
		slotID = m.NextSlot(messageType)
		m.logger.Debugw("allocated slot", "slot", slotID, "message_type", messageType)
	}
	if _, err := m.controller.Start(slotID, messageType, onComplete); err != nil {
		return "", err
	}
	return slotID, nil
}

// StopRecording ends the active capture and returns the pending recording.
func (m *Manager) StopRecording(ctx context.Context) (*domain.PendingRecording, error) {
	return m.controller.Stop(ctx)
}

func (m *Manager) Finalize(ctx context.Context, pending *domain.PendingRecording) (domain.Record, error) {
	return m.finalizer.Finalize(ctx, pending)
}

// Discard removes staged temp files for slotID. Committed recordings are
// never touched. It returns the number of files removed.
func (m *Manager) Discard(slotID string) (int, error) {
	if err := domain.ValidateSlotID(slotID); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(m.cfg.TempDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	prefix := slotID + "_"
	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".wav") {
			continue
		}
		path := filepath.Join(m.cfg.TempDir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Infow("discarded staged recordings", "slot", slotID, "count", removed)
	}
	return removed, errors.Join(errs...)
}

// SetReadOnly toggles protection on an existing record.
func (m *Manager) SetReadOnly(slotID string, readOnly bool) error {
	found, err := m.store.SetReadOnly(slotID, readOnly)
	if err != nil {
		return err
	}
	if !found {
		m.logger.Warnw("cannot change read-only flag: no recording", "slot", slotID)
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, slotID)
	}
	m.logger.Infow("read-only flag changed", "slot", slotID, "read_only", readOnly)
	return nil
}

// Play plays a file path directly, or resolves a slot id through the store.
func (m *Manager) Play(ctx context.Context, slotOrPath string, blocking bool) error {
	path, err := m.resolvePlayable(slotOrPath)
	if err != nil {
		m.logger.Errorw("cannot play", "target", slotOrPath, "error", err)
		return err
	}
	if err := m.driver.PlayFile(ctx, path, blocking); err != nil {
		m.logger.Errorw("playback failed", "path", path, "driver", m.driver.Name(), "error", err)
		return fmt.Errorf("play %s: %w", path, err)
	}
	return nil
}

func (m *Manager) resolvePlayable(slotOrPath string) (string, error) {
	if info, err := os.Stat(slotOrPath); err == nil && !info.IsDir() {
		return slotOrPath, nil
	}
	record, ok := m.store.Get(slotOrPath)
	if !ok {
		return "", fmt.Errorf("%w: no file or slot %q", domain.ErrRecordNotFound, slotOrPath)
	}
	if _, err := os.Stat(record.Path); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, record.Path)
	}
	return record.Path, nil
}

func (m *Manager) StopPlayback() error {
	return m.driver.StopPlayback()
}

// ListAll returns a copy of every stored record keyed by slot id.
func (m *Manager) ListAll() map[string]domain.Record {
	return m.store.All()
}

func (m *Manager) Recording(slotID string) (domain.Record, bool) {
	return m.store.Get(slotID)
}

// MessagePath returns the stored file for messageType. With a slot id the
// record must be of that type; without one the newest record of the type wins.
func (m *Manager) MessagePath(messageType string, slotID string) (string, error) {
	if slotID != "" {
		record, ok := m.store.Get(slotID)
		if !ok || record.MessageType != messageType {
			return "", fmt.Errorf("%w: %s recording in slot %s", domain.ErrRecordNotFound, messageType, slotID)
		}
		return record.Path, nil
	}
	_, record, ok := m.store.NewestOfType(messageType)
	if !ok {
		return "", fmt.Errorf("%w: no %s recording", domain.ErrRecordNotFound, messageType)
	}
	return record.Path, nil
}

// NextSlot returns the id the next recording of messageType would use.
func (m *Manager) NextSlot(messageType string) string {
	return slots.Allocate(m.store.All(), messageType, m.cfg.Policy, m.logger)
}

func (m *Manager) EmptySlotsMask(messageType string) string {
	return slots.EmptyMask(m.store.All(), messageType, m.cfg.Policy.NumButtons, m.logger)
}

// DeviceInfo returns the driver's device description plus the selected backend.
func (m *Manager) DeviceInfo() map[string]any {
	info := map[string]any{}
	maps.Copy(info, m.driver.DeviceInfo())
	info["backend"] = m.driver.Name()
	info["input_device"] = m.cfg.Capture.Device
	info["output_device"] = m.cfg.OutputDevice
	return info
}

// Delete removes a record and its file. Read-only records are kept.
func (m *Manager) Delete(slotID string) error {
	record, ok := m.store.Get(slotID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, slotID)
	}
	if record.ReadOnly {
		m.logger.Warnw("delete blocked: slot is read-only", "slot", slotID)
		return fmt.Errorf("%w: %s", domain.ErrSlotReadOnly, slotID)
	}
	if err := os.Remove(record.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", record.Path, err)
	}
	if _, err := m.store.Delete(slotID); err != nil {
		return err
	}
	m.logger.Infow("recording deleted", "slot", slotID, "path", record.Path)
	return nil
}

func (m *Manager) SetLevelFunc(fn ports.LevelFunc) {
	m.controller.SetLevelFunc(fn)
}

func (m *Manager) IsRecording() bool {
	return m.controller.IsRecording()
}

func (m *Manager) Status() domain.Status {
	return m.controller.Status()
}

// Cleanup stops any capture and playback and removes the temp directory.
func (m *Manager) Cleanup(ctx context.Context) error {
	var errs []error
	if m.controller.IsRecording() {
		if _, err := m.controller.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.driver.StopPlayback(); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(m.cfg.TempDir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type discardEvents struct{}

func (discardEvents) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (discardEvents) SessionError(domain.ErrorCode, string)                          {}
