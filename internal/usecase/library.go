package usecase

import (
	"fmt"
	"os"
	"path/filepath"

	"pagemsg/internal/audio"
	"pagemsg/internal/domain"
)

func defaultFileName(slotID string) string {
	return fmt.Sprintf("default_%s.wav", slotID)
}

func sameFile(src os.FileInfo, path string) bool {
	dst, err := os.Stat(path)
	return err == nil && os.SameFile(src, dst)
}

// AssignDefault copies sourcePath into storage as the slot's factory default
// and records it read-only.
func (m *Manager) AssignDefault(slotID string, sourcePath string) (domain.Record, error) {
	if err := domain.ValidateSlotID(slotID); err != nil {
		return domain.Record{}, err
	}
	info, err := os.Stat(sourcePath)
	if err != nil || info.IsDir() {
		m.logger.Errorw("cannot assign default: source file not found", "slot", slotID, "path", sourcePath)
		return domain.Record{}, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, sourcePath)
	}
	if err := os.MkdirAll(m.cfg.StorageDir, 0o755); err != nil {
		return domain.Record{}, fmt.Errorf("create storage dir: %w", err)
	}

	name := defaultFileName(slotID)
	defaultPath, err := filepath.Abs(filepath.Join(m.cfg.StorageDir, name))
	if err != nil {
		return domain.Record{}, err
	}
	if sameFile(info, defaultPath) {
		m.logger.Debugw("source is already the default file", "slot", slotID, "path", defaultPath)
	} else if err := copyFile(sourcePath, defaultPath); err != nil {
		return domain.Record{}, fmt.Errorf("copy default for slot %s: %w", slotID, err)
	}

	record := m.describeFile(slotID, name, defaultPath)
	record.MessageType = domain.MessageTypeDefault
	record.ReadOnly = true
	record.IsDefault = true
	if err := m.store.Put(slotID, record); err != nil {
		return domain.Record{}, err
	}

	m.logger.Infow("default assigned", "slot", slotID, "path", defaultPath)
	return record, nil
}

// RestoreDefault copies the slot's default file to a fresh name and replaces
// the slot's record with a writable copy. The default file is left as is.
func (m *Manager) RestoreDefault(slotID string) (domain.Record, error) {
	if err := domain.ValidateSlotID(slotID); err != nil {
		return domain.Record{}, err
	}
	defaultPath := filepath.Join(m.cfg.StorageDir, defaultFileName(slotID))
	if _, err := os.Stat(defaultPath); err != nil {
		m.logger.Warnw("cannot restore default: default file not found", "slot", slotID, "path", defaultPath)
		return domain.Record{}, fmt.Errorf("%w: %s", domain.ErrNoDefault, slotID)
	}

	name := fmt.Sprintf("%s_restored_%d.wav", slotID, m.now().Unix())
	restoredPath, err := filepath.Abs(filepath.Join(m.cfg.StorageDir, name))
	if err != nil {
		return domain.Record{}, err
	}
	if err := copyFile(defaultPath, restoredPath); err != nil {
		return domain.Record{}, fmt.Errorf("restore default for slot %s: %w", slotID, err)
	}

	record := m.describeFile(slotID, name, restoredPath)
	record.MessageType = domain.MessageTypeRestoredDefault
	if err := m.store.Put(slotID, record); err != nil {
		return domain.Record{}, err
	}

	m.logger.Infow("default restored", "slot", slotID, "path", restoredPath)
	return record, nil
}

// describeFile builds a record from the container header. An unreadable
// header leaves the duration null.
func (m *Manager) describeFile(slotID string, name string, path string) domain.Record {
	record := domain.Record{
		Name:        name,
		Path:        path,
		Timestamp:   domain.FormatTimestamp(m.now()),
		AudioFormat: domain.AudioFormatPCM,
	}

	info, err := audio.Probe(path)
	if err != nil {
		m.logger.Warnw("could not read duration, leaving it null", "slot", slotID, "path", path, "error", err)
		return record
	}
	record.DurationSeconds = domain.Float(audio.Round2(info.Seconds()))
	record.AudioFormat = info.Format
	record.SampleRate = info.SampleRate
	record.Channels = info.Channels
	return record
}
