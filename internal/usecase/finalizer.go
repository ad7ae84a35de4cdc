package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
	"pagemsg/internal/store"
)

type recordingFinalizer struct {
	store      *store.Store
	transcoder ports.Transcoder
	storageDir string
	format     domain.AudioFormat
	logger     *zap.SugaredLogger
}

func newRecordingFinalizer(st *store.Store, transcoder ports.Transcoder, storageDir string, format domain.AudioFormat, logger *zap.SugaredLogger) recordingFinalizer {
	if format == "" {
		format = domain.AudioFormatPCM
	}
	return recordingFinalizer{
		store:      st,
		transcoder: transcoder,
		storageDir: storageDir,
		format:     format,
		logger:     logger,
	}
}

// Finalize commits pending into the storage root. A read-only target slot is
// left untouched and the temp file stays in place for discard.
func (f recordingFinalizer) Finalize(ctx context.Context, pending *domain.PendingRecording) (domain.Record, error) {
	if pending == nil || pending.TempPath == "" {
		return domain.Record{}, fmt.Errorf("%w: empty pending recording", domain.ErrSourceNotFound)
	}
	if err := domain.ValidateSlotID(pending.SlotID); err != nil {
		return domain.Record{}, err
	}
	if existing, ok := f.store.Get(pending.SlotID); ok && existing.ReadOnly {
		f.logger.Warnw("finalize blocked: slot is read-only", "slot", pending.SlotID, "path", existing.Path)
		return domain.Record{}, fmt.Errorf("%w: %s", domain.ErrSlotReadOnly, pending.SlotID)
	}
	if _, err := os.Stat(pending.TempPath); err != nil {
		f.logger.Errorw("finalize failed: temp recording missing", "slot", pending.SlotID, "path", pending.TempPath)
		return domain.Record{}, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, pending.TempPath)
	}
	if err := os.MkdirAll(f.storageDir, 0o755); err != nil {
		return domain.Record{}, fmt.Errorf("create storage dir: %w", err)
	}

	name := filepath.Base(pending.TempPath)
	finalPath, err := filepath.Abs(filepath.Join(f.storageDir, name))
	if err != nil {
		return domain.Record{}, err
	}

	format, err := f.commitFile(ctx, pending, finalPath)
	if err != nil {
		return domain.Record{}, err
	}

	record := domain.Record{
		Name:            name,
		Path:            finalPath,
		DurationSeconds: domain.Float(pending.DurationSeconds),
		Timestamp:       pending.Timestamp,
		MessageType:     pending.MessageType,
		AudioFormat:     format,
		SampleRate:      pending.SampleRate,
		Channels:        pending.Channels,
	}
	if err := f.store.Put(pending.SlotID, record); err != nil {
		if restoreErr := moveFile(finalPath, pending.TempPath); restoreErr != nil {
			f.logger.Errorw("failed to return recording to staging", "slot", pending.SlotID, "path", finalPath, "error", restoreErr)
		}
		return domain.Record{}, err
	}

	f.logger.Infow("recording finalized", "slot", pending.SlotID, "message_type", pending.MessageType, "path", finalPath, "format", format)
	return record, nil
}

// commitFile transcodes or moves the temp file to finalPath and returns the
// stored format. Conversion failures fall back to the untranscoded file.
func (f recordingFinalizer) commitFile(ctx context.Context, pending *domain.PendingRecording, finalPath string) (domain.AudioFormat, error) {
	if f.format.Companded() && f.transcoder != nil {
		err := f.transcoder.Convert(ctx, pending.TempPath, finalPath, f.format, pending.SampleRate, pending.Channels)
		if err == nil {
			if rmErr := os.Remove(pending.TempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				f.logger.Warnw("failed to remove temp recording", "path", pending.TempPath, "error", rmErr)
			}
			return f.format, nil
		}
		f.logger.Errorw("conversion failed, storing untranscoded recording",
			"slot", pending.SlotID, "transcoder", f.transcoder.Name(), "format", f.format, "error", err)
		_ = os.Remove(finalPath)
	}

	if err := moveFile(pending.TempPath, finalPath); err != nil {
		return "", fmt.Errorf("move recording into storage: %w", err)
	}
	return domain.AudioFormatPCM, nil
}

func moveFile(src string, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile writes src to a temp file beside dst and renames it into place,
// so src and dst may name the same file.
func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := out.Name()
	if err := out.Chmod(0o644); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
