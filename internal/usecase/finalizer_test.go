package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pagemsg/internal/audio"
	"pagemsg/internal/domain"
	"pagemsg/internal/store"
)

func TestRecordingFinalizerWithoutTranscoderStoresPCM(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, "metadata.json"), nil)
	require.NoError(t, err)

	temp := filepath.Join(root, "1_custom_message_100.wav")
	require.NoError(t, audio.WriteWAV(temp, make([]byte, 320), 8000, 1))

	f := newRecordingFinalizer(st, nil, filepath.Join(root, "storage"), domain.AudioFormatALaw, zap.NewNop().Sugar())
	record, err := f.Finalize(context.Background(), &domain.PendingRecording{
		SlotID:          "1",
		MessageType:     domain.MessageTypeCustom,
		DurationSeconds: 0.02,
		TempPath:        temp,
		Timestamp:       "2024-05-01 12:00:00",
		Channels:        1,
		SampleRate:      8000,
		AudioFormat:     "wav",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AudioFormatPCM, record.AudioFormat)
	assert.Equal(t, "1_custom_message_100.wav", record.Name)
	assert.Equal(t, "2024-05-01 12:00:00", record.Timestamp)
	assert.FileExists(t, record.Path)
}

func TestRecordingFinalizerReturnsFileToStagingWhenSaveFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	metaDir := filepath.Join(root, "meta")
	st, err := store.Open(filepath.Join(metaDir, "metadata.json"), nil)
	require.NoError(t, err)

	// A plain file where the metadata directory was makes every save fail.
	require.NoError(t, os.RemoveAll(metaDir))
	require.NoError(t, os.WriteFile(metaDir, []byte("x"), 0o644))

	temp := filepath.Join(root, "4_custom_message_100.wav")
	require.NoError(t, audio.WriteWAV(temp, make([]byte, 320), 8000, 1))
	storageDir := filepath.Join(root, "storage")

	f := newRecordingFinalizer(st, nil, storageDir, domain.AudioFormatPCM, zap.NewNop().Sugar())
	_, err = f.Finalize(context.Background(), &domain.PendingRecording{
		SlotID:      "4",
		MessageType: domain.MessageTypeCustom,
		TempPath:    temp,
		Timestamp:   "2024-05-01 12:00:00",
		Channels:    1,
		SampleRate:  8000,
	})
	require.Error(t, err)

	assert.FileExists(t, temp)
	assert.NoFileExists(t, filepath.Join(storageDir, "4_custom_message_100.wav"))
	_, ok := st.Get("4")
	assert.False(t, ok)
}

func TestRecordingFinalizerRejectsBadSlot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, "metadata.json"), nil)
	require.NoError(t, err)

	f := newRecordingFinalizer(st, nil, root, "", zap.NewNop().Sugar())
	_, err = f.Finalize(context.Background(), &domain.PendingRecording{SlotID: "../x", TempPath: filepath.Join(root, "a.wav")})
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "dst.wav")
	require.NoError(t, os.WriteFile(src, []byte("riff"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "riff", string(raw))

	assert.Error(t, moveFile(src, dst))
}

func TestCopyFileKeepsSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "copy.wav")
	require.NoError(t, os.WriteFile(src, []byte("riff"), 0o644))

	require.NoError(t, copyFile(src, dst))
	assert.FileExists(t, src)
	assert.FileExists(t, dst)
}

func TestCopyFileOntoItselfKeepsContents(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "same.wav")
	require.NoError(t, os.WriteFile(src, []byte("riff-data"), 0o644))

	require.NoError(t, copyFile(src, src))
	raw, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "riff-data", string(raw))
}
