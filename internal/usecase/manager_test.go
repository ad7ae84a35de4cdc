package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pagemsg/internal/audio"
	"pagemsg/internal/domain"
	"pagemsg/internal/ports"
	"pagemsg/internal/slots"
	"pagemsg/internal/store"
)

type managerFixture struct {
	manager    *Manager
	store      *store.Store
	driver     *fakeDriver
	transcoder *fakeTranscoder
	logs       *observer.ObservedLogs
	cfg        ManagerConfig
}

func newManagerFixture(t *testing.T, format domain.AudioFormat) managerFixture {
	t.Helper()

	root := t.TempDir()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	st, err := store.Open(filepath.Join(root, "metadata.json"), logger)
	require.NoError(t, err)

	driver := &fakeDriver{pcm: make([]byte, 16000)}
	transcoder := &fakeTranscoder{}
	clock := newStepClock()
	cfg := ManagerConfig{
		StorageDir:         filepath.Join(root, "storage"),
		TempDir:            filepath.Join(root, "staging"),
		Policy:             slots.NewPolicy(16, []string{domain.MessageTypeAway}, 4),
		DefaultMessageType: domain.MessageTypeCustom,
		Format:             format,
		Capture:            ports.CaptureParams{SampleRate: 8000, Channels: 1, PeriodSize: 160, Device: "hw:1"},
		OutputDevice:       "hw:2",
		Now:                clock.Now,
	}

	return managerFixture{
		manager:    NewManager(st, driver, transcoder, &fakeEventSink{}, logger, cfg),
		store:      st,
		driver:     driver,
		transcoder: transcoder,
		logs:       logs,
		cfg:        cfg,
	}
}

func recordPending(t *testing.T, m *Manager, slotID string, messageType string) *domain.PendingRecording {
	t.Helper()
	_, err := m.StartRecording(slotID, messageType, nil)
	require.NoError(t, err)
	pending, err := m.StopRecording(context.Background())
	require.NoError(t, err)
	require.NotNil(t, pending)
	return pending
}

func TestManagerRecordAndFinalize(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	pending := recordPending(t, f.manager, "7", domain.MessageTypeCustom)
	assert.GreaterOrEqual(t, pending.DurationSeconds, 0.0)
	assert.FileExists(t, pending.TempPath)

	record, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)

	stored, ok := f.store.Get("7")
	require.True(t, ok)
	assert.Equal(t, domain.MessageTypeCustom, stored.MessageType)
	assert.Equal(t, record, stored)
	assert.Equal(t, domain.AudioFormatPCM, stored.AudioFormat)
	assert.False(t, stored.ReadOnly)
	assert.False(t, stored.IsDefault)
	assert.Equal(t, filepath.Base(pending.TempPath), stored.Name)
	require.NotNil(t, stored.DurationSeconds)
	assert.InDelta(t, 1.0, *stored.DurationSeconds, 0.0001)

	assert.NoFileExists(t, pending.TempPath)
	assert.FileExists(t, stored.Path)
	assert.True(t, filepath.IsAbs(stored.Path))
	assert.Zero(t, f.transcoder.callCount())

	reopened, err := store.Open(f.store.Path(), nil)
	require.NoError(t, err)
	again, ok := reopened.Get("7")
	require.True(t, ok)
	assert.Equal(t, stored, again)
}

func TestManagerStartRecordingAllocatesSlot(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	require.NoError(t, f.store.Put("1", domain.Record{MessageType: domain.MessageTypeCustom, Timestamp: "2024-01-01 00:00:00"}))

	slot, err := f.manager.StartRecording("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", slot)
	assert.True(t, f.manager.IsRecording())

	pending, err := f.manager.StopRecording(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeCustom, pending.MessageType)
	assert.False(t, f.manager.IsRecording())
}

func TestManagerSaturatedCategoryReusesOldestSlot(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	for want := 1; want <= 4; want++ {
		pending := recordPending(t, f.manager, "", domain.MessageTypeAway)
		assert.Equal(t, []string{"1", "2", "3", "4"}[want-1], pending.SlotID)
		_, err := f.manager.Finalize(context.Background(), pending)
		require.NoError(t, err)
	}

	assert.Equal(t, "1", f.manager.NextSlot(domain.MessageTypeAway))

	pending := recordPending(t, f.manager, "", domain.MessageTypeAway)
	assert.Equal(t, "1", pending.SlotID)
	_, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)

	assert.Equal(t, "2", f.manager.NextSlot(domain.MessageTypeAway))
	assert.Len(t, f.store.RecordsOfType(domain.MessageTypeAway), 4)
}

func TestManagerFinalizeReadOnlySlotLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	pending := recordPending(t, f.manager, "3", domain.MessageTypeCustom)
	_, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetReadOnly("3", true))

	before, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	second := recordPending(t, f.manager, "3", domain.MessageTypeCustom)
	_, err = f.manager.Finalize(context.Background(), second)
	assert.ErrorIs(t, err, domain.ErrSlotReadOnly)

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.FileExists(t, second.TempPath)
	assert.Equal(t, 1, f.logs.FilterMessage("finalize blocked: slot is read-only").Len())

	assert.ErrorIs(t, f.manager.Delete("3"), domain.ErrSlotReadOnly)
	after, err = os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestManagerDiscardIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	committed := recordPending(t, f.manager, "5", domain.MessageTypeCustom)
	record, err := f.manager.Finalize(context.Background(), committed)
	require.NoError(t, err)

	other := recordPending(t, f.manager, "15", domain.MessageTypeCustom)
	pending := recordPending(t, f.manager, "5", domain.MessageTypeCustom)

	removed, err := f.manager.Discard("5")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, pending.TempPath)
	assert.FileExists(t, other.TempPath)

	removed, err = f.manager.Discard("5")
	require.NoError(t, err)
	assert.Zero(t, removed)

	stored, ok := f.store.Get("5")
	require.True(t, ok)
	assert.Equal(t, record, stored)
	assert.FileExists(t, stored.Path)
}

func TestManagerDefaultRestoreCycle(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	source := filepath.Join(t.TempDir(), "factory.wav")
	require.NoError(t, audio.WriteWAV(source, make([]byte, 8000), 8000, 1))

	def, err := f.manager.AssignDefault("2", source)
	require.NoError(t, err)
	assert.True(t, def.IsDefault)
	assert.True(t, def.ReadOnly)
	assert.Equal(t, "default_2.wav", def.Name)
	assert.Equal(t, domain.MessageTypeDefault, def.MessageType)
	require.NotNil(t, def.DurationSeconds)
	assert.InDelta(t, 0.5, *def.DurationSeconds, 0.0001)
	assert.Equal(t, 8000, def.SampleRate)

	restored, err := f.manager.RestoreDefault("2")
	require.NoError(t, err)
	assert.False(t, restored.IsDefault)
	assert.False(t, restored.ReadOnly)
	assert.Equal(t, domain.MessageTypeRestoredDefault, restored.MessageType)
	assert.Contains(t, restored.Name, "restored")
	assert.NotEqual(t, def.Path, restored.Path)
	assert.FileExists(t, restored.Path)
	assert.FileExists(t, def.Path)

	stored, ok := f.store.Get("2")
	require.True(t, ok)
	assert.Equal(t, restored, stored)
}

func TestManagerReassignDefaultFromItself(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	source := filepath.Join(t.TempDir(), "factory.wav")
	require.NoError(t, audio.WriteWAV(source, make([]byte, 8000), 8000, 1))

	def, err := f.manager.AssignDefault("2", source)
	require.NoError(t, err)
	before, err := os.Stat(def.Path)
	require.NoError(t, err)

	again, err := f.manager.AssignDefault("2", def.Path)
	require.NoError(t, err)
	after, err := os.Stat(again.Path)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())
	require.NotNil(t, again.DurationSeconds)
	assert.InDelta(t, 0.5, *again.DurationSeconds, 0.0001)

	relative, err := filepath.Rel(mustGetwd(t), def.Path)
	require.NoError(t, err)
	third, err := f.manager.AssignDefault("2", relative)
	require.NoError(t, err)
	require.NotNil(t, third.DurationSeconds)
	assert.InDelta(t, 0.5, *third.DurationSeconds, 0.0001)
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func TestManagerAssignDefaultWithUnreadableHeader(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	source := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(source, []byte("not audio"), 0o644))

	def, err := f.manager.AssignDefault("6", source)
	require.NoError(t, err)
	assert.Nil(t, def.DurationSeconds)
	assert.True(t, def.IsDefault)
}

func TestManagerAssignDefaultMissingSource(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	_, err := f.manager.AssignDefault("2", filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.Empty(t, f.manager.ListAll())
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestManagerRestoreWithoutDefault(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	_, err := f.manager.RestoreDefault("8")
	assert.ErrorIs(t, err, domain.ErrNoDefault)
	assert.Empty(t, f.manager.ListAll())
}

func TestManagerFinalizeTranscodesCompandedFormat(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatULaw)
	pending := recordPending(t, f.manager, "1", domain.MessageTypeCustom)

	record, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, domain.AudioFormatULaw, record.AudioFormat)
	assert.NoFileExists(t, pending.TempPath)
	assert.FileExists(t, record.Path)

	call := f.transcoder.lastCall()
	assert.Equal(t, pending.TempPath, call.input)
	assert.Equal(t, record.Path, call.output)
	assert.Equal(t, domain.AudioFormatULaw, call.target)
	assert.Equal(t, 8000, call.sampleRate)
	assert.Equal(t, 1, call.channels)
}

func TestManagerFinalizeConversionFailureKeepsRecording(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatALaw)
	f.transcoder.err = errors.New("ffmpeg exploded")
	pending := recordPending(t, f.manager, "1", domain.MessageTypeCustom)

	record, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, domain.AudioFormatPCM, record.AudioFormat)
	assert.FileExists(t, record.Path)
	assert.NoFileExists(t, pending.TempPath)
	assert.Equal(t, 1, f.logs.FilterMessage("conversion failed, storing untranscoded recording").Len())

	info, err := audio.Probe(record.Path)
	require.NoError(t, err)
	assert.Equal(t, domain.AudioFormatPCM, info.Format)
}

func TestManagerFinalizeRejectsEmptyPending(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	_, err := f.manager.Finalize(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	_, err = f.manager.Finalize(context.Background(), &domain.PendingRecording{SlotID: "1", TempPath: filepath.Join(t.TempDir(), "gone.wav")})
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.Empty(t, f.manager.ListAll())
}

func TestManagerPlayResolvesSlotOrPath(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	pending := recordPending(t, f.manager, "4", domain.MessageTypeCustom)
	record, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)

	require.NoError(t, f.manager.Play(context.Background(), "4", true))
	require.NoError(t, f.manager.Play(context.Background(), record.Path, false))
	assert.Equal(t, []string{record.Path, record.Path}, f.driver.snapshotPlayed())

	err = f.manager.Play(context.Background(), "99", true)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	require.NoError(t, os.Remove(record.Path))
	err = f.manager.Play(context.Background(), "4", true)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	require.NoError(t, f.manager.StopPlayback())
	assert.Equal(t, 1, f.driver.stopPlayCalls)
}

func TestManagerSetReadOnlyUnknownSlot(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	assert.ErrorIs(t, f.manager.SetReadOnly("12", true), domain.ErrRecordNotFound)
	assert.Empty(t, f.manager.ListAll())
}

func TestManagerDeleteRemovesRecordAndFile(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	pending := recordPending(t, f.manager, "11", domain.MessageTypeCustom)
	record, err := f.manager.Finalize(context.Background(), pending)
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete("11"))
	assert.NoFileExists(t, record.Path)
	_, ok := f.manager.Recording("11")
	assert.False(t, ok)

	assert.ErrorIs(t, f.manager.Delete("11"), domain.ErrRecordNotFound)
}

func TestManagerMessagePathAndMask(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	require.NoError(t, f.store.Put("1", domain.Record{Path: "/a.wav", MessageType: domain.MessageTypeAway, Timestamp: "2024-01-01 00:00:00"}))
	require.NoError(t, f.store.Put("3", domain.Record{Path: "/c.wav", MessageType: domain.MessageTypeAway, Timestamp: "2024-06-01 00:00:00"}))
	require.NoError(t, f.store.Put("2", domain.Record{Path: "/b.wav", MessageType: domain.MessageTypeCustom, Timestamp: "2025-01-01 00:00:00"}))

	path, err := f.manager.MessagePath(domain.MessageTypeAway, "")
	require.NoError(t, err)
	assert.Equal(t, "/c.wav", path)

	path, err = f.manager.MessagePath(domain.MessageTypeAway, "1")
	require.NoError(t, err)
	assert.Equal(t, "/a.wav", path)

	_, err = f.manager.MessagePath(domain.MessageTypeAway, "2")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = f.manager.MessagePath("nothing", "")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	assert.Equal(t, "0xFFFA", f.manager.EmptySlotsMask(domain.MessageTypeAway))
	assert.Equal(t, "2", f.manager.NextSlot(domain.MessageTypeAway))
}

func TestManagerDeviceInfo(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	info := f.manager.DeviceInfo()
	assert.Equal(t, "fake", info["backend"])
	assert.Equal(t, "hw:1", info["input_device"])
	assert.Equal(t, "hw:2", info["output_device"])
	assert.Equal(t, 8000, info["sample_rate"])
}

func TestManagerCleanupStopsRecordingAndRemovesStaging(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	_, err := f.manager.StartRecording("1", "", nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.Cleanup(context.Background()))
	assert.False(t, f.manager.IsRecording())
	assert.NoDirExists(t, f.cfg.TempDir)
	assert.Equal(t, 1, f.driver.stopPlayCalls)
}

func TestManagerLevelCallback(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t, domain.AudioFormatPCM)
	f.driver.levels = []float64{0.75}

	var got []float64
	f.manager.SetLevelFunc(func(rms float64) { got = append(got, rms) })
	recordPending(t, f.manager, "1", "")
	assert.Equal(t, []float64{0.75}, got)
}

type transcodeCall struct {
	input      string
	output     string
	target     domain.AudioFormat
	sampleRate int
	channels   int
}

type fakeTranscoder struct {
	err error

	mu    sync.Mutex
	calls []transcodeCall
}

func (f *fakeTranscoder) Name() string { return "fake" }

func (f *fakeTranscoder) Convert(_ context.Context, input string, output string, target domain.AudioFormat, sampleRate int, channels int) error {
	f.mu.Lock()
	f.calls = append(f.calls, transcodeCall{input: input, output: output, target: target, sampleRate: sampleRate, channels: channels})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte(strings.Repeat("x", 16)), 0o644)
}

func (f *fakeTranscoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTranscoder) lastCall() transcodeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return transcodeCall{}
	}
	return f.calls[len(f.calls)-1]
}
