package domain

import (
	"strings"
	"time"
)

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateDraining  SessionState = "draining"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady             SessionStateReason = "ready"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonRecordingStopping SessionStateReason = "recording_stopping"
	SessionReasonRecordingSaved    SessionStateReason = "recording_saved"
	SessionReasonCaptureFailed     SessionStateReason = "capture_failed"
)

// ErrorCode identifies non-fatal backend errors surfaced to the event sink.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodeContainer   ErrorCode = "container"
	ErrorCodeStopTimeout ErrorCode = "stop_timeout"
)

// AudioFormat is the sample encoding of a stored container.
type AudioFormat string

const (
	AudioFormatPCM  AudioFormat = "pcm"
	AudioFormatALaw AudioFormat = "alaw"
	AudioFormatULaw AudioFormat = "ulaw"
)

// Companded reports whether the format needs transcoding from linear PCM.
func (f AudioFormat) Companded() bool {
	return f == AudioFormatALaw || f == AudioFormatULaw
}

// Well known message types.
const (
	MessageTypeAway            = "away_message"
	MessageTypeCustom          = "custom_message"
	MessageTypeDefault         = "default"
	MessageTypeRestoredDefault = "restored_default"
)

// TimestampLayout is the on-disk timestamp format (UTC, second precision).
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders t in the ledger layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the ledger layout and the ISO forms written by older ledgers.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Record is one stored recording, keyed by slot id in the metadata ledger.
type Record struct {
	Name            string      `json:"name" yaml:"name"`
	Path            string      `json:"path" yaml:"path"`
	DurationSeconds *float64    `json:"duration_seconds" yaml:"duration_seconds"`
	Timestamp       string      `json:"timestamp" yaml:"timestamp"`
	MessageType     string      `json:"message_type" yaml:"message_type"`
	AudioFormat     AudioFormat `json:"audio_format" yaml:"audio_format"`
	SampleRate      int         `json:"sample_rate" yaml:"sample_rate"`
	Channels        int         `json:"channels" yaml:"channels"`
	ReadOnly        bool        `json:"read_only" yaml:"read_only"`
	IsDefault       bool        `json:"is_default" yaml:"is_default"`
}

// PendingRecording describes a captured but not yet committed temp file.
type PendingRecording struct {
	SlotID          string  `json:"slot_id"`
	MessageType     string  `json:"message_type"`
	DurationSeconds float64 `json:"duration"`
	TempPath        string  `json:"temp_path"`
	Timestamp       string  `json:"timestamp"`
	Channels        int     `json:"channels"`
	SampleRate      int     `json:"sample_rate"`
	AudioFormat     string  `json:"audio_format"`
}

// Status summarizes the current recorder state.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	SlotID  string       `json:"slot_id,omitempty"`
	Session string       `json:"session,omitempty"`
}

// MessageKeyword normalizes a message type for use in file names.
func MessageKeyword(messageType string) string {
	return strings.ReplaceAll(strings.ToLower(messageType), " ", "_")
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
