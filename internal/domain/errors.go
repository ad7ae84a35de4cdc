package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDriverUnavailable = errors.New("no audio driver available")
	ErrSessionBusy       = errors.New("a recording session is already active")
	ErrNoActiveSession   = errors.New("no active recording session")
	ErrSlotReadOnly      = errors.New("slot is read-only")
	ErrSourceNotFound    = errors.New("source file not found")
	ErrConversionFailed  = errors.New("audio conversion failed")
	ErrStoreCorrupted    = errors.New("metadata file is corrupted")
	ErrStopTimeout       = errors.New("recording worker did not stop in time")
	ErrRecordNotFound    = errors.New("recording not found")
	ErrNoDefault         = errors.New("no default recording for slot")
	ErrInvalidSlot       = errors.New("invalid slot id")
)

// ValidateSlotID rejects ids that cannot be embedded in a file name.
func ValidateSlotID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlot)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, id)
	}
	return nil
}
