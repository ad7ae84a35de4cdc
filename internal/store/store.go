package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
)

// Store is the write-through JSON ledger mapping slot id to Record.
type Store struct {
	path   string
	logger *zap.SugaredLogger

	mu      sync.Mutex
	records map[string]domain.Record
}

// Open loads the ledger at path. A missing file yields an empty store; an
// unparsable one is moved aside and the store starts empty.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	s := &Store{path: path, logger: logger, records: map[string]domain.Record{}}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read metadata file %q: %w", path, err)
	}

	if len(contents) == 0 {
		return s, nil
	}

	records, err := decodeLedger(contents)
	if err != nil {
		aside := path + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
		if renameErr := os.Rename(path, aside); renameErr != nil {
			aside = ""
		}
		logger.Errorw("starting with empty metadata store",
			"error", err,
			"path", path,
			"moved_to", aside,
		)
		return s, nil
	}

	s.records = records
	logger.Debugw("metadata loaded", "path", path, "records", len(records))
	return s, nil
}

// Inspect reads the ledger at path without modifying it and returns the
// number of records. A missing file wraps os.ErrNotExist and an unparsable
// one wraps domain.ErrStoreCorrupted.
func Inspect(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read metadata file %q: %w", path, err)
	}
	if len(contents) == 0 {
		return 0, nil
	}
	records, err := decodeLedger(contents)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func decodeLedger(contents []byte) (map[string]domain.Record, error) {
	var records map[string]domain.Record
	if err := json.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreCorrupted, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: top level is not a JSON object", domain.ErrStoreCorrupted)
	}
	return records, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(id string) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	return record, ok
}

// All returns a snapshot copy of the ledger.
func (s *Store) All() map[string]domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(func(domain.Record) bool { return true })
}

// Put creates or replaces the record at id and persists the ledger.
func (s *Store) Put(id string, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.records[id]
	s.records[id] = record
	if err := s.saveLocked(); err != nil {
		if existed {
			s.records[id] = previous
		} else {
			delete(s.records, id)
		}
		return err
	}
	return nil
}

// SetReadOnly toggles the read-only flag. Unknown ids are a no-op and report false.
func (s *Store) SetReadOnly(id string, readOnly bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return false, nil
	}
	previous := record.ReadOnly
	record.ReadOnly = readOnly
	s.records[id] = record
	if err := s.saveLocked(); err != nil {
		record.ReadOnly = previous
		s.records[id] = record
		return true, err
	}
	return true, nil
}

// Delete removes the record at id. Unknown ids are a no-op and report false.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return false, nil
	}
	delete(s.records, id)
	if err := s.saveLocked(); err != nil {
		s.records[id] = record
		return true, err
	}
	return true, nil
}

func (s *Store) RecordsOfType(messageType string) map[string]domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(func(r domain.Record) bool { return r.MessageType == messageType })
}

// NewestOfType returns the record of messageType with the latest timestamp.
// Records whose timestamp does not parse are skipped.
func (s *Store) NewestOfType(messageType string) (string, domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		newestID   string
		newest     domain.Record
		newestTime time.Time
		found      bool
	)
	for id, record := range s.records {
		if record.MessageType != messageType {
			continue
		}
		ts, err := domain.ParseTimestamp(record.Timestamp)
		if err != nil {
			s.logger.Warnw("skipping record with unparsable timestamp", "slot", id, "timestamp", record.Timestamp, "error", err)
			continue
		}
		if !found || ts.After(newestTime) || (ts.Equal(newestTime) && id < newestID) {
			newestID, newest, newestTime, found = id, record, ts, true
		}
	}
	return newestID, newest, found
}

func (s *Store) snapshotLocked(keep func(domain.Record) bool) map[string]domain.Record {
	out := make(map[string]domain.Record, len(s.records))
	for id, record := range s.records {
		if keep(record) {
			out[id] = record
		}
	}
	return out
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.records, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create metadata temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set metadata permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close metadata temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}

	s.logger.Debugw("metadata saved", "path", s.path, "records", len(s.records))
	return nil
}
