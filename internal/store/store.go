// Package store persists run records and event history as JSON files
// in a data directory. Writes are atomic (temp file plus rename) and
// guarded by a file lock for cross-process safety.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/run"
)

// RunRecord is the serializable snapshot of a completed (or in-flight)
// run: the run itself, the detected strategy, every command that was
// considered, and the execution log of everything that ran.
type RunRecord struct {
	Run      run.Run             `json:"run"`
	Strategy string              `json:"strategy,omitempty"`
	Commands []run.ParsedCommand `json:"commands"`
	Logs     []run.CommandLog    `json:"logs"`
}

// PersistedEvent is the on-disk representation of a bus event. Detail
// holds the concrete event's exported fields.
type PersistedEvent struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// Store reads and writes run records under a single data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.NewValidationError("data directory is empty").WithField("dir")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.dir, "run-"+runID+".json")
}

func (s *Store) eventsPath(runID string) string {
	return filepath.Join(s.dir, "events-"+runID+".json")
}

// SaveRecord writes a run record to run-{id}.json. The write is atomic:
// data goes to a temporary file first, then renames into place. A file
// lock is held for the duration.
func (s *Store) SaveRecord(rec *RunRecord) error {
	if rec == nil || rec.Run.ID == "" {
		return errors.NewValidationError("record has no run ID").WithField("record")
	}

	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	return atomicWrite(s.runPath(rec.Run.ID), data)
}

// LoadRecord reads the run record for the given run ID.
func (s *Store) LoadRecord(runID string) (*RunRecord, error) {
	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(s.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("run", runID)
		}
		return nil, fmt.Errorf("read run record: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal run record: %w", err)
	}
	return &rec, nil
}

// SaveEvents writes the event history for a run to events-{id}.json.
func (s *Store) SaveEvents(runID string, events []event.Event) error {
	persisted := make([]PersistedEvent, 0, len(events))
	for _, e := range events {
		detail, err := json.Marshal(e)
		if err != nil {
			detail = nil
		}
		persisted = append(persisted, PersistedEvent{
			Type:      e.EventType(),
			RunID:     e.RunID(),
			Timestamp: e.Timestamp(),
			Detail:    detail,
		})
	}

	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return atomicWrite(s.eventsPath(runID), data)
}

// LoadEvents reads the persisted event history for a run.
func (s *Store) LoadEvents(runID string) ([]PersistedEvent, error) {
	data, err := os.ReadFile(s.eventsPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("events", runID)
		}
		return nil, fmt.Errorf("read events: %w", err)
	}

	var persisted []PersistedEvent
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return persisted, nil
}

// ListRuns returns the IDs of all persisted runs, sorted.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "run-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "run-"), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
