// Package state persists sync cursors and the time of the last run in a
// small JSON file.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"sync"
	"time"

	"calsync/internal/fileutil"
	"calsync/internal/store"
)

// Snapshot is the on-disk document.
type Snapshot struct {
	CalendarSyncTokens map[string]string `json:"calendarSyncTokens"`
	LastSyncDate       *time.Time        `json:"lastSyncDate,omitempty"`
}

// FileStore is a store.CursorStore that rewrites the whole file on every
// change. A missing file reads as empty state.
type FileStore struct {
	path string

	mu sync.Mutex
}

var _ store.CursorStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Snapshot returns a copy of the persisted state.
func (s *FileStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) LoadCursor(ctx context.Context, calendarID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return "", err
	}
	return snap.CalendarSyncTokens[calendarID], nil
}

func (s *FileStore) SaveCursor(ctx context.Context, calendarID, cursor string) error {
	return s.update(func(snap *Snapshot) {
		snap.CalendarSyncTokens[calendarID] = cursor
	})
}

func (s *FileStore) ClearCursor(ctx context.Context, calendarID string) error {
	return s.update(func(snap *Snapshot) {
		delete(snap.CalendarSyncTokens, calendarID)
	})
}

func (s *FileStore) MarkRun(ctx context.Context, at time.Time) error {
	return s.update(func(snap *Snapshot) {
		t := at.UTC()
		snap.LastSyncDate = &t
	})
}

// Reset forgets every cursor and the last run time, so the next run
// performs a full sync of every calendar.
func (s *FileStore) Reset(ctx context.Context) error {
	return s.update(func(snap *Snapshot) {
		snap.CalendarSyncTokens = map[string]string{}
		snap.LastSyncDate = nil
	})
}

func (s *FileStore) update(fn func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return err
	}
	fn(&snap)
	return s.write(snap)
}

func (s *FileStore) read() (Snapshot, error) {
	snap := Snapshot{CalendarSyncTokens: map[string]string{}}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return Snapshot{}, classify(err)
	}

	var onDisk Snapshot
	if err := json.Unmarshal(b, &onDisk); err != nil {
		return Snapshot{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	maps.Copy(snap.CalendarSyncTokens, onDisk.CalendarSyncTokens)
	snap.LastSyncDate = onDisk.LastSyncDate
	return snap, nil
}

func (s *FileStore) write(snap Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return classify(fileutil.WriteFileAtomic(s.path, b, 0o600))
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", store.ErrAccessDenied, err)
	}
	return err
}
