// Package icsdir keeps local calendars as a directory of iCalendar files,
// one file per calendar, readable by any calendar application.
package icsdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"calsync/internal/domain"
	"calsync/internal/fileutil"
	"calsync/internal/store"
)

// Store is a store.CalendarStore over a directory of .ics files. Every
// mutation rewrites the affected file atomically.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

var _ store.CalendarStore = (*Store)(nil)

// Open prepares dir for use, creating it when missing.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, store.ErrNoStorage
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, classify(err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Close() error { return nil }

// calendarID derives a stable id from the calendar name, so a name always
// maps to the same file.
func calendarID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("calsync:calendar:"+name))
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".ics")
}

func (s *Store) load(id uuid.UUID) (calendarFile, error) {
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return calendarFile{}, store.ErrNotFound
	}
	if err != nil {
		return calendarFile{}, classify(err)
	}
	f, err := decodeCalendar(bytes.NewReader(b))
	if err != nil {
		return calendarFile{}, fmt.Errorf("read %s: %w", s.path(id), err)
	}
	return f, nil
}

func (s *Store) save(f calendarFile) error {
	var buf bytes.Buffer
	if err := encodeCalendar(f, &buf); err != nil {
		return err
	}
	return classify(fileutil.WriteFileAtomic(s.path(f.Calendar.ID), buf.Bytes(), 0o600))
}

func (s *Store) FindOrCreateCalendar(ctx context.Context, name, color string) (domain.LocalCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := calendarID(name)
	f, err := s.load(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		now := s.now().UTC().Truncate(time.Second)
		f = calendarFile{Calendar: domain.LocalCalendar{
			ID:        id,
			Name:      name,
			Color:     color,
			CreatedAt: now,
			UpdatedAt: now,
		}}
	case err != nil:
		return domain.LocalCalendar{}, err
	case color == "" || f.Calendar.Color == color:
		return f.Calendar, nil
	default:
		f.Calendar.Color = color
		f.Calendar.UpdatedAt = s.now().UTC().Truncate(time.Second)
	}

	if err := s.save(f); err != nil {
		return domain.LocalCalendar{}, err
	}
	return f.Calendar, nil
}

func (s *Store) ListCalendars(ctx context.Context) ([]domain.LocalCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.ics"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.LocalCalendar, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, classify(err)
		}
		f, err := decodeCalendar(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, f.Calendar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindEventByCorrelation(ctx context.Context, calendarID uuid.UUID, remoteID string, window domain.TimeWindow) (domain.LocalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(calendarID)
	if err != nil {
		return domain.LocalEvent{}, err
	}
	for _, ev := range f.Events {
		if domain.HasCorrelation(ev.Notes, remoteID) && ev.VisibleIn(window) {
			return ev, nil
		}
	}
	return domain.LocalEvent{}, store.ErrNotFound
}

func (s *Store) CreateEvent(ctx context.Context, ev domain.LocalEvent) (domain.LocalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(ev.CalendarID)
	if err != nil {
		return domain.LocalEvent{}, err
	}
	if ev.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.LocalEvent{}, err
		}
		ev.ID = id
	}
	now := s.now().UTC().Truncate(time.Second)
	ev.CreatedAt = now
	ev.UpdatedAt = now

	f.Events = append(f.Events, ev)
	if err := s.save(f); err != nil {
		return domain.LocalEvent{}, err
	}
	return ev, nil
}

func (s *Store) UpdateEvent(ctx context.Context, ev domain.LocalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(ev.CalendarID)
	if err != nil {
		return err
	}
	i := indexOf(f.Events, ev.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	ev.CreatedAt = f.Events[i].CreatedAt
	ev.UpdatedAt = s.now().UTC().Truncate(time.Second)
	f.Events[i] = ev
	return s.save(f)
}

func (s *Store) DeleteEvent(ctx context.Context, ev domain.LocalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(ev.CalendarID)
	if err != nil {
		return err
	}
	i := indexOf(f.Events, ev.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	f.Events = append(f.Events[:i], f.Events[i+1:]...)
	return s.save(f)
}

func (s *Store) DeleteAllEvents(ctx context.Context, calendarID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(calendarID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := len(f.Events)
	if n == 0 {
		return 0, nil
	}
	f.Events = nil
	if err := s.save(f); err != nil {
		return 0, err
	}
	return n, nil
}

func indexOf(events []domain.LocalEvent, id uuid.UUID) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", store.ErrAccessDenied, err)
	case errors.Is(err, syscall.EROFS), errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %v", store.ErrNoStorage, err)
	default:
		return err
	}
}
