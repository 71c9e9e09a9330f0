package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calsync/internal/domain"
)

// DefaultLookupWindow bounds correlation lookups to one year either side of
// the current time.
const DefaultLookupWindow = 365 * 24 * time.Hour

// CalendarStore is the local calendar database the sync writes into.
type CalendarStore interface {
	// FindOrCreateCalendar returns the calendar with the given name, creating
	// it with color when absent. An existing calendar gets its color updated.
	FindOrCreateCalendar(ctx context.Context, name, color string) (domain.LocalCalendar, error)
	ListCalendars(ctx context.Context) ([]domain.LocalCalendar, error)

	// FindEventByCorrelation returns the first event of the calendar whose
	// notes carry the sentinel for remoteID and that is visible in window.
	// It returns ErrNotFound when there is none.
	FindEventByCorrelation(ctx context.Context, calendarID uuid.UUID, remoteID string, window domain.TimeWindow) (domain.LocalEvent, error)
	CreateEvent(ctx context.Context, ev domain.LocalEvent) (domain.LocalEvent, error)
	UpdateEvent(ctx context.Context, ev domain.LocalEvent) error
	DeleteEvent(ctx context.Context, ev domain.LocalEvent) error
	DeleteAllEvents(ctx context.Context, calendarID uuid.UUID) (int, error)

	Close() error
}

// CursorStore persists the opaque per-calendar sync cursors.
type CursorStore interface {
	// LoadCursor returns "" when no cursor is stored.
	LoadCursor(ctx context.Context, calendarID string) (string, error)
	SaveCursor(ctx context.Context, calendarID, cursor string) error
	ClearCursor(ctx context.Context, calendarID string) error
	MarkRun(ctx context.Context, at time.Time) error
}
