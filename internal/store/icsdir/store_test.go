package icsdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"calsync/internal/domain"
	"calsync/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	return s
}

func translated(calendarID uuid.UUID, rec domain.RemoteChangeRecord) domain.LocalEvent {
	ev := domain.LocalEvent{CalendarID: calendarID}
	domain.TranslateEvent(rec).ApplyTo(&ev)
	return ev
}

func TestStore_RoundTripsEveryField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cal, err := s.FindOrCreateCalendar(ctx, "GCal: Work", "#9fc6e7")
	if err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}

	records := []domain.RemoteChangeRecord{
		{
			ID:          "timed_1",
			Summary:     "Planning; weekly, with commas",
			Description: "line one\nline two\\ end",
			Location:    "Room 1",
			Start:       &domain.RemoteTime{DateTime: "2026-06-01T09:00:00+02:00", TimeZone: "Europe/Berlin"},
			End:         &domain.RemoteTime{DateTime: "2026-06-01T10:00:00+02:00", TimeZone: "Europe/Berlin"},
			Recurrence:  []string{"RRULE:FREQ=WEEKLY;BYDAY=MO,-1FR;COUNT=10"},
			Reminders:   &domain.RemoteReminders{Overrides: []int{30, 5}},
			Attendees:   []string{"a@example.com", "b@example.com"},
			HTMLLink:    "https://calendar.example/event?eid=1",
		},
		{
			ID:        "allday_1",
			Start:     &domain.RemoteTime{Date: "2024-01-01"},
			End:       &domain.RemoteTime{Date: "2024-01-03"},
			Reminders: &domain.RemoteReminders{UseDefault: true},
		},
		{ID: "untimed_1", Summary: "no timing"},
	}

	var created []domain.LocalEvent
	for _, rec := range records {
		ev, err := s.CreateEvent(ctx, translated(cal.ID, rec))
		if err != nil {
			t.Fatalf("CreateEvent(%s) error: %v", rec.ID, err)
		}
		created = append(created, ev)
	}

	f, err := s.load(cal.ID)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if f.Calendar.Name != "GCal: Work" || f.Calendar.Color != "#9fc6e7" || f.Calendar.ID != cal.ID {
		t.Fatalf("calendar = %+v", f.Calendar)
	}
	if len(f.Events) != len(created) {
		t.Fatalf("len(events) = %d, want %d", len(f.Events), len(created))
	}
	for i, got := range f.Events {
		want := created[i]
		if got.ID != want.ID {
			t.Fatalf("event %d id = %s, want %s", i, got.ID, want.ID)
		}
		if !got.SameContent(want) {
			t.Fatalf("event %d round trip:\n got  %+v\n want %+v", i, got, want)
		}
	}

	b, err := os.ReadFile(filepath.Join(s.dir, cal.ID.String()+".ics"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	text := string(b)
	for _, want := range []string{"DTSTART;VALUE=DATE:20240101", "DTEND;VALUE=DATE:20240103", "TRIGGER:-PT10M", "RRULE:FREQ=WEEKLY"} {
		if !strings.Contains(text, want) {
			t.Fatalf("ics output missing %q:\n%s", want, text)
		}
	}
}

func TestStore_FindOrCreateCalendarIsStable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.FindOrCreateCalendar(ctx, "GCal: Home", "")
	if err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}
	b, err := s.FindOrCreateCalendar(ctx, "GCal: Home", "#123456")
	if err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("id = %s, want %s", b.ID, a.ID)
	}
	if b.Color != "#123456" {
		t.Fatalf("color = %q, want %q", b.Color, "#123456")
	}
	if _, err := s.FindOrCreateCalendar(ctx, "GCal: Work", ""); err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}

	cals, err := s.ListCalendars(ctx)
	if err != nil {
		t.Fatalf("ListCalendars error: %v", err)
	}
	if len(cals) != 2 || cals[0].Name != "GCal: Home" || cals[1].Name != "GCal: Work" {
		t.Fatalf("calendars = %+v", cals)
	}
}

func TestStore_UpdateDeleteAndCorrelation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	window := domain.WindowAround(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), store.DefaultLookupWindow)

	cal, err := s.FindOrCreateCalendar(ctx, "GCal: Work", "")
	if err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}
	rec := domain.RemoteChangeRecord{
		ID:    "abc",
		Start: &domain.RemoteTime{DateTime: "2026-06-02T09:00:00Z"},
		End:   &domain.RemoteTime{DateTime: "2026-06-02T10:00:00Z"},
	}
	if _, err := s.CreateEvent(ctx, translated(cal.ID, rec)); err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}

	found, err := s.FindEventByCorrelation(ctx, cal.ID, "abc", window)
	if err != nil {
		t.Fatalf("FindEventByCorrelation error: %v", err)
	}
	found.Title = "moved"
	if err := s.UpdateEvent(ctx, found); err != nil {
		t.Fatalf("UpdateEvent error: %v", err)
	}
	again, err := s.FindEventByCorrelation(ctx, cal.ID, "abc", window)
	if err != nil {
		t.Fatalf("FindEventByCorrelation error: %v", err)
	}
	if again.Title != "moved" || again.ID != found.ID {
		t.Fatalf("event = %+v", again)
	}

	if err := s.DeleteEvent(ctx, again); err != nil {
		t.Fatalf("DeleteEvent error: %v", err)
	}
	if _, err := s.FindEventByCorrelation(ctx, cal.ID, "abc", window); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}
	if err := s.UpdateEvent(ctx, again); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update of deleted event err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestStore_DeleteAllEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cal, err := s.FindOrCreateCalendar(ctx, "GCal: Work", "")
	if err != nil {
		t.Fatalf("FindOrCreateCalendar error: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.CreateEvent(ctx, translated(cal.ID, domain.RemoteChangeRecord{ID: id})); err != nil {
			t.Fatalf("CreateEvent error: %v", err)
		}
	}

	n, err := s.DeleteAllEvents(ctx, cal.ID)
	if err != nil {
		t.Fatalf("DeleteAllEvents error: %v", err)
	}
	if n != 3 {
		t.Fatalf("deleted = %d, want 3", n)
	}
	if n, err := s.DeleteAllEvents(ctx, uuid.New()); err != nil || n != 0 {
		t.Fatalf("unknown calendar = (%d, %v), want (0, nil)", n, err)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := map[string]struct {
		want int
		ok   bool
	}{
		"-PT10M":           {want: -10, ok: true},
		"PT5M":             {want: 5, ok: true},
		"-P1D":             {want: -1440, ok: true},
		"-PT1H30M":         {want: -90, ok: true},
		"-P1W":             {want: -10080, ok: true},
		"20260101T090000Z": {ok: false},
		"":                 {ok: false},
	}
	for in, tt := range tests {
		got, ok := parseTrigger(in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("parseTrigger(%q) = (%d, %v), want (%d, %v)", in, got, ok, tt.want, tt.ok)
		}
	}
	if got := formatTrigger(-10); got != "-PT10M" {
		t.Fatalf("formatTrigger(-10) = %q, want %q", got, "-PT10M")
	}
}
