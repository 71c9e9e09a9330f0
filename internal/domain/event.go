package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type LocalCalendar struct {
	bun.BaseModel `bun:"table:local_calendars"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull,unique"`
	Color     string    `bun:"color"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (c *LocalCalendar) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// LocalEvent is an event owned by the local calendar store. All-day events
// hold midnight UTC dates and an inclusive EndTime. Events whose remote
// timing could not be resolved have zero StartTime and EndTime.
type LocalEvent struct {
	bun.BaseModel `bun:"table:local_events"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	CalendarID uuid.UUID `bun:"calendar_id,notnull,type:uuid"`
	Title      string    `bun:"title,notnull"`
	Notes      string    `bun:"notes"`
	Location   string    `bun:"location"`
	StartTime  time.Time `bun:"start_time,nullzero"`
	EndTime    time.Time `bun:"end_time,nullzero"`
	AllDay     bool      `bun:"all_day,notnull"`
	TimeZone   string    `bun:"time_zone"`
	Recurrence []string  `bun:"recurrence"`
	// Reminders are minute offsets relative to start; negative is before.
	Reminders []int     `bun:"reminders"`
	URL       string    `bun:"url"`
	Attendees []string  `bun:"attendees"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (e *LocalEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

func (e LocalEvent) HasTiming() bool {
	return !e.StartTime.IsZero() && !e.EndTime.IsZero()
}

// SameContent compares everything a sync run writes, ignoring identity and
// bookkeeping columns.
func (e LocalEvent) SameContent(o LocalEvent) bool {
	return e.Title == o.Title &&
		e.Notes == o.Notes &&
		e.Location == o.Location &&
		e.StartTime.Equal(o.StartTime) &&
		e.EndTime.Equal(o.EndTime) &&
		e.AllDay == o.AllDay &&
		e.TimeZone == o.TimeZone &&
		slices.Equal(e.Recurrence, o.Recurrence) &&
		slices.Equal(e.Reminders, o.Reminders) &&
		e.URL == o.URL &&
		slices.Equal(e.Attendees, o.Attendees)
}

// VisibleIn reports whether any occurrence of the event overlaps w. Events
// without timing are always visible.
func (e LocalEvent) VisibleIn(w TimeWindow) bool {
	if !e.HasTiming() {
		return true
	}
	start, end := e.StartTime, e.EndTime
	if e.AllDay {
		end = end.AddDate(0, 0, 1)
	}
	if w.overlaps(start, end) {
		return true
	}

	duration := end.Sub(start)
	for _, line := range e.Recurrence {
		rule, ok := ParseRecurrenceRule(line)
		if !ok {
			continue
		}
		occs, err := rule.Between(start, w.Start.Add(-duration), w.End)
		if err == nil && len(occs) > 0 {
			return true
		}
	}
	return false
}

type Reminder struct {
	// OffsetMinutes is relative to start; negative is before.
	OffsetMinutes int
}

// LocalEventInput is the translated form of one remote record, ready to be
// written into the local store.
type LocalEventInput struct {
	RemoteID   string
	Title      string
	Notes      string
	Location   string
	Start      EventTime
	End        EventTime
	Recurrence []RecurrenceRule
	Reminders  []Reminder
	URL        string
	Attendees  []string
}

func (in LocalEventInput) HasTiming() bool {
	return in.Start != nil && in.End != nil
}

func (in LocalEventInput) AllDay() bool {
	_, ok := in.Start.(AllDayDate)
	return ok
}

// ApplyTo writes the input over e. Timing is only replaced when both start
// and end resolved; otherwise the event keeps what it had.
func (in LocalEventInput) ApplyTo(e *LocalEvent) {
	e.Title = in.Title
	e.Notes = in.Notes
	e.Location = in.Location
	e.URL = in.URL

	if in.HasTiming() {
		e.StartTime = eventTimeValue(in.Start)
		e.EndTime = eventTimeValue(in.End)
		e.AllDay = in.AllDay()
		e.TimeZone = ""
		if i, ok := in.Start.(Instant); ok {
			e.TimeZone = i.TimeZone
		}
	}

	e.Recurrence = nil
	for _, r := range in.Recurrence {
		e.Recurrence = append(e.Recurrence, r.String())
	}
	e.Reminders = nil
	for _, r := range in.Reminders {
		e.Reminders = append(e.Reminders, r.OffsetMinutes)
	}
	e.Attendees = nil
	if len(in.Attendees) > 0 {
		e.Attendees = append([]string(nil), in.Attendees...)
	}
}

func eventTimeValue(t EventTime) time.Time {
	switch v := t.(type) {
	case Instant:
		// Local stores keep whole seconds.
		return v.At.UTC().Truncate(time.Second)
	case AllDayDate:
		return v.Date
	default:
		return time.Time{}
	}
}
