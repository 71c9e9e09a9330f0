package domain

import (
	"strings"
	"time"
)

const (
	UntitledEvent = "(No title)"

	// DefaultReminderMinutes stands in for the remote per-user default
	// reminder, which is not part of the event payload.
	DefaultReminderMinutes = 10
)

const remoteDateLayout = "2006-01-02"

// TranslateEvent maps a remote record onto the local event shape. It never
// fails: values that cannot be resolved are left empty.
func TranslateEvent(rec RemoteChangeRecord) LocalEventInput {
	in := LocalEventInput{
		RemoteID:   rec.ID,
		Title:      rec.Summary,
		Notes:      EmbedCorrelation(rec.Description, rec.ID),
		Location:   rec.Location,
		Recurrence: ParseRecurrenceLines(rec.Recurrence),
		Reminders:  translateReminders(rec.Reminders),
		URL:        translateURL(rec),
	}
	if in.Title == "" {
		in.Title = UntitledEvent
	}

	in.Start = resolveRemoteTime(rec.Start)
	in.End = resolveRemoteTime(rec.End)
	if end, ok := in.End.(AllDayDate); ok && in.AllDay() {
		// Remote all-day ranges are end-exclusive, local ones end-inclusive.
		in.End = AllDayDate{Date: end.Date.AddDate(0, 0, -1)}
	}

	for _, a := range rec.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			in.Attendees = append(in.Attendees, a)
		}
	}
	return in
}

func resolveRemoteTime(t *RemoteTime) EventTime {
	if t == nil {
		return nil
	}
	if t.DateTime != "" {
		at, err := time.Parse(time.RFC3339Nano, t.DateTime)
		if err != nil {
			at, err = time.Parse(time.RFC3339, t.DateTime)
		}
		if err != nil {
			return nil
		}
		return Instant{At: at, TimeZone: t.TimeZone}
	}
	if t.Date != "" {
		d, err := time.ParseInLocation(remoteDateLayout, t.Date, time.UTC)
		if err != nil {
			return nil
		}
		return AllDayDate{Date: d}
	}
	return nil
}

func translateReminders(r *RemoteReminders) []Reminder {
	if r == nil {
		return nil
	}
	if len(r.Overrides) > 0 {
		out := make([]Reminder, 0, len(r.Overrides))
		for _, minutes := range r.Overrides {
			out = append(out, Reminder{OffsetMinutes: -minutes})
		}
		return out
	}
	if r.UseDefault {
		return []Reminder{{OffsetMinutes: -DefaultReminderMinutes}}
	}
	return nil
}

func translateURL(rec RemoteChangeRecord) string {
	if len(rec.ConferenceURIs) > 0 && rec.ConferenceURIs[0] != "" {
		return rec.ConferenceURIs[0]
	}
	return rec.HTMLLink
}
