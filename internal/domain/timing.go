package domain

import "time"

// EventTime is either an Instant or an AllDayDate.
type EventTime interface {
	isEventTime()
}

// Instant is a timed start or end.
type Instant struct {
	At       time.Time
	TimeZone string
}

// AllDayDate is a calendar date with no time of day, held as midnight UTC.
type AllDayDate struct {
	Date time.Time
}

func (Instant) isEventTime()    {}
func (AllDayDate) isEventTime() {}

func NewAllDayDate(year int, month time.Month, day int) AllDayDate {
	return AllDayDate{Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// WindowAround returns [now-span, now+span).
func WindowAround(now time.Time, span time.Duration) TimeWindow {
	return TimeWindow{Start: now.Add(-span), End: now.Add(span)}
}

func (w TimeWindow) overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}
