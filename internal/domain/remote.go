package domain

import (
	"strconv"
	"strings"
)

// RemoteCalendar is a calendar as listed by the remote service. It is a
// read-only snapshot fetched on every run.
type RemoteCalendar struct {
	ID       string
	Summary  string
	Color    string
	Selected bool
	Hidden   bool
	Primary  bool
}

const untitledCalendar = "Untitled Calendar"

// Participates reports whether the calendar takes part in a sync run.
func (c RemoteCalendar) Participates() bool {
	return c.Selected && !c.Hidden
}

func (c RemoteCalendar) DisplayName() string {
	if strings.TrimSpace(c.Summary) == "" {
		return untitledCalendar
	}
	return c.Summary
}

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
)

// RemoteTime is a start or end value exactly as the remote sent it. Date is
// set for all-day values (yyyy-mm-dd), DateTime for timed ones (RFC 3339).
type RemoteTime struct {
	Date     string
	DateTime string
	TimeZone string
}

type RemoteReminders struct {
	UseDefault bool
	// Overrides are minutes before start.
	Overrides []int
}

// RemoteChangeRecord is one entry of an incremental change listing.
type RemoteChangeRecord struct {
	ID          string
	Status      EventStatus
	Summary     string
	Description string
	Location    string
	Start       *RemoteTime
	End         *RemoteTime
	Recurrence  []string
	Attendees   []string
	Reminders   *RemoteReminders
	// ConferenceURIs are the conferencing entry points in remote order.
	ConferenceURIs []string
	HTMLLink       string
}

func (r RemoteChangeRecord) Cancelled() bool {
	return r.Status == EventStatusCancelled
}

// NormalizeColor turns a remote "#rrggbb" color into lower-case "#rrggbb".
// Anything else yields "".
func NormalizeColor(s string) string {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return ""
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return ""
	}
	return "#" + strings.ToLower(hex)
}
