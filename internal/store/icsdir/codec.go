package icsdir

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"calsync/internal/domain"
)

const (
	productID = "-//calsync//Local Calendar//EN"

	propCalendarCreated = "X-CALSYNC-CREATED"
	propTimeZone        = ical.ComponentProperty("X-CALSYNC-TIMEZONE")

	icsUTCLayout  = "20060102T150405Z"
	icsDateLayout = "20060102"
)

// calendarFile is one .ics file: a local calendar and its events in
// creation order.
type calendarFile struct {
	Calendar domain.LocalCalendar
	Events   []domain.LocalEvent
}

func encodeCalendar(f calendarFile, w io.Writer) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(f.Calendar.Name)
	cal.SetXWRCalID(f.Calendar.ID.String())
	if f.Calendar.Color != "" {
		cal.SetColor(f.Calendar.Color)
	}
	cal.SetLastModified(f.Calendar.UpdatedAt)
	cal.CalendarProperties = append(cal.CalendarProperties, ical.CalendarProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken:      propCalendarCreated,
			ICalParameters: map[string][]string{},
			Value:          f.Calendar.CreatedAt.UTC().Format(icsUTCLayout),
		},
	})

	for _, ev := range f.Events {
		cal.AddVEvent(encodeEvent(ev))
	}
	return cal.SerializeTo(w)
}

func encodeEvent(ev domain.LocalEvent) *ical.VEvent {
	ve := ical.NewEvent(ev.ID.String())
	ve.SetDtStampTime(ev.UpdatedAt)
	ve.SetCreatedTime(ev.CreatedAt)
	ve.SetModifiedAt(ev.UpdatedAt)
	ve.SetSummary(ev.Title)
	if ev.Notes != "" {
		ve.SetDescription(ev.Notes)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if ev.URL != "" {
		ve.SetURL(ev.URL)
	}

	if ev.HasTiming() {
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.StartTime)
			// DTEND of a date range is exclusive.
			ve.SetAllDayEndAt(ev.EndTime.AddDate(0, 0, 1))
		} else {
			ve.SetStartAt(ev.StartTime)
			ve.SetEndAt(ev.EndTime)
		}
	}
	if ev.TimeZone != "" {
		ve.SetProperty(propTimeZone, ev.TimeZone)
	}

	for _, rule := range ev.Recurrence {
		ve.AddRrule(rule)
	}
	for _, a := range ev.Attendees {
		ve.AddAttendee(a)
	}
	for _, offset := range ev.Reminders {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(formatTrigger(offset))
		alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
	}
	return ve
}

func decodeCalendar(r io.Reader) (calendarFile, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return calendarFile{}, err
	}

	var f calendarFile
	for _, p := range cal.CalendarProperties {
		switch p.IANAToken {
		case string(ical.PropertyXWRCalName):
			f.Calendar.Name = p.Value
		case string(ical.PropertyXWRCalID):
			id, err := uuid.Parse(p.Value)
			if err != nil {
				return calendarFile{}, fmt.Errorf("calendar id %q: %w", p.Value, err)
			}
			f.Calendar.ID = id
		case string(ical.PropertyColor):
			f.Calendar.Color = p.Value
		case string(ical.PropertyLastModified):
			f.Calendar.UpdatedAt, _ = time.Parse(icsUTCLayout, p.Value)
		case propCalendarCreated:
			f.Calendar.CreatedAt, _ = time.Parse(icsUTCLayout, p.Value)
		}
	}
	if f.Calendar.ID == uuid.Nil {
		f.Calendar.ID = calendarID(f.Calendar.Name)
	}

	for _, ve := range cal.Events() {
		ev, err := decodeEvent(ve)
		if err != nil {
			return calendarFile{}, err
		}
		ev.CalendarID = f.Calendar.ID
		f.Events = append(f.Events, ev)
	}
	return f, nil
}

func decodeEvent(ve *ical.VEvent) (domain.LocalEvent, error) {
	var ev domain.LocalEvent

	id, err := uuid.Parse(ve.Id())
	if err != nil {
		return ev, fmt.Errorf("event uid %q: %w", ve.Id(), err)
	}
	ev.ID = id
	ev.Title = propValue(ve, ical.ComponentPropertySummary)
	ev.Notes = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)
	ev.URL = propValue(ve, ical.ComponentPropertyUrl)
	ev.TimeZone = propValue(ve, propTimeZone)
	ev.CreatedAt, _ = time.Parse(icsUTCLayout, propValue(ve, ical.ComponentPropertyCreated))
	ev.UpdatedAt, _ = time.Parse(icsUTCLayout, propValue(ve, ical.ComponentPropertyLastModified))

	if start := ve.GetProperty(ical.ComponentPropertyDtStart); start != nil {
		if isDateValue(start) {
			ev.AllDay = true
			ev.StartTime, err = time.ParseInLocation(icsDateLayout, start.Value, time.UTC)
			if err != nil {
				return ev, err
			}
			end, err := ve.GetAllDayEndAt()
			if err != nil {
				return ev, err
			}
			ev.EndTime = time.Date(end.Year(), end.Month(), end.Day()-1, 0, 0, 0, 0, time.UTC)
		} else {
			if ev.StartTime, err = ve.GetStartAt(); err != nil {
				return ev, err
			}
			if ev.EndTime, err = ve.GetEndAt(); err != nil {
				return ev, err
			}
			ev.StartTime = ev.StartTime.UTC()
			ev.EndTime = ev.EndTime.UTC()
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyRrule) {
		ev.Recurrence = append(ev.Recurrence, p.Value)
	}
	for _, a := range ve.Attendees() {
		ev.Attendees = append(ev.Attendees, a.Email())
	}
	for _, alarm := range ve.Alarms() {
		trigger := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if trigger == nil {
			continue
		}
		if offset, ok := parseTrigger(trigger.Value); ok {
			ev.Reminders = append(ev.Reminders, offset)
		}
	}
	return ev, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs := p.ICalParameters[string(ical.ParameterValue)]; len(vs) == 1 && strings.EqualFold(vs[0], string(ical.ValueDataTypeDate)) {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// formatTrigger renders a minute offset relative to start as an iCalendar
// duration, e.g. -10 => "-PT10M".
func formatTrigger(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return sign + "PT" + strconv.Itoa(minutes) + "M"
}

var triggerPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseTrigger reads a relative TRIGGER duration into minutes. Absolute
// triggers are not reminders of this store and yield false.
func parseTrigger(v string) (int, bool) {
	m := triggerPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, false
	}
	part := func(i int) int {
		n, _ := strconv.Atoi(m[i])
		return n
	}
	minutes := part(2)*7*24*60 + part(3)*24*60 + part(4)*60 + part(5) + part(6)/60
	if m[1] == "-" {
		minutes = -minutes
	}
	return minutes, true
}
