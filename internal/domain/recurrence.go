package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

type RecurrenceFrequency string

const (
	RecurrenceFrequencyDaily   RecurrenceFrequency = "daily"
	RecurrenceFrequencyWeekly  RecurrenceFrequency = "weekly"
	RecurrenceFrequencyMonthly RecurrenceFrequency = "monthly"
	RecurrenceFrequencyYearly  RecurrenceFrequency = "yearly"
)

// untilLayout is the compact UTC form used by UNTIL.
const (
	untilLayout     = "20060102T150405Z"
	untilDateLayout = "20060102"
)

// WeekdayRule is one BYDAY entry. Ordinal 0 means every such weekday in the
// period; 2 is "2nd", -1 is "last".
type WeekdayRule struct {
	Weekday time.Weekday
	Ordinal int
}

// RecurrenceEnd terminates a rule by occurrence count or by an instant.
// Exactly one of Count and Until is set.
type RecurrenceEnd struct {
	Count int
	Until time.Time
}

type RecurrenceRule struct {
	Frequency  RecurrenceFrequency
	Interval   int
	ByWeekday  []WeekdayRule
	ByMonthDay []int
	ByMonth    []int
	End        *RecurrenceEnd
}

var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// ParseRecurrenceLines parses every recurrence line of a remote event and keeps
// the ones that yield a rule. Lines that are not rules (EXDATE, RDATE, ...) or
// that do not parse are dropped.
func ParseRecurrenceLines(lines []string) []RecurrenceRule {
	out := make([]RecurrenceRule, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if name, rest, ok := strings.Cut(line, ":"); ok {
			if !strings.EqualFold(name, "RRULE") {
				continue
			}
			line = rest
		}
		if r, ok := ParseRecurrenceRule(line); ok {
			out = append(out, r)
		}
	}
	return out
}

// ParseRecurrenceRule parses one KEY=VALUE;KEY=VALUE rule body. It reports
// false when FREQ is missing or not one of DAILY, WEEKLY, MONTHLY, YEARLY.
// When both COUNT and UNTIL are present the one that appears last wins.
func ParseRecurrenceRule(s string) (RecurrenceRule, bool) {
	r := RecurrenceRule{Interval: 1}

	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			r.Frequency = parseFrequency(value)
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				r.Interval = n
			}
		case "BYDAY":
			r.ByWeekday = parseWeekdays(value)
		case "BYMONTHDAY":
			r.ByMonthDay = parseIntList(value)
		case "BYMONTH":
			r.ByMonth = parseIntList(value)
		case "COUNT":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				r.End = &RecurrenceEnd{Count: n}
			}
		case "UNTIL":
			if t, ok := parseUntil(value); ok {
				r.End = &RecurrenceEnd{Until: t}
			}
		}
	}

	if r.Frequency == "" {
		return RecurrenceRule{}, false
	}
	return r, true
}

func parseFrequency(v string) RecurrenceFrequency {
	switch v {
	case "DAILY":
		return RecurrenceFrequencyDaily
	case "WEEKLY":
		return RecurrenceFrequencyWeekly
	case "MONTHLY":
		return RecurrenceFrequencyMonthly
	case "YEARLY":
		return RecurrenceFrequencyYearly
	default:
		return ""
	}
}

func parseWeekdays(v string) []WeekdayRule {
	var out []WeekdayRule
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if len(entry) < 2 {
			continue
		}
		code := entry[len(entry)-2:]
		wd, ok := weekdayCodes[code]
		if !ok {
			continue
		}
		ordinal := 0
		if prefix := entry[:len(entry)-2]; prefix != "" {
			n, err := strconv.Atoi(prefix)
			if err != nil {
				continue
			}
			ordinal = n
		}
		out = append(out, WeekdayRule{Weekday: wd, Ordinal: ordinal})
	}
	return out
}

func parseIntList(v string) []int {
	var out []int
	for _, entry := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(entry))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseUntil(v string) (time.Time, bool) {
	if t, err := time.Parse(untilLayout, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(untilDateLayout, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Options converts the rule into rrule-go options anchored at dtstart.
func (r RecurrenceRule) Options(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:       toRRuleFrequency(r.Frequency),
		Dtstart:    dtstart,
		Interval:   r.Interval,
		Bymonthday: r.ByMonthDay,
		Bymonth:    r.ByMonth,
	}
	if opt.Interval < 1 {
		opt.Interval = 1
	}
	for _, wd := range r.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(wd))
	}
	if r.End != nil {
		if r.End.Count > 0 {
			opt.Count = r.End.Count
		} else {
			opt.Until = r.End.Until
		}
	}
	return opt
}

// String renders the rule body in canonical form, without DTSTART.
func (r RecurrenceRule) String() string {
	opt := r.Options(time.Time{})
	return opt.RRuleString()
}

// Between returns the occurrences of the rule anchored at dtstart that fall
// inside [after, before].
func (r RecurrenceRule) Between(dtstart, after, before time.Time) ([]time.Time, error) {
	rr, err := rrule.NewRRule(r.Options(dtstart))
	if err != nil {
		return nil, err
	}
	return rr.Between(after, before, true), nil
}

func toRRuleFrequency(f RecurrenceFrequency) rrule.Frequency {
	switch f {
	case RecurrenceFrequencyDaily:
		return rrule.DAILY
	case RecurrenceFrequencyWeekly:
		return rrule.WEEKLY
	case RecurrenceFrequencyMonthly:
		return rrule.MONTHLY
	default:
		return rrule.YEARLY
	}
}

func toRRuleWeekday(wd WeekdayRule) rrule.Weekday {
	days := []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
	day := days[wd.Weekday]
	if wd.Ordinal == 0 {
		return day
	}
	return day.Nth(wd.Ordinal)
}
