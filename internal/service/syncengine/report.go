package syncengine

import "time"

// Counts tallies what a run did to local events.
type Counts struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
}

func (c Counts) Changed() bool {
	return c.Created+c.Updated+c.Deleted > 0
}

func (c *Counts) add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Deleted += o.Deleted
	c.Unchanged += o.Unchanged
}

type CalendarReport struct {
	CalendarID string
	Name       string
	FullSync   bool
	Counts
	Err error
}

// Report describes one run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Calendars  []CalendarReport
	// Skipped holds the ids of calendars that are not selected or hidden.
	Skipped []string
}

func (r Report) Totals() Counts {
	var total Counts
	for _, c := range r.Calendars {
		total.add(c.Counts)
	}
	return total
}

func (r Report) Failed() []CalendarReport {
	var out []CalendarReport
	for _, c := range r.Calendars {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

type PurgedCalendar struct {
	Name    string
	Deleted int
}
