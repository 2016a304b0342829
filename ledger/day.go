package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR - Local day boundaries for usage rows and reporting windows
// =============================================================================

const DayLayout = "2006-01-02"

// DefaultWindowDays is the length of every listing window.
const DefaultWindowDays = 30

// Calendar maps instants to ledger days in one location. Moderators work in
// the company's local time, so "today" is not the UTC day.
type Calendar struct {
	Loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Loc: loc}
}

// Day returns the start of the local day containing t.
func (c Calendar) Day(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

// Bounds returns the first and last instant of the day containing t.
func (c Calendar) Bounds(t time.Time) (start, end time.Time) {
	start = c.Day(t)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Window returns the inclusive range covering the last `days` local days
// up to and including the day of now.
func (c Calendar) Window(now time.Time, days int) (from, to time.Time) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	_, to = c.Bounds(now)
	from = c.Day(now).AddDate(0, 0, -(days - 1))
	return from, to
}

// ParseDay reads a YYYY-MM-DD day in the calendar's location.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, s, c.loc())
	if err != nil {
		return time.Time{}, &InputError{Field: "day", Reason: fmt.Sprintf("expected %s", DayLayout)}
	}
	return d, nil
}

func (c Calendar) loc() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}
