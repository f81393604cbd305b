// Package dateutil provides calendar-day helpers for the daily pipeline.
//
// The pipeline reasons in whole UTC calendar days; Day is the canonical
// key used for activity records, snapshots, and ledger entries.
package dateutil

import (
	"fmt"
	"time"
)

// DayFormat is the wire and storage format for a Day.
const DayFormat = "2006-01-02"

// Day identifies one UTC calendar day, formatted as YYYY-MM-DD.
type Day string

// ParseDay validates and normalizes a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(t.Format(DayFormat)), nil
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayFormat))
}

// String returns the YYYY-MM-DD form.
func (d Day) String() string { return string(d) }

// Time returns midnight UTC at the start of the day.
// A malformed Day yields the zero time.
func (d Day) Time() time.Time {
	t, err := time.ParseInLocation(DayFormat, string(d), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Prev returns the preceding calendar day.
func (d Day) Prev() Day { return DayOf(d.Time().AddDate(0, 0, -1)) }

// Next returns the following calendar day.
func (d Day) Next() Day { return DayOf(d.Time().AddDate(0, 0, 1)) }

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.End)
}

// Window returns a lookback window of n days ending at the close of d.
// Window(1) covers exactly d; Window(2) covers d and the day before.
func (d Day) Window(n int) Window {
	if n < 1 {
		n = 1
	}
	end := d.Time().AddDate(0, 0, 1)
	return Window{Start: end.AddDate(0, 0, -n), End: end}
}

// DayWindow returns the window covering exactly day d.
func (d Day) DayWindow() Window { return d.Window(1) }
