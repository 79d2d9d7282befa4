package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the 8-digit date format keying per-day artifacts.
const DateKeyLayout = "20060102"

// DateKey formats a date as YYYYMMDD.
func DateKey(t time.Time) string { return t.Format(DateKeyLayout) }

// ParseDateKey parses a YYYYMMDD key into a UTC midnight.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", s, err)
	}
	return t, nil
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay reports whether b is exactly the calendar day after a.
func NextDay(a, b time.Time) bool {
	return Day(a).AddDate(0, 0, 1).Equal(Day(b))
}

// Season is an inclusive month window applied to every year of an analysis.
// StartMonth may exceed EndMonth for windows that cross the new year.
type Season struct {
	StartYear  int
	EndYear    int
	StartMonth time.Month
	EndMonth   time.Month
}

// Contains reports whether t falls in the analysis years and the month window.
func (s Season) Contains(t time.Time) bool {
	y, m := t.Year(), t.Month()
	if y < s.StartYear || y > s.EndYear {
		return false
	}
	if s.StartMonth <= s.EndMonth {
		return m >= s.StartMonth && m <= s.EndMonth
	}
	return m >= s.StartMonth || m <= s.EndMonth
}

// Dates enumerates every day of the season window in increasing order.
func (s Season) Dates() []time.Time {
	var out []time.Time
	start := time.Date(s.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(s.EndYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}
