package snapshot

import (
	"fmt"
	"time"
)

// Period names a reporting window relative to the snapshot's "today".
type Period string

// Known periods. Not every tool admits every period; each tool's schema
// lists its own subset.
const (
	PeriodToday     Period = "today"
	PeriodThisWeek  Period = "this_week"
	PeriodThisMonth Period = "this_month"
	PeriodLastMonth Period = "last_month"
	PeriodAllTime   Period = "all_time"
)

// dateLayout is the wire format for all calendar dates.
const dateLayout = "2006-01-02"

// Interval is an inclusive day range. An unbounded interval matches
// every date (all_time).
type Interval struct {
	Start   time.Time
	End     time.Time
	Bounded bool
}

// Contains reports whether the given YYYY-MM-DD date falls inside the
// interval. Unparseable dates never match a bounded interval.
func (iv Interval) Contains(date string) bool {
	if !iv.Bounded {
		return true
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return false
	}
	return !d.Before(iv.Start) && !d.After(iv.End)
}

// ParseDate strictly parses a YYYY-MM-DD calendar date. Both the shape
// and the calendar validity are checked (2024-02-30 is rejected).
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be a valid YYYY-MM-DD calendar date, got %q", s)
	}
	return d, nil
}

// Resolve maps a period to a concrete day interval relative to today.
// Weeks start on Monday (ISO 8601); months are calendar months.
func Resolve(p Period, today time.Time) (Interval, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PeriodToday:
		return Interval{Start: day, End: day, Bounded: true}, nil

	case PeriodThisWeek:
		weekday := int(day.Weekday())
		if weekday == 0 { // Sunday is the last day of an ISO week
			weekday = 7
		}
		start := day.AddDate(0, 0, -(weekday - 1))
		return Interval{Start: start, End: start.AddDate(0, 0, 6), Bounded: true}, nil

	case PeriodThisMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Interval{Start: start, End: start.AddDate(0, 1, -1), Bounded: true}, nil

	case PeriodLastMonth:
		firstOfThis := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		start := firstOfThis.AddDate(0, -1, 0)
		return Interval{Start: start, End: firstOfThis.AddDate(0, 0, -1), Bounded: true}, nil

	case PeriodAllTime:
		return Interval{}, nil

	default:
		return Interval{}, fmt.Errorf("unknown period %q", p)
	}
}

// DaysLeftInMonth returns the number of days remaining in today's
// calendar month, excluding today itself.
func DaysLeftInMonth(today time.Time) int {
	daysInMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1).Day()
	return daysInMonth - today.Day()
}
