package stage

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar format used for stage dates.
const DateLayout = "2006-01-02"

// sowingLayouts are the accepted sowing-date formats, tried in order.
var sowingLayouts = []string{DateLayout, "02/01/2006"}

// Interval is one growth stage: a name and an inclusive date range.
type Interval struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Days returns the inclusive length of the interval in days.
func (iv Interval) Days() int {
	return daysBetween(iv.Start, iv.End) + 1
}

// Contains reports whether day falls within the interval, bounds included.
func (iv Interval) Contains(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(iv.Start) && !day.After(iv.End)
}

// SortByStart sorts intervals ascending by start date. The sort is stable so
// intervals sharing a start keep their textual order.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})
}

// DateOf truncates t to its calendar date at midnight UTC, keeping t's own
// year, month and day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// ParseSowingDate parses a sowing date in YYYY-MM-DD or DD/MM/YYYY form.
// It reports false for empty or unrecognized input.
func ParseSowingDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range sowingLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	return time.Time{}, false
}

// daysBetween returns the whole days from a to b; both are calendar dates.
func daysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
