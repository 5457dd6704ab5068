package domain

import "time"

// DefaultLeadTimeMonths is the minimum distance from today for a schedulable date.
const DefaultLeadTimeMonths = 1

// TargetSchedule is the currently held appointment date. Only strictly
// earlier dates are candidates.
type TargetSchedule struct {
	date time.Time
}

// NewTargetSchedule creates a target from a calendar date.
func NewTargetSchedule(date time.Time) TargetSchedule {
	return TargetSchedule{date: DateOf(date)}
}

// ParseTargetSchedule parses a YYYY-MM-DD target date.
func ParseTargetSchedule(s string) (TargetSchedule, error) {
	d, err := ParseDate(s)
	if err != nil {
		return TargetSchedule{}, err
	}
	return NewTargetSchedule(d), nil
}

// Date returns the held appointment date.
func (t TargetSchedule) Date() time.Time { return t.date }

// IsZero reports whether no target has been set.
func (t TargetSchedule) IsZero() bool { return t.date.IsZero() }

// IsEarlier reports whether d is strictly before the held appointment.
func (t TargetSchedule) IsEarlier(d time.Time) bool {
	return DateOf(d).Before(t.date)
}

func (t TargetSchedule) String() string { return FormatDate(t.date) }

// SearchWindow bounds candidate primary dates: at or after the lead-time
// horizon and strictly before the target.
type SearchWindow struct {
	target   TargetSchedule
	earliest time.Time
}

// NewSearchWindow computes the window for the given reference time.
func NewSearchWindow(target TargetSchedule, now time.Time, leadMonths int) SearchWindow {
	if leadMonths < 0 {
		leadMonths = 0
	}
	return SearchWindow{
		target:   target,
		earliest: addMonths(DateOf(now), leadMonths),
	}
}

// addMonths moves d forward by months calendar months, clamping the day to
// the end of a shorter month (Jan 31 + 1 month is Feb 29 in a leap year).
func addMonths(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(day, last), 0, 0, 0, 0, time.UTC)
}

// Earliest returns the first schedulable date.
func (w SearchWindow) Earliest() time.Time { return w.earliest }

// Target returns the upper bound.
func (w SearchWindow) Target() TargetSchedule { return w.target }

// Contains reports whether d may be considered.
func (w SearchWindow) Contains(d time.Time) bool {
	day := DateOf(d)
	return !day.Before(w.earliest) && w.target.IsEarlier(day)
}

// Filter keeps the dates inside the window, preserving order.
func (w SearchWindow) Filter(dates []AvailableDate) []AvailableDate {
	out := make([]AvailableDate, 0, len(dates))
	for _, d := range dates {
		if w.Contains(d.Date) {
			out = append(out, d)
		}
	}
	return out
}
