package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the portal.
const DateLayout = "2006-01-02"

// timeOfDayLayout is the time-of-day format used by the portal.
const timeOfDayLayout = "15:04"

// FacilityID identifies a portal facility (consulate or ASC).
type FacilityID string

// String returns the facility identifier.
func (f FacilityID) String() string { return string(f) }

// IsZero reports whether the facility is unset.
func (f FacilityID) IsZero() bool { return strings.TrimSpace(string(f)) == "" }

// TimeOfDay is a wall-clock time such as "09:30".
type TimeOfDay string

// ParseTimeOfDay validates and normalizes a portal time-of-day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Format(timeOfDayLayout)), nil
}

// String returns the time-of-day as HH:MM.
func (t TimeOfDay) String() string { return string(t) }

// IsZero reports whether the time-of-day is unresolved.
func (t TimeOfDay) IsZero() bool { return t == "" }

// ParseDate parses a portal calendar date (YYYY-MM-DD) at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date in portal format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AvailableDate is one entry of a dates listing.
type AvailableDate struct {
	Date        time.Time
	BusinessDay bool
}

// AppointmentSlot is one candidate reservation unit at a facility.
// The time is optional until resolved.
type AppointmentSlot struct {
	facilityID FacilityID
	date       time.Time
	time       TimeOfDay
}

// NewAppointmentSlot creates a slot. The date is normalized to its calendar day.
func NewAppointmentSlot(facilityID FacilityID, date time.Time, tod TimeOfDay) AppointmentSlot {
	return AppointmentSlot{
		facilityID: facilityID,
		date:       DateOf(date),
		time:       tod,
	}
}

func (s AppointmentSlot) FacilityID() FacilityID { return s.facilityID }
func (s AppointmentSlot) Date() time.Time        { return s.date }
func (s AppointmentSlot) Time() TimeOfDay        { return s.time }

// HasTime reports whether the time-of-day has been resolved.
func (s AppointmentSlot) HasTime() bool { return !s.time.IsZero() }

// WithTime returns a copy of the slot with the time-of-day resolved.
func (s AppointmentSlot) WithTime(tod TimeOfDay) AppointmentSlot {
	s.time = tod
	return s
}

// String renders "<date> <time>", or only the date while unresolved.
func (s AppointmentSlot) String() string {
	if !s.HasTime() {
		return FormatDate(s.date)
	}
	return FormatDate(s.date) + " " + s.time.String()
}
