package domain

import "fmt"

// SchedulePayload is the bundle submitted to commit a reschedule.
// The secondary slot is absent for cases without a dependent facility.
type SchedulePayload struct {
	primary   AppointmentSlot
	secondary *AppointmentSlot
}

// NewSchedulePayload validates and builds a payload. Both slots must be fully
// resolved and the secondary date must fall strictly before the primary date.
func NewSchedulePayload(primary AppointmentSlot, secondary *AppointmentSlot) (SchedulePayload, error) {
	if !primary.HasTime() {
		return SchedulePayload{}, fmt.Errorf("%w: primary slot %s has no time", ErrInvalidPayload, primary)
	}
	if secondary != nil {
		if !secondary.HasTime() {
			return SchedulePayload{}, fmt.Errorf("%w: secondary slot %s has no time", ErrInvalidPayload, secondary)
		}
		if !secondary.Date().Before(primary.Date()) {
			return SchedulePayload{}, fmt.Errorf("%w: secondary date %s is not before primary date %s",
				ErrInvalidPayload, FormatDate(secondary.Date()), FormatDate(primary.Date()))
		}
		s := *secondary
		secondary = &s
	}
	return SchedulePayload{primary: primary, secondary: secondary}, nil
}

// Primary returns the consulate slot.
func (p SchedulePayload) Primary() AppointmentSlot { return p.primary }

// Secondary returns the dependent slot, if any.
func (p SchedulePayload) Secondary() (AppointmentSlot, bool) {
	if p.secondary == nil {
		return AppointmentSlot{}, false
	}
	return *p.secondary, true
}

func (p SchedulePayload) String() string {
	if p.secondary == nil {
		return p.primary.String()
	}
	return fmt.Sprintf("%s (asc %s)", p.primary, p.secondary)
}
