// Package application holds the orchestration core: session checks, slot
// search, commit and the bounded-retry polling loop.
package application

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// SessionProvider is the browser session collaborator. It owns the
// authenticated portal session and performs every portal fetch.
type SessionProvider interface {
	// Login runs the portal sign-in flow and stores the session cookies.
	Login(ctx context.Context) error
	// Get returns the raw body of url regardless of the HTTP status.
	Get(ctx context.Context, url string) ([]byte, error)
	// GetJSON decodes the JSON body of url into v.
	GetJSON(ctx context.Context, url string, v any) error
	// SubmitForm posts fields to the form served at url and returns the response body.
	SubmitForm(ctx context.Context, url string, fields url.Values) ([]byte, error)
	// Cookies returns the current session cookies.
	Cookies() []*http.Cookie
}

// SlotConstraint pins the already-chosen primary slot when querying a
// dependent facility.
type SlotConstraint struct {
	Facility domain.FacilityID
	Date     time.Time
	Time     domain.TimeOfDay
}

// Routes builds portal URLs for one case.
type Routes interface {
	ProbeURL() string
	DatesURL(facility domain.FacilityID, constraint *SlotConstraint) string
	TimesURL(facility domain.FacilityID, date time.Time, constraint *SlotConstraint) string
	AppointmentURL() string
}

// Notifier dispatches advisory messages. Implementations never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// BookingExporter publishes a committed booking elsewhere (e.g. a calendar).
type BookingExporter interface {
	ExportBooking(ctx context.Context, payload domain.SchedulePayload) error
}

// Sleeper suspends the loop between cycles.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a timer and wakes early when ctx is cancelled.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
