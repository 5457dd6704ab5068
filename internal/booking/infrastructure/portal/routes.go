// Package portal implements the browser session provider for the
// appointment portal over net/http: sign-in, JSON listings and form posts.
package portal

import (
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// Routes builds portal URLs for one schedule. It implements application.Routes.
type Routes struct {
	root          string
	scheduleID    string
	probeFacility domain.FacilityID
}

var _ application.Routes = (*Routes)(nil)

// NewRoutes creates routes under {baseURL}/{country}/niv. The session probe
// reuses the dates listing of probeFacility.
func NewRoutes(baseURL, countryCode, scheduleID string, probeFacility domain.FacilityID) *Routes {
	return &Routes{
		root:          strings.TrimRight(baseURL, "/") + "/" + countryCode + "/niv",
		scheduleID:    scheduleID,
		probeFacility: probeFacility,
	}
}

// Root returns the country-scoped portal root.
func (r *Routes) Root() string { return r.root }

// SignInURL returns the sign-in form URL.
func (r *Routes) SignInURL() string { return r.root + "/users/sign_in" }

// ProbeURL returns the authenticated-only resource probed by the session guard.
func (r *Routes) ProbeURL() string { return r.DatesURL(r.probeFacility, nil) }

// DatesURL returns the available-dates listing of facility.
func (r *Routes) DatesURL(facility domain.FacilityID, constraint *application.SlotConstraint) string {
	q := url.Values{}
	q.Set("appointments[expedite]", "false")
	addConstraint(q, constraint)
	return r.scheduleRoot() + "/appointment/days/" + url.PathEscape(facility.String()) + ".json?" + q.Encode()
}

// TimesURL returns the available-times listing of facility on date.
func (r *Routes) TimesURL(facility domain.FacilityID, date time.Time, constraint *application.SlotConstraint) string {
	q := url.Values{}
	q.Set("date", domain.FormatDate(date))
	q.Set("appointments[expedite]", "false")
	addConstraint(q, constraint)
	return r.scheduleRoot() + "/appointment/times/" + url.PathEscape(facility.String()) + ".json?" + q.Encode()
}

// AppointmentURL returns the reschedule form URL.
func (r *Routes) AppointmentURL() string { return r.scheduleRoot() + "/appointment" }

func (r *Routes) scheduleRoot() string {
	return r.root + "/schedule/" + url.PathEscape(r.scheduleID)
}

func addConstraint(q url.Values, c *application.SlotConstraint) {
	if c == nil {
		return
	}
	q.Set("consulate_id", c.Facility.String())
	q.Set("consulate_date", domain.FormatDate(c.Date))
	q.Set("consulate_time", c.Time.String())
}
