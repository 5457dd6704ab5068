// Package caldav exports booked appointments to a CalDAV calendar
// (Apple Calendar, Fastmail, Nextcloud and similar servers).
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// PropXSlotwatch marks events created by the exporter.
const PropXSlotwatch = "X-SLOTWATCH"

const defaultDuration = 30 * time.Minute

// Exporter puts booked appointments into a CalDAV calendar.
type Exporter struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	caseID       string
	location     *time.Location
	duration     time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

var _ application.BookingExporter = (*Exporter)(nil)

// NewExporter creates a CalDAV exporter for one case.
func NewExporter(baseURL, username, password, caseID string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		baseURL:  baseURL,
		username: username,
		password: password,
		caseID:   caseID,
		location: time.UTC,
		duration: defaultDuration,
		now:      time.Now,
		logger:   logger,
	}
}

// WithCalendarPath sets the calendar collection. Empty discovers the first calendar.
func (e *Exporter) WithCalendarPath(path string) *Exporter {
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	e.calendarPath = path
	return e
}

// WithLocation sets the time zone the portal reports slot times in.
func (e *Exporter) WithLocation(loc *time.Location) *Exporter {
	if loc != nil {
		e.location = loc
	}
	return e
}

// ExportBooking writes one event per booked slot.
func (e *Exporter) ExportBooking(ctx context.Context, payload domain.SchedulePayload) error {
	client, err := e.client()
	if err != nil {
		return err
	}
	calPath, err := e.findCalendarPath(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to find calendar: %w", err)
	}

	slots := []bookedSlot{{kind: "consular", slot: payload.Primary()}}
	if secondary, ok := payload.Secondary(); ok {
		slots = append(slots, bookedSlot{kind: "asc", slot: secondary})
	}

	for _, b := range slots {
		cal, uid, err := e.toICalendar(b)
		if err != nil {
			return err
		}
		eventPath := calPath + uid + ".ics"
		if _, err := client.PutCalendarObject(ctx, eventPath, cal); err != nil {
			return fmt.Errorf("put %s: %w", eventPath, err)
		}
		e.logger.InfoContext(ctx, "exported appointment to calendar", "event_path", eventPath, "slot", b.slot.String())
	}
	return nil
}

func (e *Exporter) client() (*caldav.Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, e.username, e.password), e.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (e *Exporter) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if e.calendarPath != "" {
		return e.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}
	path := cals[0].Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path, nil
}

type bookedSlot struct {
	kind string
	slot domain.AppointmentSlot
}

// toICalendar builds the event of one slot. The UID is stable per case and
// slot kind so a later booking replaces the earlier event.
func (e *Exporter) toICalendar(b bookedSlot) (*ical.Calendar, string, error) {
	start, err := e.startTime(b.slot)
	if err != nil {
		return nil, "", err
	}
	uid := fmt.Sprintf("slotwatch-%s-%s", e.caseID, b.kind)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//slotwatch//Appointment Export//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, e.now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(e.duration).UTC())
	event.Props.SetText(ical.PropSummary, summary(b.kind))
	event.Props.SetText(ical.PropDescription, fmt.Sprintf("Facility: %s\nSchedule: %s\n\nBooked by slotwatch", b.slot.FacilityID(), e.caseID))

	marker := ical.NewProp(PropXSlotwatch)
	marker.Value = "1"
	event.Props[PropXSlotwatch] = []ical.Prop{*marker}

	cal.Children = append(cal.Children, event.Component)
	return cal, uid, nil
}

func (e *Exporter) startTime(slot domain.AppointmentSlot) (time.Time, error) {
	tod, err := time.Parse("15:04", slot.Time().String())
	if err != nil {
		return time.Time{}, fmt.Errorf("slot time %q: %w", slot.Time(), err)
	}
	d := slot.Date()
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), 0, 0, e.location), nil
}

func summary(kind string) string {
	if kind == "asc" {
		return "Biometrics (ASC) appointment"
	}
	return "Consular appointment"
}
