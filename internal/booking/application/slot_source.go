package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// SlotSource lists availability for a facility in the portal's native order.
// An empty result means no availability and is not an error.
type SlotSource interface {
	ListDates(ctx context.Context, facility domain.FacilityID, constraint *SlotConstraint) ([]domain.AvailableDate, error)
	ListTimes(ctx context.Context, facility domain.FacilityID, date time.Time, constraint *SlotConstraint) ([]domain.TimeOfDay, error)
}

type dateEntry struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

type timesResponse struct {
	AvailableTimes []string `json:"available_times"`
	BusinessTimes  []string `json:"business_times"`
}

// PortalSlotSource reads the portal's JSON listing endpoints.
type PortalSlotSource struct {
	session SessionProvider
	routes  Routes
	logger  *slog.Logger
}

// NewPortalSlotSource creates a slot source over the session provider.
func NewPortalSlotSource(session SessionProvider, routes Routes, logger *slog.Logger) *PortalSlotSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortalSlotSource{session: session, routes: routes, logger: logger}
}

// ListDates returns the available dates of a facility.
func (s *PortalSlotSource) ListDates(ctx context.Context, facility domain.FacilityID, constraint *SlotConstraint) ([]domain.AvailableDate, error) {
	u := s.routes.DatesURL(facility, constraint)

	var entries []dateEntry
	if err := s.session.GetJSON(ctx, u, &entries); err != nil {
		return nil, &domain.SlotFetchError{URL: u, Err: err}
	}

	dates := make([]domain.AvailableDate, 0, len(entries))
	for _, e := range entries {
		d, err := domain.ParseDate(e.Date)
		if err != nil {
			return nil, &domain.SlotFetchError{URL: u, Err: err}
		}
		dates = append(dates, domain.AvailableDate{Date: d, BusinessDay: e.BusinessDay})
	}

	s.logger.DebugContext(ctx, "fetched available dates",
		"facility_id", facility,
		"constrained", constraint != nil,
		"count", len(dates),
	)
	return dates, nil
}

// ListTimes returns the available times of a facility on date.
func (s *PortalSlotSource) ListTimes(ctx context.Context, facility domain.FacilityID, date time.Time, constraint *SlotConstraint) ([]domain.TimeOfDay, error) {
	u := s.routes.TimesURL(facility, date, constraint)

	var resp *timesResponse
	if err := s.session.GetJSON(ctx, u, &resp); err != nil {
		return nil, &domain.SlotFetchError{URL: u, Err: err}
	}
	if resp == nil {
		return nil, &domain.SlotFetchError{URL: u, Err: fmt.Errorf("empty times document")}
	}

	times := make([]domain.TimeOfDay, 0, len(resp.AvailableTimes))
	for _, raw := range resp.AvailableTimes {
		tod, err := domain.ParseTimeOfDay(raw)
		if err != nil {
			return nil, &domain.SlotFetchError{URL: u, Err: err}
		}
		times = append(times, tod)
	}

	s.logger.DebugContext(ctx, "fetched available times",
		"facility_id", facility,
		"date", domain.FormatDate(date),
		"count", len(times),
	)
	return times, nil
}
