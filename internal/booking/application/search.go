package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// CandidateFinder finds a reschedule candidate for a target.
type CandidateFinder interface {
	FindCandidate(ctx context.Context, target domain.TargetSchedule) (*domain.SchedulePayload, error)
}

// SearchConfig configures the constrained search.
type SearchConfig struct {
	PrimaryFacility domain.FacilityID
	// SecondaryFacility is the dependent (ASC) facility. Empty disables the nested search.
	SecondaryFacility domain.FacilityID
	// LeadTimeMonths is the minimum distance from today, in calendar months.
	LeadTimeMonths int
	// Now returns the reference time. Defaults to time.Now.
	Now func() time.Time
}

// ConstrainedSearch walks the primary calendar earliest-first and returns
// the first date for which both facilities resolve to a full slot pair.
type ConstrainedSearch struct {
	source SlotSource
	config SearchConfig
	logger *slog.Logger
}

// NewConstrainedSearch creates a search over source.
func NewConstrainedSearch(source SlotSource, config SearchConfig, logger *slog.Logger) *ConstrainedSearch {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ConstrainedSearch{source: source, config: config, logger: logger}
}

// FindCandidate returns the first fully resolved payload, or nil when no
// primary date in the window yields one.
func (s *ConstrainedSearch) FindCandidate(ctx context.Context, target domain.TargetSchedule) (*domain.SchedulePayload, error) {
	dates, err := s.source.ListDates(ctx, s.config.PrimaryFacility, nil)
	if err != nil {
		return nil, err
	}

	window := domain.NewSearchWindow(target, s.config.Now(), s.config.LeadTimeMonths)
	candidates := window.Filter(dates)

	s.logger.InfoContext(ctx, "checking for an earlier date",
		"available", len(dates),
		"eligible", len(candidates),
		"target", target.String(),
		"earliest", domain.FormatDate(window.Earliest()),
	)

	for _, candidate := range candidates {
		payload, err := s.resolve(ctx, candidate.Date)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
	}
	return nil, nil
}

// resolve tries to build a full payload for one primary date. A nil payload
// with nil error means the date is skipped.
func (s *ConstrainedSearch) resolve(ctx context.Context, date time.Time) (*domain.SchedulePayload, error) {
	day := domain.FormatDate(date)

	primaryTimes, err := s.source.ListTimes(ctx, s.config.PrimaryFacility, date, nil)
	if err != nil {
		return nil, err
	}
	primaryTime, ok := latestTime(primaryTimes)
	if !ok {
		s.logger.DebugContext(ctx, "skipping date without primary times", "date", day)
		return nil, nil
	}
	primary := domain.NewAppointmentSlot(s.config.PrimaryFacility, date, primaryTime)
	s.logger.InfoContext(ctx, "got primary time", "date", day, "time", primaryTime)

	if s.config.SecondaryFacility.IsZero() {
		return buildPayload(primary, nil)
	}

	constraint := &SlotConstraint{
		Facility: s.config.PrimaryFacility,
		Date:     primary.Date(),
		Time:     primary.Time(),
	}

	secondaryDates, err := s.source.ListDates(ctx, s.config.SecondaryFacility, constraint)
	if err != nil {
		return nil, err
	}
	secondaryDate, ok := closestBefore(secondaryDates, primary.Date())
	if !ok {
		s.logger.DebugContext(ctx, "skipping date without secondary dates", "date", day)
		return nil, nil
	}

	secondaryTimes, err := s.source.ListTimes(ctx, s.config.SecondaryFacility, secondaryDate, constraint)
	if err != nil {
		return nil, err
	}
	secondaryTime, ok := latestTime(secondaryTimes)
	if !ok {
		s.logger.DebugContext(ctx, "skipping date without secondary times",
			"date", day,
			"secondary_date", domain.FormatDate(secondaryDate),
		)
		return nil, nil
	}

	secondary := domain.NewAppointmentSlot(s.config.SecondaryFacility, secondaryDate, secondaryTime)
	s.logger.InfoContext(ctx, "got secondary slot", "date", day, "secondary", secondary.String())
	return buildPayload(primary, &secondary)
}

func buildPayload(primary domain.AppointmentSlot, secondary *domain.AppointmentSlot) (*domain.SchedulePayload, error) {
	payload, err := domain.NewSchedulePayload(primary, secondary)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	return &payload, nil
}

// latestTime picks the latest time-of-day. HH:MM strings order chronologically.
func latestTime(times []domain.TimeOfDay) (domain.TimeOfDay, bool) {
	if len(times) == 0 {
		return "", false
	}
	latest := times[0]
	for _, t := range times[1:] {
		if t > latest {
			latest = t
		}
	}
	return latest, true
}

// closestBefore keeps dates strictly before limit and takes the last one,
// relying on the listing being ascending.
func closestBefore(dates []domain.AvailableDate, limit time.Time) (time.Time, bool) {
	var (
		found bool
		last  time.Time
	)
	for _, d := range dates {
		if d.Date.Before(limit) {
			last = d.Date
			found = true
		}
	}
	return last, found
}
