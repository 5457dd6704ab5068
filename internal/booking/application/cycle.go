package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// CycleOutcome is the decision of one loop iteration.
type CycleOutcome int

const (
	// OutcomeContinue keeps polling after the sleep chosen by state.Mode.
	OutcomeContinue CycleOutcome = iota
	// OutcomeSucceeded ends the loop successfully.
	OutcomeSucceeded
)

// PhaseFunc reports intermediate lifecycle phases to the orchestrator.
type PhaseFunc func(domain.Phase)

// Cycle runs one polling iteration. A returned error counts as a cycle exception.
type Cycle interface {
	RunCycle(ctx context.Context, state domain.OrchestratorState, report PhaseFunc) (domain.OrchestratorState, CycleOutcome, error)
}

// RescheduleCycle sequences session check, constrained search and commit.
type RescheduleCycle struct {
	auth      Authenticator
	finder    CandidateFinder
	committer Committer
	notifier  Notifier
	target    domain.TargetSchedule
	logger    *slog.Logger
}

// NewRescheduleCycle creates the search-and-commit cycle.
func NewRescheduleCycle(
	auth Authenticator,
	finder CandidateFinder,
	committer Committer,
	notifier Notifier,
	target domain.TargetSchedule,
	logger *slog.Logger,
) *RescheduleCycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &RescheduleCycle{
		auth:      auth,
		finder:    finder,
		committer: committer,
		notifier:  notifier,
		target:    target,
		logger:    logger,
	}
}

// RunCycle implements Cycle.
func (c *RescheduleCycle) RunCycle(ctx context.Context, state domain.OrchestratorState, report PhaseFunc) (domain.OrchestratorState, CycleOutcome, error) {
	if err := c.auth.EnsureAuthenticated(ctx); err != nil {
		return state, OutcomeContinue, err
	}

	report(domain.PhaseSearching)
	candidate, err := c.finder.FindCandidate(ctx, c.target)
	if err != nil {
		return state, OutcomeContinue, err
	}

	state.Mode = domain.RetryModeNormal
	if candidate == nil {
		c.logger.InfoContext(ctx, "no earlier slot available")
		return state, OutcomeContinue, nil
	}

	report(domain.PhaseCommitting)
	primary := candidate.Primary()
	notify(ctx, c.notifier, fmt.Sprintf("Starting Reschedule (%s %s)", domain.FormatDate(primary.Date()), primary.Time()))

	ok, err := c.committer.Commit(ctx, *candidate)
	if err != nil {
		return state, OutcomeContinue, err
	}
	if ok {
		return state, OutcomeSucceeded, nil
	}
	return state, OutcomeContinue, nil
}

// DateFilter is an extra acceptance rule for a reported date.
type DateFilter func(date time.Time) bool

// WatchConfig configures the single-resource watch cycle.
type WatchConfig struct {
	Facility domain.FacilityID
	Target   domain.TargetSchedule
	// Limit keeps only the first N listed dates. Zero keeps all.
	Limit int
	// Filter optionally narrows acceptable dates.
	Filter DateFilter
}

// WatchCycle polls the primary facility only and reports earlier dates
// without committing. An empty listing is treated as a suspected ban.
type WatchCycle struct {
	auth     Authenticator
	source   SlotSource
	notifier Notifier
	config   WatchConfig
	logger   *slog.Logger
}

// NewWatchCycle creates the notify-only cycle.
func NewWatchCycle(auth Authenticator, source SlotSource, notifier Notifier, config WatchConfig, logger *slog.Logger) *WatchCycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchCycle{
		auth:     auth,
		source:   source,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// RunCycle implements Cycle.
func (c *WatchCycle) RunCycle(ctx context.Context, state domain.OrchestratorState, report PhaseFunc) (domain.OrchestratorState, CycleOutcome, error) {
	if err := c.auth.EnsureAuthenticated(ctx); err != nil {
		return state, OutcomeContinue, err
	}

	report(domain.PhaseSearching)
	dates, err := c.source.ListDates(ctx, c.config.Facility, nil)
	if err != nil {
		return state, OutcomeContinue, err
	}
	if c.config.Limit > 0 && len(dates) > c.config.Limit {
		dates = dates[:c.config.Limit]
	}

	if len(dates) == 0 {
		notify(ctx, c.notifier, "List is empty")
		state.Mode = domain.RetryModeCooldown
		return state, OutcomeContinue, nil
	}

	notify(ctx, c.notifier, "available dates: "+joinDates(dates))
	state.Mode = domain.RetryModeNormal

	for _, d := range dates {
		if !c.config.Target.IsEarlier(d.Date) || state.SeenDate(d.Date) {
			continue
		}
		if c.config.Filter != nil && !c.config.Filter(d.Date) {
			continue
		}
		state = state.WithLastSeen(d.Date)
		c.logger.InfoContext(ctx, "early date found", "date", domain.FormatDate(d.Date))
		notify(ctx, c.notifier, "an early date was found "+domain.FormatDate(d.Date))
		return state, OutcomeSucceeded, nil
	}

	c.logger.InfoContext(ctx, "no earlier date", "target", c.config.Target.String())
	return state, OutcomeContinue, nil
}

func joinDates(dates []domain.AvailableDate) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, domain.FormatDate(d.Date))
	}
	return strings.Join(parts, ", ")
}

func notify(ctx context.Context, n Notifier, message string) {
	if n != nil {
		n.Notify(ctx, message)
	}
}
