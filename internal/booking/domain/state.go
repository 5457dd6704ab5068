package domain

import "time"

// RetryMode selects the sleep regime applied after a cycle.
type RetryMode int

const (
	// RetryModeNormal sleeps for the steady-state retry interval.
	RetryModeNormal RetryMode = iota
	// RetryModeBackoff sleeps for the exception backoff interval.
	RetryModeBackoff
	// RetryModeCooldown sleeps for the suspected-ban cooldown interval.
	RetryModeCooldown
)

func (m RetryMode) String() string {
	switch m {
	case RetryModeBackoff:
		return "backoff"
	case RetryModeCooldown:
		return "cooldown"
	default:
		return "normal"
	}
}

// Phase is the orchestrator lifecycle state.
type Phase string

const (
	PhaseInitializing      Phase = "initializing"
	PhasePolling           Phase = "polling"
	PhaseSearching         Phase = "searching"
	PhaseCommitting        Phase = "committing"
	PhaseTerminatedSuccess Phase = "terminated_success"
	PhaseTerminatedCrashed Phase = "terminated_crashed"
)

// IsTerminal reports whether no further cycles will run.
func (p Phase) IsTerminal() bool {
	return p == PhaseTerminatedSuccess || p == PhaseTerminatedCrashed
}

// OrchestratorState is the loop state carried from one cycle to the next.
// It is a value: cycle functions receive a copy and return the successor.
type OrchestratorState struct {
	// AttemptCount counts cycle exceptions. It only grows until the loop ends.
	AttemptCount int
	// Mode is the sleep regime chosen by the last cycle.
	Mode RetryMode
	// LastSeenDate suppresses repeated "earlier date found" reports in the watch loop.
	LastSeenDate *time.Time
	// Cycles counts completed cycles of any kind.
	Cycles int
	// LastError holds the message of the most recent cycle exception.
	LastError string
}

// RecordException returns the state after an unhandled cycle error.
func (s OrchestratorState) RecordException(err error) OrchestratorState {
	s.AttemptCount++
	s.Mode = RetryModeBackoff
	if err != nil {
		s.LastError = err.Error()
	}
	return s
}

// Exceeded reports whether the exception count is past the ceiling.
func (s OrchestratorState) Exceeded(ceiling int) bool {
	return s.AttemptCount > ceiling
}

// SeenDate reports whether d equals the last reported date.
func (s OrchestratorState) SeenDate(d time.Time) bool {
	return s.LastSeenDate != nil && s.LastSeenDate.Equal(DateOf(d))
}

// WithLastSeen returns the state remembering d as reported.
func (s OrchestratorState) WithLastSeen(d time.Time) OrchestratorState {
	day := DateOf(d)
	s.LastSeenDate = &day
	return s
}
