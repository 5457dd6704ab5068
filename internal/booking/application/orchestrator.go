package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

// CrashMessage is sent once when the exception ceiling is exceeded.
const CrashMessage = "HELP! Crashed."

const (
	DefaultRetryInterval    = 10 * time.Minute
	DefaultExceptionBackoff = 15 * time.Minute
	DefaultCooldown         = 30 * time.Minute
	DefaultMaxExceptions    = 6
)

// LoopConfig configures the fixed sleep regimes and the exception ceiling.
type LoopConfig struct {
	RetryInterval    time.Duration
	ExceptionBackoff time.Duration
	Cooldown         time.Duration
	// MaxExceptions is the ceiling; the loop crashes once the count exceeds it.
	MaxExceptions int
	// ProbeFirst verifies an existing session instead of logging in up front.
	ProbeFirst bool
}

// DefaultLoopConfig returns the portal's natural poll cadence.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		RetryInterval:    DefaultRetryInterval,
		ExceptionBackoff: DefaultExceptionBackoff,
		Cooldown:         DefaultCooldown,
		MaxExceptions:    DefaultMaxExceptions,
	}
}

// Result is the terminal outcome of Run.
type Result struct {
	Phase domain.Phase
	State domain.OrchestratorState
}

// Succeeded reports a successful termination.
func (r Result) Succeeded() bool { return r.Phase == domain.PhaseTerminatedSuccess }

// Status is a point-in-time view of the loop for health reporting.
type Status struct {
	Phase        domain.Phase `json:"phase"`
	AttemptCount int          `json:"attempt_count"`
	Cycles       int          `json:"cycles"`
	Mode         string       `json:"mode"`
	LastError    string       `json:"last_error,omitempty"`
	LastCycleAt  *time.Time   `json:"last_cycle_at,omitempty"`
}

// RetryOrchestrator drives cycles sequentially, applies the sleep regime
// chosen by each cycle and owns termination.
type RetryOrchestrator struct {
	auth     Authenticator
	cycle    Cycle
	notifier Notifier
	sleeper  Sleeper
	config   LoopConfig
	metrics  observability.Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewRetryOrchestrator creates the top-level loop.
func NewRetryOrchestrator(auth Authenticator, cycle Cycle, notifier Notifier, config LoopConfig, logger *slog.Logger) *RetryOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryOrchestrator{
		auth:     auth,
		cycle:    cycle,
		notifier: notifier,
		sleeper:  TimerSleeper{},
		config:   config,
		metrics:  observability.NoopMetrics{},
		logger:   logger,
		status:   Status{Phase: domain.PhaseInitializing, Mode: domain.RetryModeNormal.String()},
	}
}

// WithSleeper replaces the sleeper.
func (o *RetryOrchestrator) WithSleeper(sleeper Sleeper) *RetryOrchestrator {
	if sleeper != nil {
		o.sleeper = sleeper
	}
	return o
}

// WithMetrics sets the metrics sink.
func (o *RetryOrchestrator) WithMetrics(metrics observability.Metrics) *RetryOrchestrator {
	if metrics != nil {
		o.metrics = metrics
	}
	return o
}

// Status returns the current loop status.
func (o *RetryOrchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Run blocks until a cycle succeeds, the exception ceiling is exceeded, or
// ctx is cancelled. Cancellation returns ctx.Err().
func (o *RetryOrchestrator) Run(ctx context.Context) (Result, error) {
	o.setPhase(domain.PhaseInitializing)
	state := domain.OrchestratorState{}

	o.logger.InfoContext(ctx, "orchestrator started",
		"retry_interval", o.config.RetryInterval,
		"exception_backoff", o.config.ExceptionBackoff,
		"cooldown", o.config.Cooldown,
		"max_exceptions", o.config.MaxExceptions,
	)

	if err := o.initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return o.result(state), ctx.Err()
		}
		state = o.recordException(ctx, state, fmt.Errorf("initial login: %w", err))
		if state.Exceeded(o.config.MaxExceptions) {
			return o.crash(ctx, state), nil
		}
		if err := o.sleep(ctx, state.Mode); err != nil {
			return o.result(state), err
		}
	}

	for {
		o.setPhase(domain.PhasePolling)
		cycleCtx := observability.WithCorrelationID(ctx, "")
		o.logger.InfoContext(cycleCtx, "cycle start", "retry_count", state.AttemptCount, "cycle", state.Cycles+1)

		start := time.Now()
		next, outcome, err := o.runCycle(cycleCtx, state)
		next.Cycles = state.Cycles + 1
		o.metrics.Timing(observability.MetricCycleDuration, time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				state.Cycles = next.Cycles
				o.update(state)
				return o.result(state), ctx.Err()
			}
			state.Cycles = next.Cycles
			state = o.recordException(cycleCtx, state, err)
			if state.Exceeded(o.config.MaxExceptions) {
				return o.crash(ctx, state), nil
			}
		} else {
			state = next
			o.update(state)
			if outcome == OutcomeSucceeded {
				o.metrics.Counter(observability.MetricCycles, 1, observability.T("outcome", "succeeded"))
				o.setPhase(domain.PhaseTerminatedSuccess)
				o.logger.InfoContext(cycleCtx, "orchestrator finished successfully", "cycles", state.Cycles)
				return o.result(state), nil
			}
			o.metrics.Counter(observability.MetricCycles, 1, observability.T("outcome", "continue"))
		}

		if err := o.sleep(ctx, state.Mode); err != nil {
			return o.result(state), err
		}
	}
}

func (o *RetryOrchestrator) initialize(ctx context.Context) error {
	if o.config.ProbeFirst {
		return o.auth.EnsureAuthenticated(ctx)
	}
	return o.auth.Login(ctx)
}

// runCycle shields the loop from panics inside a cycle.
func (o *RetryOrchestrator) runCycle(ctx context.Context, state domain.OrchestratorState) (next domain.OrchestratorState, outcome CycleOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, outcome, err = state, OutcomeContinue, fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return o.cycle.RunCycle(ctx, state, o.setPhase)
}

func (o *RetryOrchestrator) recordException(ctx context.Context, state domain.OrchestratorState, err error) domain.OrchestratorState {
	state = state.RecordException(err)
	o.metrics.Counter(observability.MetricCycles, 1, observability.T("outcome", "exception"))
	o.metrics.Gauge(observability.MetricRetryAttempts, float64(state.AttemptCount))
	o.logger.ErrorContext(ctx, "cycle failed",
		"error", err,
		"retry_count", state.AttemptCount,
		"auth_error", errors.Is(err, domain.ErrAuthentication),
		"fetch_error", errors.Is(err, domain.ErrSlotFetch),
	)
	o.update(state)
	return state
}

func (o *RetryOrchestrator) crash(ctx context.Context, state domain.OrchestratorState) Result {
	o.setPhase(domain.PhaseTerminatedCrashed)
	o.logger.ErrorContext(ctx, "exception ceiling exceeded, giving up",
		"retry_count", state.AttemptCount,
		"ceiling", o.config.MaxExceptions,
	)
	notify(ctx, o.notifier, CrashMessage)
	return o.result(state)
}

func (o *RetryOrchestrator) sleep(ctx context.Context, mode domain.RetryMode) error {
	d := o.interval(mode)
	o.logger.InfoContext(ctx, "sleep", "minutes", d.Minutes(), "mode", mode.String())
	return o.sleeper.Sleep(ctx, d)
}

func (o *RetryOrchestrator) interval(mode domain.RetryMode) time.Duration {
	switch mode {
	case domain.RetryModeBackoff:
		return o.config.ExceptionBackoff
	case domain.RetryModeCooldown:
		return o.config.Cooldown
	default:
		return o.config.RetryInterval
	}
}

func (o *RetryOrchestrator) setPhase(phase domain.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Phase = phase
}

func (o *RetryOrchestrator) update(state domain.OrchestratorState) {
	now := time.Now().UTC()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.AttemptCount = state.AttemptCount
	o.status.Cycles = state.Cycles
	o.status.Mode = state.Mode.String()
	o.status.LastError = state.LastError
	o.status.LastCycleAt = &now
}

func (o *RetryOrchestrator) result(state domain.OrchestratorState) Result {
	return Result{Phase: o.Status().Phase, State: state}
}
