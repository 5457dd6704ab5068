package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func fixedClock(t *testing.T, s string) func() time.Time {
	d := mustDate(t, s)
	return func() time.Time { return d.Add(9 * time.Hour) }
}

// fakeRoutes renders human-readable pseudo URLs.
type fakeRoutes struct{}

func (fakeRoutes) ProbeURL() string { return "probe" }

func (fakeRoutes) DatesURL(facility domain.FacilityID, c *SlotConstraint) string {
	return "dates/" + facility.String() + constraintSuffix(c)
}

func (fakeRoutes) TimesURL(facility domain.FacilityID, date time.Time, c *SlotConstraint) string {
	return "times/" + facility.String() + "/" + domain.FormatDate(date) + constraintSuffix(c)
}

func (fakeRoutes) AppointmentURL() string { return "appointment" }

func constraintSuffix(c *SlotConstraint) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("?consulate=%s&date=%s&time=%s", c.Facility, domain.FormatDate(c.Date), c.Time)
}

// fakeSession serves canned bodies by URL and records every request.
type fakeSession struct {
	mu        sync.Mutex
	bodies    map[string]string
	errs      map[string]error
	probes    []string
	loginErr  error
	logins    int
	submitted []url.Values
	requests  []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{bodies: map[string]string{}, errs: map[string]error{}}
}

func (s *fakeSession) Login(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	return s.loginErr
}

func (s *fakeSession) Get(_ context.Context, u string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, u)
	if u == "probe" && len(s.probes) > 0 {
		body := s.probes[0]
		s.probes = s.probes[1:]
		return []byte(body), nil
	}
	if err := s.errs[u]; err != nil {
		return nil, err
	}
	return []byte(s.bodies[u]), nil
}

func (s *fakeSession) GetJSON(ctx context.Context, u string, v any) error {
	body, err := s.Get(ctx, u)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (s *fakeSession) SubmitForm(_ context.Context, u string, fields url.Values) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, fields)
	if err := s.errs[u]; err != nil {
		return nil, err
	}
	return []byte(s.bodies[u]), nil
}

func (s *fakeSession) Cookies() []*http.Cookie { return nil }

func (s *fakeSession) requested(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// fakeSource is an in-memory SlotSource keyed by facility and date.
type fakeSource struct {
	dates       map[domain.FacilityID][]string
	times       map[string][]string
	datesErr    error
	timesCalls  []string
	constraints []*SlotConstraint
}

func timesKey(facility domain.FacilityID, date string) string {
	return facility.String() + "@" + date
}

func (s *fakeSource) ListDates(_ context.Context, facility domain.FacilityID, c *SlotConstraint) ([]domain.AvailableDate, error) {
	if s.datesErr != nil {
		return nil, s.datesErr
	}
	s.constraints = append(s.constraints, c)
	var out []domain.AvailableDate
	for _, raw := range s.dates[facility] {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AvailableDate{Date: d, BusinessDay: true})
	}
	return out, nil
}

func (s *fakeSource) ListTimes(_ context.Context, facility domain.FacilityID, date time.Time, _ *SlotConstraint) ([]domain.TimeOfDay, error) {
	key := timesKey(facility, domain.FormatDate(date))
	s.timesCalls = append(s.timesCalls, key)
	var out []domain.TimeOfDay
	for _, raw := range s.times[key] {
		out = append(out, domain.TimeOfDay(raw))
	}
	return out, nil
}

// recordingNotifier captures notified messages.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func (n *recordingNotifier) Count(message string) int {
	count := 0
	for _, m := range n.Messages() {
		if m == message {
			count++
		}
	}
	return count
}

// recordingSleeper returns immediately and records each requested duration.
type recordingSleeper struct {
	durations []time.Duration
	cancel    context.CancelFunc
	cancelAt  int
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.durations = append(s.durations, d)
	if s.cancel != nil && len(s.durations) == s.cancelAt {
		s.cancel()
	}
	return ctx.Err()
}

// fakeAuth scripts Login and EnsureAuthenticated outcomes.
type fakeAuth struct {
	loginErr  error
	ensureErr []error
	logins    int
	ensures   int
}

func (a *fakeAuth) Login(context.Context) error {
	a.logins++
	return a.loginErr
}

func (a *fakeAuth) EnsureAuthenticated(context.Context) error {
	a.ensures++
	if len(a.ensureErr) == 0 {
		return nil
	}
	err := a.ensureErr[0]
	a.ensureErr = a.ensureErr[1:]
	return err
}

// scriptedCycle replays a sequence of cycle results; the last step repeats.
type scriptedCycle struct {
	steps []cycleStep
	calls int
}

type cycleStep struct {
	mode    domain.RetryMode
	outcome CycleOutcome
	err     error
	panic   bool
}

func (c *scriptedCycle) RunCycle(_ context.Context, state domain.OrchestratorState, report PhaseFunc) (domain.OrchestratorState, CycleOutcome, error) {
	step := c.steps[len(c.steps)-1]
	if c.calls < len(c.steps) {
		step = c.steps[c.calls]
	}
	c.calls++
	report(domain.PhaseSearching)
	if step.panic {
		panic("selector not found")
	}
	if step.err != nil {
		return state, OutcomeContinue, step.err
	}
	state.Mode = step.mode
	return state, step.outcome, nil
}

// fakeCommitter records payloads and returns a fixed outcome.
type fakeCommitter struct {
	ok       bool
	err      error
	payloads []domain.SchedulePayload
}

func (c *fakeCommitter) Commit(_ context.Context, payload domain.SchedulePayload) (bool, error) {
	c.payloads = append(c.payloads, payload)
	return c.ok, c.err
}

// fakeFinder returns a fixed candidate.
type fakeFinder struct {
	payload *domain.SchedulePayload
	err     error
}

func (f fakeFinder) FindCandidate(context.Context, domain.TargetSchedule) (*domain.SchedulePayload, error) {
	return f.payload, f.err
}

// memoryAttempts is an in-memory attempt repository.
type memoryAttempts struct {
	attempts []domain.RescheduleAttempt
	err      error
}

func (m *memoryAttempts) Create(_ context.Context, a domain.RescheduleAttempt) error {
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryAttempts) ListByCase(_ context.Context, caseID string, limit int) ([]domain.RescheduleAttempt, error) {
	var out []domain.RescheduleAttempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].CaseID == caseID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

type fakeExporter struct {
	exported []domain.SchedulePayload
	err      error
}

func (e *fakeExporter) ExportBooking(_ context.Context, p domain.SchedulePayload) error {
	e.exported = append(e.exported, p)
	return e.err
}

var errTransport = errors.New("connection reset by peer")
