package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result application.Result
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context) (application.Result, error) {
	if f.block {
		<-ctx.Done()
		return f.result, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeRunner) Status() application.Status {
	return application.Status{Phase: f.result.Phase, AttemptCount: f.result.State.AttemptCount}
}

type fakeAuth struct {
	err   error
	calls int
}

func (f *fakeAuth) Login(ctx context.Context) error { return f.err }

func (f *fakeAuth) EnsureAuthenticated(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeFinder struct {
	payload *domain.SchedulePayload
	err     error
}

func (f fakeFinder) FindCandidate(ctx context.Context, target domain.TargetSchedule) (*domain.SchedulePayload, error) {
	return f.payload, f.err
}

type fakeAttempts struct {
	attempts []domain.RescheduleAttempt
	caseID   string
	limit    int
}

func (f *fakeAttempts) Create(ctx context.Context, attempt domain.RescheduleAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAttempts) ListByCase(ctx context.Context, caseID string, limit int) ([]domain.RescheduleAttempt, error) {
	f.caseID = caseID
	f.limit = limit
	return f.attempts, nil
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []string
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestWeekdayFilter(t *testing.T) {
	t.Run("no names disables the filter", func(t *testing.T) {
		filter, err := weekdayFilter(nil)
		require.NoError(t, err)
		assert.Nil(t, filter)
	})

	t.Run("matches named weekdays", func(t *testing.T) {
		filter, err := weekdayFilter([]string{"Wed", " friday "})
		require.NoError(t, err)
		require.NotNil(t, filter)

		assert.True(t, filter(mustDate(t, "2024-11-20")))  // Wednesday
		assert.True(t, filter(mustDate(t, "2024-11-22")))  // Friday
		assert.False(t, filter(mustDate(t, "2024-11-21"))) // Thursday
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		_, err := weekdayFilter([]string{"someday"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "someday")
	})
}

func TestReportResult(t *testing.T) {
	tests := []struct {
		name    string
		result  application.Result
		wantErr error
		output  string
	}{
		{
			name:   "success",
			result: application.Result{Phase: domain.PhaseTerminatedSuccess, State: domain.OrchestratorState{Cycles: 3}},
			output: "finished after 3 cycles",
		},
		{
			name: "crashed",
			result: application.Result{
				Phase: domain.PhaseTerminatedCrashed,
				State: domain.OrchestratorState{AttemptCount: 7, LastError: "boom"},
			},
			wantErr: ErrCrashed,
			output:  "crashed after 7 exceptions: boom",
		},
		{
			name:   "cancelled",
			result: application.Result{Phase: domain.PhasePolling},
			output: "stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := reportResult(&out, tt.result)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.output)
		})
	}
}

func TestRunLoop(t *testing.T) {
	t.Run("crashed loop returns ErrCrashed", func(t *testing.T) {
		runner := &fakeRunner{result: application.Result{Phase: domain.PhaseTerminatedCrashed}}
		var out bytes.Buffer
		err := runLoop(context.Background(), &out, runner, "", nil)
		assert.ErrorIs(t, err, ErrCrashed)
	})

	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{result: application.Result{Phase: domain.PhaseTerminatedSuccess}}
		var out bytes.Buffer
		require.NoError(t, runLoop(context.Background(), &out, runner, "", nil))
		assert.Contains(t, out.String(), "finished")
	})

	t.Run("cancellation stops loop and health server", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		runner := &fakeRunner{block: true, result: application.Result{Phase: domain.PhasePolling}}
		var out bytes.Buffer
		require.NoError(t, runLoop(ctx, &out, runner, "127.0.0.1:0", nil))
		assert.Contains(t, out.String(), "stopped")
	})

	t.Run("run error is returned", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("wiring failed")}
		err := runLoop(context.Background(), &bytes.Buffer{}, runner, "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wiring failed")
	})
}

func TestHealthMux(t *testing.T) {
	ready := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ready"))
	})

	t.Run("healthz reports loop status", func(t *testing.T) {
		runner := &fakeRunner{result: application.Result{
			Phase: domain.PhasePolling,
			State: domain.OrchestratorState{AttemptCount: 2},
		}}
		mux := newHealthMux(runner, map[string]http.Handler{"/readyz": ready, "/metrics": nil})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var status application.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, domain.PhasePolling, status.Phase)
		assert.Equal(t, 2, status.AttemptCount)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, "ready", rec.Body.String())

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("crashed loop is unavailable", func(t *testing.T) {
		runner := &fakeRunner{result: application.Result{Phase: domain.PhaseTerminatedCrashed}}
		rec := httptest.NewRecorder()
		newHealthMux(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestCheckCandidate(t *testing.T) {
	target := domain.NewTargetSchedule(mustDate(t, "2025-03-01"))

	t.Run("no candidate", func(t *testing.T) {
		auth := &fakeAuth{}
		var out bytes.Buffer
		require.NoError(t, checkCandidate(context.Background(), &out, auth, fakeFinder{}, target))
		assert.Equal(t, 1, auth.calls)
		assert.Equal(t, "no slot earlier than 2025-03-01\n", out.String())
	})

	t.Run("prints both slots", func(t *testing.T) {
		primary := domain.NewAppointmentSlot("94", mustDate(t, "2024-11-20"), "11:00")
		secondary := domain.NewAppointmentSlot("95", mustDate(t, "2024-11-18"), "09:30")
		payload, err := domain.NewSchedulePayload(primary, &secondary)
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, checkCandidate(context.Background(), &out, &fakeAuth{}, fakeFinder{payload: &payload}, target))
		assert.Contains(t, out.String(), "earlier slot: 2024-11-20 11:00 (facility 94)")
		assert.Contains(t, out.String(), "asc slot:     2024-11-18 09:30 (facility 95)")
	})

	t.Run("authentication failure", func(t *testing.T) {
		authErr := &domain.AuthenticationError{Reason: "login rejected"}
		err := checkCandidate(context.Background(), &bytes.Buffer{}, &fakeAuth{err: authErr}, fakeFinder{}, target)
		assert.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("search failure", func(t *testing.T) {
		err := checkCandidate(context.Background(), &bytes.Buffer{}, &fakeAuth{}, fakeFinder{err: domain.ErrSlotFetch}, target)
		assert.ErrorIs(t, err, domain.ErrSlotFetch)
	})
}

func TestListAttempts(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		repo := &fakeAttempts{}
		var out bytes.Buffer
		require.NoError(t, listAttempts(context.Background(), &out, repo, "42", 5))
		assert.Equal(t, "42", repo.caseID)
		assert.Equal(t, 5, repo.limit)
		assert.Contains(t, out.String(), "No reschedule attempts recorded.")
	})

	t.Run("table", func(t *testing.T) {
		ascDate := mustDate(t, "2024-11-18")
		repo := &fakeAttempts{attempts: []domain.RescheduleAttempt{
			{
				CaseID:        "42",
				PrimaryDate:   mustDate(t, "2024-11-20"),
				PrimaryTime:   "11:00",
				SecondaryDate: &ascDate,
				SecondaryTime: "09:30",
				Success:       true,
				AttemptedAt:   time.Date(2024, 10, 1, 8, 5, 0, 0, time.UTC),
			},
			{
				CaseID:        "42",
				PrimaryDate:   mustDate(t, "2024-12-02"),
				PrimaryTime:   "08:15",
				FailureReason: strings.Repeat("x", 60),
				AttemptedAt:   time.Date(2024, 9, 30, 7, 0, 0, 0, time.UTC),
			},
		}}

		var out bytes.Buffer
		require.NoError(t, listAttempts(context.Background(), &out, repo, "42", 0))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "ATTEMPTED")
		assert.Contains(t, lines[1], "2024-10-01 08:05")
		assert.Contains(t, lines[1], "success")
		assert.Contains(t, lines[1], "2024-11-18 09:30")
		assert.Contains(t, lines[2], "failed")
		assert.Contains(t, lines[2], strings.Repeat("x", 40)+"...")
	})

	t.Run("no store", func(t *testing.T) {
		assert.Error(t, listAttempts(context.Background(), &bytes.Buffer{}, nil, "42", 0))
	})
}

func TestSendNotification(t *testing.T) {
	t.Run("fans out", func(t *testing.T) {
		ch := &recordingChannel{}
		hub := application.NewNotificationHub([]application.Channel{ch}, nil, nil)

		var out bytes.Buffer
		require.NoError(t, sendNotification(context.Background(), &out, hub, "hello there"))
		assert.Equal(t, []string{"hello there"}, ch.messages)
		assert.Contains(t, out.String(), "Dispatched to: recording")
	})

	t.Run("no channels", func(t *testing.T) {
		hub := application.NewNotificationHub(nil, nil, nil)
		var out bytes.Buffer
		require.NoError(t, sendNotification(context.Background(), &out, hub, "hello"))
		assert.Contains(t, out.String(), "No notification channels configured.")
	})

	t.Run("no hub", func(t *testing.T) {
		assert.Error(t, sendNotification(context.Background(), &bytes.Buffer{}, nil, "hello"))
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "slotwatch "+Version)
	assert.Contains(t, out.String(), "commit: "+Commit)
}

func TestCommandsRequireApp(t *testing.T) {
	SetApp(nil)

	for _, cmd := range []*cobra.Command{runCmd, watchCmd, checkCmd, attemptsCmd} {
		cmd.SetContext(context.Background())
		err := cmd.RunE(cmd, nil)
		assert.ErrorIs(t, err, ErrAppNotInitialized, cmd.Name())
	}

	notifyCmd.SetContext(context.Background())
	assert.ErrorIs(t, notifyCmd.RunE(notifyCmd, []string{"hi"}), ErrAppNotInitialized)

	SetApp(NewApp(nil))
	defer SetApp(nil)
	assert.ErrorIs(t, checkCmd.RunE(checkCmd, nil), ErrAppNotInitialized)
}
