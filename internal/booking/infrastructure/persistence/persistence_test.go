package persistence

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/database/sqlite"
)

func testPayload(t *testing.T, withSecondary bool) domain.SchedulePayload {
	t.Helper()
	primary := domain.NewAppointmentSlot("94", time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC), "11:00")
	var secondary *domain.AppointmentSlot
	if withSecondary {
		s := domain.NewAppointmentSlot("95", time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC), "09:00")
		secondary = &s
	}
	payload, err := domain.NewSchedulePayload(primary, secondary)
	require.NoError(t, err)
	return payload
}

func assertAttemptsRoundTrip(t *testing.T, repo domain.RescheduleAttemptRepository) {
	t.Helper()
	ctx := context.Background()
	caseID := "case-" + time.Now().Format("150405.000000000")

	failed := domain.NewRescheduleAttempt(caseID, testPayload(t, true), false, "success marker not found in response")
	failed.AttemptedAt = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	booked := domain.NewRescheduleAttempt(caseID, testPayload(t, false), true, "")
	booked.AttemptedAt = time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC)
	other := domain.NewRescheduleAttempt(caseID+"-other", testPayload(t, false), true, "")

	require.NoError(t, repo.Create(ctx, failed))
	require.NoError(t, repo.Create(ctx, booked))
	require.NoError(t, repo.Create(ctx, other))

	attempts, err := repo.ListByCase(ctx, caseID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	newest := attempts[0]
	assert.Equal(t, booked.ID, newest.ID)
	assert.True(t, newest.Success)
	assert.Empty(t, newest.FailureReason)
	assert.Nil(t, newest.SecondaryDate)
	assert.Equal(t, domain.FacilityID("94"), newest.PrimaryFacility)
	assert.Equal(t, "2024-11-20", domain.FormatDate(newest.PrimaryDate))
	assert.Equal(t, domain.TimeOfDay("11:00"), newest.PrimaryTime)

	oldest := attempts[1]
	assert.Equal(t, failed.ID, oldest.ID)
	assert.False(t, oldest.Success)
	assert.Equal(t, "success marker not found in response", oldest.FailureReason)
	require.NotNil(t, oldest.SecondaryDate)
	assert.Equal(t, "2024-11-10", domain.FormatDate(*oldest.SecondaryDate))
	assert.Equal(t, domain.FacilityID("95"), oldest.SecondaryFacility)
	assert.Equal(t, domain.TimeOfDay("09:00"), oldest.SecondaryTime)
	assert.True(t, oldest.AttemptedAt.Equal(failed.AttemptedAt))

	limited, err := repo.ListByCase(ctx, caseID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, booked.ID, limited[0].ID)
}

func TestSQLiteAttemptRepository(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assertAttemptsRoundTrip(t, NewSQLiteAttemptRepository(db))
}

func TestSQLiteAttemptRepository_EmptyCase(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	attempts, err := NewSQLiteAttemptRepository(db).ListByCase(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestSQLiteAttemptRepository_CorruptRow(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tests := []struct {
		name        string
		id          string
		primaryDate string
		attemptedAt string
		want        string
	}{
		{"bad id", "not-a-uuid", "2024-11-20", "2024-10-01T08:00:00.000000000Z", "attempt id"},
		{"bad primary date", uuid.NewString(), "20/11/2024", "2024-10-01T08:00:00.000000000Z", "primary date"},
		{"bad timestamp", uuid.NewString(), "2024-11-20", "yesterday", "attempted_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caseID := "corrupt-" + tt.name
			_, err := db.ExecContext(context.Background(),
				`INSERT INTO reschedule_attempts (id, case_id, primary_facility, primary_date, primary_time, success, attempted_at)
				 VALUES (?, ?, '94', ?, '11:00', 0, ?)`,
				tt.id, caseID, tt.primaryDate, tt.attemptedAt)
			require.NoError(t, err)

			_, err = NewSQLiteAttemptRepository(db).ListByCase(context.Background(), caseID, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPostgresAttemptRepository(t *testing.T) {
	url := os.Getenv("SLOTWATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SLOTWATCH_TEST_DATABASE_URL not set")
	}
	pool, err := postgres.Open(context.Background(), url, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	assertAttemptsRoundTrip(t, NewPostgresAttemptRepository(pool))
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCookieStore_RoundTrip(t *testing.T) {
	mr, client := newMiniredisClient(t)
	sealer, err := crypto.NewAESSealerFromBase64Key("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	store := NewRedisCookieStore(client, sealer, time.Hour)
	ctx := context.Background()

	cookies := []*http.Cookie{
		{Name: "_yatri_session", Value: "session-1", Path: "/"},
		{Name: "other", Value: "x"},
	}
	require.NoError(t, store.Save(ctx, "42", cookies))

	raw, err := mr.Get(defaultCookiePrefix + "42")
	require.NoError(t, err)
	assert.NotContains(t, raw, "session-1")
	assert.Equal(t, time.Hour, mr.TTL(defaultCookiePrefix+"42"))

	loaded, err := store.Load(ctx, "42")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "_yatri_session", loaded[0].Name)
	assert.Equal(t, "session-1", loaded[0].Value)
	assert.Equal(t, "/", loaded[0].Path)
}

func TestRedisCookieStore_Missing(t *testing.T) {
	_, client := newMiniredisClient(t)
	store := NewRedisCookieStore(client, nil, 0)

	loaded, err := store.Load(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestRedisCookieStore_Expiry(t *testing.T) {
	mr, client := newMiniredisClient(t)
	store := NewRedisCookieStore(client, nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "42", []*http.Cookie{{Name: "a", Value: "b"}}))
	mr.FastForward(2 * time.Minute)

	loaded, err := store.Load(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
