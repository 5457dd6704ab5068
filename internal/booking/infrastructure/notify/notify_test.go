package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/eventbus"
)

var (
	_ application.Channel = (*SendGridChannel)(nil)
	_ application.Channel = (*PushoverChannel)(nil)
	_ application.Channel = (*PushbulletChannel)(nil)
	_ application.Channel = (*BrokerChannel)(nil)
	_ application.Channel = (*LogChannel)(nil)
)

type capturedRequest struct {
	path   string
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad"}]}`))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "HELP! Crashed.", Subject("HELP! Crashed."))
	assert.Equal(t, "Rescheduled Successfully! 2024", Subject("Rescheduled Successfully! 2024-11-20 11:00"))
	assert.Len(t, []rune(Subject("ééééééééééééééééééééééééééééééééééé")), 30)
}

func TestSendGridChannel_Send(t *testing.T) {
	server, captured := captureServer(t, http.StatusAccepted)

	ch, err := NewSendGridChannel("sg-key", "", "me@example.com")
	require.NoError(t, err)
	ch.WithBaseURL(server.URL)

	require.NoError(t, ch.Send(context.Background(), "Rescheduled Successfully! 2024-11-20 11:00"))

	assert.Equal(t, "/v3/mail/send", captured.path)
	assert.Equal(t, "Bearer sg-key", captured.header.Get("Authorization"))

	var mail sendGridMail
	require.NoError(t, json.Unmarshal(captured.body, &mail))
	assert.Equal(t, "Rescheduled Successfully! 2024", mail.Subject)
	assert.Equal(t, "me@example.com", mail.From.Email)
	require.Len(t, mail.Personalizations, 1)
	assert.Equal(t, "me@example.com", mail.Personalizations[0].To[0].Email)
	require.Len(t, mail.Content, 1)
	assert.Equal(t, "Rescheduled Successfully! 2024-11-20 11:00", mail.Content[0].Value)
}

func TestSendGridChannel_Errors(t *testing.T) {
	_, err := NewSendGridChannel("", "a@example.com", "b@example.com")
	assert.Error(t, err)
	_, err = NewSendGridChannel("key", "a@example.com", "")
	assert.Error(t, err)

	server, _ := captureServer(t, http.StatusUnauthorized)
	ch, err := NewSendGridChannel("key", "a@example.com", "b@example.com")
	require.NoError(t, err)
	ch.WithBaseURL(server.URL)

	err = ch.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestPushoverChannel_Send(t *testing.T) {
	server, captured := captureServer(t, http.StatusOK)

	ch, err := NewPushoverChannel("app-token", "user-key")
	require.NoError(t, err)
	ch.WithEndpoint(server.URL + "/1/messages.json")

	require.NoError(t, ch.Send(context.Background(), "List is empty"))

	form, err := url.ParseQuery(string(captured.body))
	require.NoError(t, err)
	assert.Equal(t, "/1/messages.json", captured.path)
	assert.Equal(t, "app-token", form.Get("token"))
	assert.Equal(t, "user-key", form.Get("user"))
	assert.Equal(t, "List is empty", form.Get("message"))

	_, err = NewPushoverChannel("", "user")
	assert.Error(t, err)
}

func TestPushbulletChannel_Send(t *testing.T) {
	server, captured := captureServer(t, http.StatusOK)

	ch, err := NewPushbulletChannel("pb-token")
	require.NoError(t, err)
	ch.WithEndpoint(server.URL)

	require.NoError(t, ch.Send(context.Background(), "an early date was found 2024-11-20"))

	assert.Equal(t, "pb-token", captured.header.Get("Access-Token"))
	var note pushNote
	require.NoError(t, json.Unmarshal(captured.body, &note))
	assert.Equal(t, "note", note.Type)
	assert.Equal(t, "an early date was found 2024-11-20", note.Body)
}

func TestBrokerChannel_Send(t *testing.T) {
	publisher := eventbus.NewMemoryPublisher()
	ch := NewBrokerChannel(publisher)
	ch.now = func() time.Time { return time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, ch.Send(context.Background(), "HELP! Crashed."))

	messages := publisher.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, NotificationRoutingKey, messages[0].RoutingKey)
	assert.JSONEq(t, `{"message":"HELP! Crashed.","sent_at":"2024-11-01T09:00:00Z"}`, string(messages[0].Payload))

	publisher.FailWith(errors.New("broker down"))
	assert.Error(t, ch.Send(context.Background(), "again"))
}

func TestLogChannel_Send(t *testing.T) {
	var buf bytes.Buffer
	ch := NewLogChannel(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, ch.Send(context.Background(), "Starting Reschedule (2024-11-20 11:00)"))
	assert.Contains(t, buf.String(), "Starting Reschedule (2024-11-20 11:00)")
}

// A failing channel does not stop delivery to the others.
func TestChannels_ThroughHub(t *testing.T) {
	okServer, captured := captureServer(t, http.StatusOK)
	badServer, _ := captureServer(t, http.StatusInternalServerError)

	pushover, err := NewPushoverChannel("t", "u")
	require.NoError(t, err)
	pushover.WithEndpoint(badServer.URL)
	pushbullet, err := NewPushbulletChannel("pb")
	require.NoError(t, err)
	pushbullet.WithEndpoint(okServer.URL)

	hub := application.NewNotificationHub([]application.Channel{pushover, pushbullet}, nil, nil)
	hub.Notify(context.Background(), "HELP! Crashed.")

	assert.Contains(t, string(captured.body), "HELP! Crashed.")
}
