package notify

import (
	"context"
	"errors"
	"net/http"
)

const (
	defaultPushbulletURL = "https://api.pushbullet.com/v2/pushes"
	pushTitle            = "slotwatch"
)

// PushbulletChannel sends note pushes through the Pushbullet API.
type PushbulletChannel struct {
	client   *http.Client
	endpoint string
	token    string
}

// NewPushbulletChannel creates a Pushbullet channel for an access token.
func NewPushbulletChannel(token string) (*PushbulletChannel, error) {
	if token == "" {
		return nil, errors.New("pushbullet token is required")
	}
	return &PushbulletChannel{
		client:   defaultClient(),
		endpoint: defaultPushbulletURL,
		token:    token,
	}, nil
}

// WithEndpoint overrides the pushes endpoint.
func (c *PushbulletChannel) WithEndpoint(endpoint string) *PushbulletChannel {
	if endpoint != "" {
		c.endpoint = endpoint
	}
	return c
}

// Name implements application.Channel.
func (c *PushbulletChannel) Name() string { return "pushbullet" }

type pushNote struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send implements application.Channel.
func (c *PushbulletChannel) Send(ctx context.Context, message string) error {
	header := http.Header{}
	header.Set("Access-Token", c.token)
	return postJSON(ctx, c.client, c.endpoint, pushNote{Type: "note", Title: pushTitle, Body: message}, header)
}
