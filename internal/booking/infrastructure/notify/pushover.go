package notify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

const defaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverChannel posts messages to the Pushover API.
type PushoverChannel struct {
	client   *http.Client
	endpoint string
	token    string
	user     string
}

// NewPushoverChannel creates a Pushover channel for an application token and user key.
func NewPushoverChannel(token, user string) (*PushoverChannel, error) {
	if token == "" || user == "" {
		return nil, errors.New("pushover token and user are required")
	}
	return &PushoverChannel{
		client:   defaultClient(),
		endpoint: defaultPushoverURL,
		token:    token,
		user:     user,
	}, nil
}

// WithEndpoint overrides the messages endpoint.
func (c *PushoverChannel) WithEndpoint(endpoint string) *PushoverChannel {
	if endpoint != "" {
		c.endpoint = endpoint
	}
	return c
}

// Name implements application.Channel.
func (c *PushoverChannel) Name() string { return "pushover" }

// Send implements application.Channel.
func (c *PushoverChannel) Send(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("user", c.user)
	form.Set("message", message)
	return postForm(ctx, c.client, c.endpoint, form)
}
