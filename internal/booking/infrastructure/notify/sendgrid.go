package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultSendGridURL = "https://api.sendgrid.com"
	subjectLength      = 30
)

// SendGridChannel sends each message as a plain-text email through the
// SendGrid v3 mail API.
type SendGridChannel struct {
	client  *http.Client
	baseURL string
	from    string
	to      string
}

// NewSendGridChannel creates an email channel authenticated with apiKey.
func NewSendGridChannel(apiKey, from, to string) (*SendGridChannel, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if to == "" {
		return nil, errors.New("sendgrid recipient is required")
	}
	if from == "" {
		from = to
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	client := defaultClient()
	client.Transport = &oauth2.Transport{Source: source, Base: http.DefaultTransport}

	return &SendGridChannel{
		client:  client,
		baseURL: defaultSendGridURL,
		from:    from,
		to:      to,
	}, nil
}

// WithBaseURL overrides the API endpoint.
func (c *SendGridChannel) WithBaseURL(baseURL string) *SendGridChannel {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Name implements application.Channel.
func (c *SendGridChannel) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// Send emails message. The subject is its first 30 characters.
func (c *SendGridChannel) Send(ctx context.Context, message string) error {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: c.to}}}},
		From:             sendGridAddress{Email: c.from},
		Subject:          Subject(message),
		Content:          []sendGridContent{{Type: "text/plain", Value: message}},
	}
	return postJSON(ctx, c.client, c.baseURL+"/v3/mail/send", mail, nil)
}

// Subject truncates message to the email subject length.
func Subject(message string) string {
	runes := []rune(message)
	if len(runes) <= subjectLength {
		return message
	}
	return string(runes[:subjectLength])
}
