package notify

import (
	"context"
	"log/slog"
)

// LogChannel writes notifications to the structured log. It is always
// configured so a run without external channels still records them.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Name implements application.Channel.
func (c *LogChannel) Name() string { return "log" }

// Send implements application.Channel.
func (c *LogChannel) Send(ctx context.Context, message string) error {
	c.logger.InfoContext(ctx, "notification", "message", message)
	return nil
}
