package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

// DefaultChannelTimeout bounds a single channel send.
const DefaultChannelTimeout = 15 * time.Second

// Channel is one notification delivery mechanism.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// NotificationHub fans a message out to every configured channel. Each
// channel is attempted once per call; failures are logged and swallowed.
type NotificationHub struct {
	channels []Channel
	timeout  time.Duration
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewNotificationHub creates a hub over channels. Zero channels is valid.
func NewNotificationHub(channels []Channel, metrics observability.Metrics, logger *slog.Logger) *NotificationHub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	filtered := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			filtered = append(filtered, ch)
		}
	}
	return &NotificationHub{
		channels: filtered,
		timeout:  DefaultChannelTimeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// WithTimeout sets the per-channel send timeout.
func (h *NotificationHub) WithTimeout(timeout time.Duration) *NotificationHub {
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

// Channels returns the names of the configured channels.
func (h *NotificationHub) Channels() []string {
	names := make([]string, 0, len(h.channels))
	for _, ch := range h.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify sends message to every channel. It never fails or panics.
func (h *NotificationHub) Notify(ctx context.Context, message string) {
	if len(h.channels) == 0 {
		return
	}
	h.logger.InfoContext(ctx, "sending notification", "message", message, "channels", len(h.channels))

	for _, ch := range h.channels {
		if err := h.send(ctx, ch, message); err != nil {
			h.metrics.Counter(observability.MetricNotifications, 1,
				observability.T("channel", ch.Name()), observability.T("status", "failed"))
			h.logger.ErrorContext(ctx, "notification channel failed",
				"channel", ch.Name(),
				"error", err,
			)
			continue
		}
		h.metrics.Counter(observability.MetricNotifications, 1,
			observability.T("channel", ch.Name()), observability.T("status", "sent"))
		h.logger.DebugContext(ctx, "notification sent", "channel", ch.Name())
	}
}

func (h *NotificationHub) send(ctx context.Context, ch Channel, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return ch.Send(sendCtx, message)
}
