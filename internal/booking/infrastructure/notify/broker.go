package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/eventbus"
)

// NotificationRoutingKey is the routing key of published notifications.
const NotificationRoutingKey = "booking.notification"

// BrokerMessage is the published notification body.
type BrokerMessage struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// BrokerChannel publishes notifications to a message broker.
type BrokerChannel struct {
	publisher eventbus.Publisher
	now       func() time.Time
}

// NewBrokerChannel creates a channel over publisher.
func NewBrokerChannel(publisher eventbus.Publisher) *BrokerChannel {
	return &BrokerChannel{publisher: publisher, now: time.Now}
}

// Name implements application.Channel.
func (c *BrokerChannel) Name() string { return "broker" }

// Send implements application.Channel.
func (c *BrokerChannel) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(BrokerMessage{Message: message, SentAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return c.publisher.Publish(ctx, NotificationRoutingKey, payload)
}
