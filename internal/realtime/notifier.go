package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/models"
)

// EventChannel is the Redis pub/sub channel carrying realtime events. Every
// server process subscribes, so a notification reaches the recipient no
// matter which process holds their WebSocket connection.
const EventChannel = "skymarket:events"

// Event is the wire format published to the channel and forwarded to clients
type Event struct {
	Type        string          `json:"type"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Notifier publishes realtime events through Redis and forwards them into
// the local hub
type Notifier struct {
	rdb    *redis.Client
	hub    *Hub
	logger *logrus.Logger
}

// NewNotifier creates a Notifier
func NewNotifier(rdb *redis.Client, hub *Hub, logger *logrus.Logger) *Notifier {
	return &Notifier{rdb: rdb, hub: hub, logger: logger}
}

// NotifyNewMessage publishes a message.new event addressed to the recipient
func (n *Notifier) NotifyNewMessage(ctx context.Context, message *models.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return n.publish(ctx, Event{
		Type:        "message.new",
		RecipientID: message.RecipientID,
		Payload:     payload,
	})
}

// NotifyBookingUpdated publishes a booking.updated event to one participant
func (n *Notifier) NotifyBookingUpdated(ctx context.Context, recipientID uuid.UUID, booking *models.Booking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}
	return n.publish(ctx, Event{
		Type:        "booking.updated",
		RecipientID: recipientID,
		Payload:     payload,
	})
}

func (n *Notifier) publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, EventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run subscribes to the event channel and forwards events into the local hub
// until the context is cancelled. Call in a dedicated goroutine.
func (n *Notifier) Run(ctx context.Context) {
	pubsub := n.rdb.Subscribe(ctx, EventChannel)
	defer pubsub.Close()

	n.logger.WithField("channel", EventChannel).Info("Realtime notifier subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				n.logger.WithError(err).Warn("Dropping malformed realtime event")
				continue
			}
			n.hub.Send(event.RecipientID, []byte(msg.Payload))
		}
	}
}
