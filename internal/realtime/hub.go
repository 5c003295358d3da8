package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event names pushed on the per-user channels
const (
	EventTransactionReceived  = "transaction.received"
	EventNotificationReceived = "notification.received"
)

// Event is the wire format carried over the pub/sub channels
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// TransactionChannel names the per-user transaction channel
func TransactionChannel(userID uuid.UUID) string {
	return "transaction." + userID.String()
}

// NotificationChannel names the per-user notification channel
func NotificationChannel(userID uuid.UUID) string {
	return "notification." + userID.String()
}

// Hub fans events out to terminals through redis pub/sub. Channels are
// ephemeral: events published while nobody listens are dropped.
type Hub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewHub creates a Hub on the given redis client
func NewHub(client *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{client: client, logger: logger}
}

// Publish marshals payload and pushes it on channel under the given event name
func (h *Hub) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	data, err := json.Marshal(Event{Name: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := h.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	h.logger.Debug("Published realtime event",
		zap.String("channel", channel),
		zap.String("event", event),
	)
	return nil
}

// Subscribe attaches to a channel and returns a stream of events. The
// stream closes when ctx is cancelled or the subscription breaks; malformed
// messages are logged and skipped.
func (h *Hub) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	sub := h.client.Subscribe(ctx, channel)

	// Force the subscription handshake so errors surface here, not on the
	// first receive.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					h.logger.Warn("Dropping malformed realtime message",
						zap.String("channel", channel),
						zap.Error(err),
					)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
