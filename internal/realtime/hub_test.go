package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewHub(client, zap.NewNop())
}

func TestChannelNames(t *testing.T) {
	id := uuid.MustParse("3e0d9f1c-9d30-4f20-a12f-30b8a4a6b9aa")

	if got := TransactionChannel(id); got != "transaction.3e0d9f1c-9d30-4f20-a12f-30b8a4a6b9aa" {
		t.Errorf("TransactionChannel = %q", got)
	}
	if got := NotificationChannel(id); got != "notification.3e0d9f1c-9d30-4f20-a12f-30b8a4a6b9aa" {
		t.Errorf("NotificationChannel = %q", got)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()
	channel := TransactionChannel(uuid.New())

	events, err := hub.Subscribe(ctx, channel)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	payload := map[string]string{"order_id": "o1", "status": "paid"}
	if err := hub.Publish(ctx, channel, EventTransactionReceived, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case event := <-events:
		if event.Name != EventTransactionReceived {
			t.Errorf("Expected %q, got %q", EventTransactionReceived, event.Name)
		}
		var got map[string]string
		if err := json.Unmarshal(event.Payload, &got); err != nil {
			t.Fatalf("Malformed payload: %v", err)
		}
		if got["status"] != "paid" {
			t.Errorf("Payload wrong: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No event delivered")
	}
}

func TestSubscriberChannelsIsolated(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	mine, err := hub.Subscribe(ctx, TransactionChannel(uuid.New()))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	other := TransactionChannel(uuid.New())
	if err := hub.Publish(ctx, other, EventTransactionReceived, map[string]string{"status": "paid"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case event := <-mine:
		t.Fatalf("Event leaked across channels: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := hub.Subscribe(ctx, NotificationChannel(uuid.New()))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()

	select {
	case _, open := <-events:
		if open {
			t.Error("Expected the event channel to close after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Event channel did not close")
	}
}
