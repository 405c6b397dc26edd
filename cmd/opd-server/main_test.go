package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opd/opd/internal/domain/queue"
	"github.com/opd/opd/internal/platform/websocket"
)

func TestHubPublisher_BroadcastsQueueEvents(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	client := &websocket.Client{
		ID:     "test-client",
		Topics: []string{websocket.TopicQueue},
		Send:   make(chan []byte, 16),
	}
	hub.Register(client)

	pub := &hubPublisher{hub: hub, logger: zerolog.Nop()}
	entry := &queue.Entry{
		ID:            42,
		QueuePosition: 3,
		Status:        queue.StatusApproved,
	}
	pub.PublishQueue(context.Background(), queue.EventCalled, entry)

	select {
	case msg := <-client.Send:
		var event websocket.Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Type != queue.EventCalled {
			t.Errorf("expected event type %q, got %q", queue.EventCalled, event.Type)
		}
		if event.Topic != websocket.TopicQueue {
			t.Errorf("expected topic %q, got %q", websocket.TopicQueue, event.Topic)
		}

		var payload queue.Entry
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.Fatalf("unexpected error decoding payload: %v", err)
		}
		if payload.ID != 42 || payload.QueuePosition != 3 {
			t.Errorf("unexpected payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("queue event was not broadcast to subscriber")
	}
}
