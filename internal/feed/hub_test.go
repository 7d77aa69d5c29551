package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)
	// Must not block or panic.
	hub.Publish(EventPhaseChanged, "s1", map[string]string{"phase": "free_market"})

	var nilHub *Hub
	nilHub.Publish(EventPhaseChanged, "s1", nil)
	if nilHub.SubscriberCount() != 0 {
		t.Fatalf("nil hub subscriber count")
	}
}

func TestServeWSDeliversEvents(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(EventPlayerSigned, "s1", map[string]string{"player_id": "p1"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != EventPlayerSigned || event.SeasonID != "s1" {
		t.Fatalf("event = %+v", event)
	}
	var payload map[string]string
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["player_id"] != "p1" {
		t.Fatalf("payload = %v", payload)
	}
}
