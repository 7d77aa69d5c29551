// Package feed broadcasts market events to websocket subscribers. Delivery
// is best effort: a slow subscriber drops events rather than stalling the
// engine, and the persisted ledger remains the source of truth.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	EventPhaseChanged   = "phase_changed"
	EventRoundCompleted = "round_completed"
	EventPlayerSigned   = "player_signed"
	EventTransferDone   = "transfer_completed"
	EventMarketFinished = "market_finished"
)

type Event struct {
	Type      string          `json:"type"`
	SeasonID  string          `json:"season_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type subscriber struct {
	ch chan Event
}

type Hub struct {
	logger *zap.Logger
	buffer int

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish fans the event out to every live subscriber without blocking.
func (h *Hub) Publish(eventType, seasonID string, payload any) {
	if h == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("feed payload marshal failed",
					zap.String("type", eventType), zap.Error(err))
			}
			return
		}
		raw = data
	}
	event := Event{
		Type:      eventType,
		SeasonID:  seasonID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// SubscriberCount reports live connections, mainly for health output.
func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("feed ws accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sub := h.subscribe()
	defer h.unsubscribe(sub)
	if h.logger != nil {
		h.logger.Debug("feed subscriber connected",
			zap.String("remote", r.RemoteAddr))
	}

	ctx := r.Context()
	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.ch:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
