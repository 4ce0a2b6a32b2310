package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus/branger/internal/models"
)

const writeTimeout = 5 * time.Second

// subscriber is one open websocket on a list's change stream. deviceID, when
// set, suppresses echoes of that device's own writes.
type subscriber struct {
	conn     *websocket.Conn
	deviceID string
	send     chan []byte
}

// Hub fans change events out to every subscriber of a list.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{} // listID -> subscribers
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Broadcast sends an event to every subscriber of listID, skipping the
// originating device. Slow subscribers are dropped rather than blocking the
// write path.
func (h *Hub) Broadcast(listID, originDeviceID string, ev models.RemoteEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("hub: encode event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[listID] {
		if originDeviceID != "" && sub.deviceID == originDeviceID {
			continue
		}
		select {
		case sub.send <- data:
		default:
			slog.Warn("hub: dropping slow subscriber", "list", listID)
			h.removeLocked(listID, sub)
		}
	}
}

// Attach registers a websocket connection as a subscriber of listID and
// services it until the connection drops.
func (h *Hub) Attach(listID, deviceID string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, deviceID: deviceID, send: make(chan []byte, 64)}

	h.mu.Lock()
	if h.subs[listID] == nil {
		h.subs[listID] = make(map[*subscriber]struct{})
	}
	h.subs[listID][sub] = struct{}{}
	h.mu.Unlock()

	slog.Debug("hub: subscriber attached", "list", listID, "device", deviceID)

	// Writer: drains the send channel onto the socket.
	go func() {
		for data := range sub.send {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("hub: write", "list", listID, "err", err)
				conn.Close()
				return
			}
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		conn.Close()
	}()

	// Reader: we expect no client messages; this just detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(listID, sub)
	h.mu.Unlock()
	slog.Debug("hub: subscriber detached", "list", listID, "device", deviceID)
}

// removeLocked detaches a subscriber; caller holds h.mu.
func (h *Hub) removeLocked(listID string, sub *subscriber) {
	if set, ok := h.subs[listID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.send)
			if len(set) == 0 {
				delete(h.subs, listID)
			}
		}
	}
}

// CloseAll drops every subscriber, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for listID, set := range h.subs {
		for sub := range set {
			delete(set, sub)
			close(sub.send)
		}
		delete(h.subs, listID)
	}
}
