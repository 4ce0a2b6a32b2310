// Package realtime subscribes to the server-pushed change stream for one
// list over a websocket and hands events to a merge callback in receipt
// order.
package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus/branger/internal/models"
)

// State is the channel lifecycle. Transitions only move forward:
// Closed -> Subscribing -> Active -> Closed.
type State int

const (
	StateClosed State = iota
	StateSubscribing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// ErrAlreadyOpen is returned when Open is called on a non-closed channel.
var ErrAlreadyOpen = errors.New("realtime channel already open")

const subscribeTimeout = 10 * time.Second

// Channel is one realtime subscription, scoped to a single list. Acquire it
// when the list view becomes active and Close it on deactivation; the
// channel does not reconnect on its own.
type Channel struct {
	baseURL  string
	apiKey   string
	deviceID string

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	done  chan struct{}
}

// NewChannel creates a closed channel for the given server.
func NewChannel(baseURL, apiKey, deviceID string) *Channel {
	return &Channel{baseURL: baseURL, apiKey: apiKey, deviceID: deviceID, state: StateClosed}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the subscription endpoint and starts delivering events to
// onEvent, one at a time, in the order the transport yields them. The
// device_id is passed so the server suppresses echoes of this client's own
// writes. onEvent runs on the channel's read goroutine.
func (c *Channel) Open(listID string, onEvent func(models.RemoteEvent)) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateSubscribing
	c.mu.Unlock()

	wsURL, err := c.subscribeURL(listID)
	if err != nil {
		c.setClosed()
		return err
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: subscribeTimeout}
	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		c.setClosed()
		return fmt.Errorf("subscribe list %s: %w", listID, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.state = StateActive
	c.mu.Unlock()

	go c.readLoop(conn, done, listID, onEvent)
	return nil
}

// readLoop decodes events until the connection drops or Close is called.
// Malformed events are logged and skipped; they never tear down the stream.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}, listID string, onEvent func(models.RemoteEvent)) {
	defer close(done)
	defer c.setClosed()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("realtime: subscription closed", "list", listID)
			} else {
				slog.Warn("realtime: read", "list", listID, "err", err)
			}
			return
		}

		ev, err := models.DecodeRemoteEvent(data)
		if err != nil {
			slog.Warn("realtime: dropping malformed event", "list", listID, "err", err)
			continue
		}
		onEvent(ev)
	}
}

// Close releases the subscription. Safe to call on a closed channel.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
	if done != nil {
		<-done
	}
}

func (c *Channel) setClosed() {
	c.mu.Lock()
	c.state = StateClosed
	c.conn = nil
	c.mu.Unlock()
}

// subscribeURL converts the http(s) base URL to the ws(s) subscribe
// endpoint for a list.
func (c *Channel) subscribeURL(listID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	case u.Scheme == "http" || u.Scheme == "":
		u.Scheme = "ws"
	case strings.HasPrefix(u.Scheme, "ws"):
		// already a websocket url
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/v1/lists/%s/subscribe", listID)
	q := u.Query()
	if c.deviceID != "" {
		q.Set("device_id", c.deviceID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
