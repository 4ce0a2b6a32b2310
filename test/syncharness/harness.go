// Package syncharness spins up the reference server and any number of full
// client stacks against it, so multi-device sync flows can be exercised over
// real HTTP and websocket transports.
package syncharness

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/marcus/branger/internal/api"
	"github.com/marcus/branger/internal/cache"
	"github.com/marcus/branger/internal/engine"
	"github.com/marcus/branger/internal/kv"
	"github.com/marcus/branger/internal/liststore"
	"github.com/marcus/branger/internal/netmon"
	"github.com/marcus/branger/internal/queue"
	"github.com/marcus/branger/internal/realtime"
	"github.com/marcus/branger/internal/remote"
	"github.com/marcus/branger/internal/replay"
	"github.com/marcus/branger/internal/serverdb"
)

func serverDB(t *testing.T) (*serverdb.ServerDB, error) {
	t.Helper()
	db, err := serverdb.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { db.Close() })
	return db, nil
}

// Client is one simulated device: its own durable state, queue, connectivity
// monitor and realtime channel, all pointed at the shared server.
type Client struct {
	DeviceID string
	Engine   *engine.Engine
	Monitor  *netmon.Monitor
	Queue    *queue.Queue
	Remote   *remote.Client
	Synced   chan replay.Result
}

// Harness is a server plus n connected devices sharing one list.
type Harness struct {
	Server  *httptest.Server
	ListID  string
	Clients map[string]*Client
}

// New starts the server, creates a list, and wires devices named dev-A,
// dev-B, ... All devices start online.
func New(t *testing.T, devices int) *Harness {
	t.Helper()

	store, err := serverDB(t)
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	ts := httptest.NewServer(api.NewServer(api.Config{}, store).Handler())
	t.Cleanup(ts.Close)

	boot := remote.New(ts.URL, "", "harness")
	list, err := boot.CreateList("shared groceries")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	h := &Harness{Server: ts, ListID: list.ID, Clients: make(map[string]*Client)}
	for i := 0; i < devices; i++ {
		id := "dev-" + string(rune('A'+i))
		h.Clients[id] = h.newClient(t, id)
	}
	return h
}

func (h *Harness) newClient(t *testing.T, deviceID string) *Client {
	t.Helper()

	state, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open client state: %v", err)
	}
	t.Cleanup(func() { state.Close() })

	c := &Client{
		DeviceID: deviceID,
		Monitor:  netmon.New(nil, 0),
		Queue:    queue.New(state),
		Remote:   remote.New(h.Server.URL, "", deviceID),
		Synced:   make(chan replay.Result, 8),
	}
	c.Engine = engine.New(engine.Options{
		Store:        liststore.New(h.ListID),
		Queue:        c.Queue,
		Monitor:      c.Monitor,
		Remote:       c.Remote,
		Subscription: realtime.NewChannel(h.Server.URL, "", deviceID),
		Cache:        cache.New(state),
		OnSyncResult: func(res replay.Result) { c.Synced <- res },
	})
	return c
}
