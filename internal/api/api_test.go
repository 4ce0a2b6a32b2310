package api

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus/branger/internal/models"
	"github.com/marcus/branger/internal/remote"
	"github.com/marcus/branger/internal/serverdb"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*httptest.Server, *serverdb.ServerDB) {
	t.Helper()
	store, err := serverdb.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(Config{APIKey: testAPIKey}, store)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func newClient(ts *httptest.Server, deviceID string) *remote.Client {
	return remote.New(ts.URL, testAPIKey, deviceID)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	c := remote.New(ts.URL, "", "dev-a") // health needs no auth

	resp, err := c.HealthCheck()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: %q", resp.Status)
	}
}

func TestItemLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(ts, "dev-a")

	list, err := c.CreateList("groceries")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	row, err := c.InsertItem(models.AddItemPayload{ListID: list.ID, Name: "Milk", Position: 0})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if models.IsTempID(row.ID) || row.ID == "" {
		t.Errorf("insert must return a durable id, got %q", row.ID)
	}

	if err := c.UpdateItemChecked(row.ID, true); err != nil {
		t.Fatalf("update: %v", err)
	}

	items, err := c.FetchItems(list.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 || !items[0].Checked {
		t.Errorf("fetched: %+v", items)
	}

	if err := c.DeleteItem(row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Duplicate delete must succeed.
	if err := c.DeleteItem(row.ID); err != nil {
		t.Fatalf("duplicate delete: %v", err)
	}

	items, _ = c.FetchItems(list.ID)
	if len(items) != 0 {
		t.Errorf("items after delete: %+v", items)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t)
	c := remote.New(ts.URL, "wrong-key", "dev-a")

	_, err := c.CreateList("groceries")
	if !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestInsertIntoUnknownList(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(ts, "dev-a")

	_, err := c.InsertItem(models.AddItemPayload{ListID: "sl-nope", Name: "Milk"})
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateUnknownItem(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(ts, "dev-a")

	err := c.UpdateItemChecked("it-nope", true)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func dialSubscribe(t *testing.T, ts *httptest.Server, listID, deviceID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/v1/lists/" + listID + "/subscribe?api_key=" + testAPIKey + "&device_id=" + deviceID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial subscribe: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.RemoteEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	ev, err := models.DecodeRemoteEvent(data)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestSubscribeReceivesOtherDevicesWrites(t *testing.T) {
	ts, _ := newTestServer(t)
	writer := newClient(ts, "dev-writer")

	list, err := writer.CreateList("groceries")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	conn := dialSubscribe(t, ts, list.ID, "dev-watcher")

	row, err := writer.InsertItem(models.AddItemPayload{ListID: list.ID, Name: "Milk"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Op != models.OpInsert || ev.Row.ID != row.ID {
		t.Errorf("insert event: %+v", ev)
	}

	if err := writer.UpdateItemChecked(row.ID, true); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev = readEvent(t, conn)
	if ev.Op != models.OpUpdate || !ev.Row.Checked {
		t.Errorf("update event: %+v", ev)
	}

	if err := writer.DeleteItem(row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ev = readEvent(t, conn)
	if ev.Op != models.OpDelete || ev.Row.ID != row.ID {
		t.Errorf("delete event: %+v", ev)
	}
}

func TestSubscribeSuppressesOwnEcho(t *testing.T) {
	ts, _ := newTestServer(t)
	same := newClient(ts, "dev-same")
	other := newClient(ts, "dev-other")

	list, err := same.CreateList("groceries")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	conn := dialSubscribe(t, ts, list.ID, "dev-same")

	// Our own write must not echo back.
	if _, err := same.InsertItem(models.AddItemPayload{ListID: list.ID, Name: "Milk"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// A different device's write must arrive.
	row, err := other.InsertItem(models.AddItemPayload{ListID: list.ID, Name: "Eggs"})
	if err != nil {
		t.Fatalf("insert other: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Row.ID != row.ID {
		t.Errorf("first delivered event should be the other device's insert, got %+v", ev)
	}
}

func TestSubscribeUnknownList(t *testing.T) {
	ts, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/v1/lists/sl-nope/subscribe?api_key=" + testAPIKey
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial should fail for unknown list")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("expected 404 handshake response, got %+v", resp)
	}
}

func TestDeleteResponseReportsRemoval(t *testing.T) {
	ts, store := newTestServer(t)
	c := newClient(ts, "dev-a")

	list, _ := c.CreateList("groceries")
	row, err := store.InsertItem(list.ID, models.AddItemPayload{Name: "Milk"})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	if err := c.DeleteItem(row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.GetItem(row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("row should be gone")
	}
}
