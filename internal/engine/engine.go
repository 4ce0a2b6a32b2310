// Package engine orchestrates the offline-first data flow for one shopping
// list: optimistic local apply, durable queueing while offline, replay on
// reconnect, and realtime merge of the server's change stream.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/branger/internal/cache"
	"github.com/marcus/branger/internal/liststore"
	"github.com/marcus/branger/internal/models"
	"github.com/marcus/branger/internal/netmon"
	"github.com/marcus/branger/internal/queue"
	"github.com/marcus/branger/internal/replay"
)

// RemoteStore is the remote surface the engine writes through. It is the
// replay surface plus nothing: the engine issues the same calls replay does.
type RemoteStore = replay.RemoteStore

// Subscription is a scoped realtime stream: opened when a list view becomes
// active, closed on deactivation. *realtime.Channel satisfies it.
type Subscription interface {
	Open(listID string, onEvent func(models.RemoteEvent)) error
	Close()
}

// Engine is the data-operation surface the UI talks to. All methods apply
// local state synchronously before any network I/O starts.
type Engine struct {
	store   *liststore.Store
	queue   *queue.Queue
	monitor *netmon.Monitor
	remote  RemoteStore
	replay  *replay.Coordinator
	sub     Subscription

	cache *cache.Cache

	mu       sync.Mutex
	watching bool

	onChange func()
	onSync   func(replay.Result)
}

// Options collects the engine's injected dependencies.
type Options struct {
	Store        *liststore.Store
	Queue        *queue.Queue
	Monitor      *netmon.Monitor
	Remote       RemoteStore
	Subscription Subscription

	// Cache, when set, seeds the store with the last-known item set and
	// keeps the snapshot current so offline sessions have data to show.
	Cache *cache.Cache

	// OnChange fires after any local state change (mutation, merge,
	// refresh) so the view can re-render. Optional.
	OnChange func()
	// OnSyncResult receives the outcome of each replay for the
	// "N changes could not sync" banner. Optional.
	OnSyncResult func(replay.Result)
}

// New wires an engine and registers the reconnect trigger: every
// offline-to-online flip starts exactly one replay.
func New(opts Options) *Engine {
	e := &Engine{
		store:    opts.Store,
		queue:    opts.Queue,
		monitor:  opts.Monitor,
		remote:   opts.Remote,
		replay:   replay.New(opts.Queue, opts.Remote, opts.Store),
		sub:      opts.Subscription,
		cache:    opts.Cache,
		onChange: opts.OnChange,
		onSync:   opts.OnSyncResult,
	}

	if e.cache != nil {
		if items := e.cache.Items(e.store.ListID()); items != nil {
			e.store.ReplaceAll(items)
		}
	}

	e.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		// Replay must not block the notifier; the coordinator serializes
		// overlapping triggers internally.
		go e.runReplay()
	})

	return e
}

// Items returns the display-ordered item view.
func (e *Engine) Items() []models.ListItem {
	return e.store.Items()
}

// Online reports current connectivity.
func (e *Engine) Online() bool {
	return e.monitor.Online()
}

// Pending returns the number of queued offline mutations.
func (e *Engine) Pending() int {
	n, err := e.queue.Len()
	if err != nil {
		slog.Warn("engine: read queue length", "err", err)
		return 0
	}
	return n
}

// AddItem creates an item at the end of the list. Offline, the item appears
// immediately under a temp id and an add_item mutation is queued carrying
// the field values (never the temp id). Online, the insert goes straight to
// the server and the returned durable row merges into local state; a later
// realtime insert event for the same id is de-duplicated.
func (e *Engine) AddItem(name, description string) error {
	payload := models.AddItemPayload{
		ListID:      e.store.ListID(),
		Name:        name,
		Description: description,
		Position:    e.store.NextPosition(),
	}
	m := models.AddItem(payload)
	if err := m.Validate(); err != nil {
		return err
	}

	if !e.monitor.Online() {
		e.store.ApplyLocal(m)
		e.queue.Enqueue(m)
		e.notifyChange()
		return nil
	}

	row, err := e.remote.InsertItem(payload)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	e.store.MergeRemote(models.RemoteEvent{Op: models.OpInsert, Row: *row})
	e.notifyChange()
	return nil
}

// ToggleItem flips an item's checked state, optimistically. An online write
// failure rolls local state back to the pre-toggle snapshot.
func (e *Engine) ToggleItem(itemID string) error {
	item, ok := e.store.Get(itemID)
	if !ok {
		return fmt.Errorf("toggle: no item %s", itemID)
	}
	m := models.ToggleItem(itemID, !item.Checked)

	snap := e.store.ApplyLocal(m)
	e.notifyChange()

	if !e.monitor.Online() {
		e.queue.Enqueue(m)
		return nil
	}

	if err := e.remote.UpdateItemChecked(itemID, !item.Checked); err != nil {
		e.store.Rollback(snap)
		e.notifyChange()
		return fmt.Errorf("toggle item: %w", err)
	}
	return nil
}

// DeleteItem removes an item, optimistically. An online write failure rolls
// local state back.
func (e *Engine) DeleteItem(itemID string) error {
	m := models.DeleteItem(itemID)

	snap := e.store.ApplyLocal(m)
	e.notifyChange()

	if !e.monitor.Online() {
		e.queue.Enqueue(m)
		return nil
	}

	if err := e.remote.DeleteItem(itemID); err != nil {
		e.store.Rollback(snap)
		e.notifyChange()
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// ClearChecked deletes every checked item. Offline, one delete_item
// mutation is queued per item; online, the first failed delete rolls back
// the whole batch.
func (e *Engine) ClearChecked() error {
	var checked []models.ListItem
	for _, it := range e.store.Items() {
		if it.Checked {
			checked = append(checked, it)
		}
	}
	if len(checked) == 0 {
		return nil
	}

	snaps := make([]liststore.Snapshot, 0, len(checked))
	muts := make([]models.Mutation, 0, len(checked))
	for _, it := range checked {
		m := models.DeleteItem(it.ID)
		snaps = append(snaps, e.store.ApplyLocal(m))
		muts = append(muts, m)
	}
	e.notifyChange()

	if !e.monitor.Online() {
		for _, m := range muts {
			e.queue.Enqueue(m)
		}
		return nil
	}

	for i, m := range muts {
		if err := e.remote.DeleteItem(m.Delete.ItemID); err != nil {
			// snaps[i] still holds items i onward; the earlier deletes
			// already landed server-side and must not be resurrected.
			e.store.Rollback(snaps[i])
			e.notifyChange()
			return fmt.Errorf("clear checked: %w", err)
		}
	}
	return nil
}

// Refresh replaces local state with the authoritative server item set.
func (e *Engine) Refresh() error {
	items, err := e.remote.FetchItems(e.store.ListID())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	e.store.ReplaceAll(items)
	e.notifyChange()
	return nil
}

// Sync runs a replay immediately, regardless of connectivity transitions.
// Used by the manual `branger sync` command.
func (e *Engine) Sync() replay.Result {
	res := e.replay.Replay()
	e.notifyChange()
	return res
}

// Watch opens the realtime subscription for this list and merges every
// inbound event, in receipt order, into local state.
func (e *Engine) Watch() error {
	e.mu.Lock()
	if e.watching {
		e.mu.Unlock()
		return nil
	}
	e.watching = true
	e.mu.Unlock()

	err := e.sub.Open(e.store.ListID(), func(ev models.RemoteEvent) {
		e.store.MergeRemote(ev)
		e.notifyChange()
	})
	if err != nil {
		e.mu.Lock()
		e.watching = false
		e.mu.Unlock()
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// Unwatch releases the realtime subscription. An in-flight replay is not
// cancelled by leaving the view.
func (e *Engine) Unwatch() {
	e.mu.Lock()
	if !e.watching {
		e.mu.Unlock()
		return
	}
	e.watching = false
	e.mu.Unlock()
	e.sub.Close()
}

// SetOnChange replaces the change listener. Used by the watch view, which
// wires notifications into its own event loop after construction.
func (e *Engine) SetOnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// SetOnSyncResult replaces the replay-outcome listener.
func (e *Engine) SetOnSyncResult(fn func(replay.Result)) {
	e.mu.Lock()
	e.onSync = fn
	e.mu.Unlock()
}

func (e *Engine) runReplay() {
	res := e.replay.Replay()
	if res.Failed > 0 {
		slog.Warn("sync incomplete", "failed", res.Failed, "succeeded", res.Succeeded)
	}
	e.mu.Lock()
	onSync := e.onSync
	e.mu.Unlock()
	if onSync != nil {
		onSync(res)
	}
	e.notifyChange()
}

func (e *Engine) notifyChange() {
	if e.cache != nil {
		e.cache.SetItems(e.store.ListID(), e.store.Items())
	}
	e.mu.Lock()
	onChange := e.onChange
	e.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}
