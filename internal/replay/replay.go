// Package replay drains the durable mutation queue against the remote store
// after a reconnect.
package replay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/marcus/branger/internal/liststore"
	"github.com/marcus/branger/internal/models"
	"github.com/marcus/branger/internal/queue"
	"github.com/marcus/branger/internal/remote"
)

// RemoteStore is the slice of the remote API replay needs. *remote.Client
// satisfies it; tests inject doubles.
type RemoteStore interface {
	InsertItem(p models.AddItemPayload) (*models.ListItem, error)
	UpdateItemChecked(itemID string, checked bool) error
	DeleteItem(itemID string) error
	FetchItems(listID string) ([]models.ListItem, error)
}

// Result reports replay outcome so the UI can surface a "N changes could
// not sync" notice.
type Result struct {
	Succeeded int
	Failed    int
}

// Coordinator replays queued mutations in FIFO order. Replays are
// serialized: a second trigger while one is in flight waits for it.
type Coordinator struct {
	mu     sync.Mutex
	queue  *queue.Queue
	remote RemoteStore
	store  *liststore.Store
}

// New returns a coordinator draining q against r, refreshing s afterwards.
func New(q *queue.Queue, r RemoteStore, s *liststore.Store) *Coordinator {
	return &Coordinator{queue: q, remote: r, store: s}
}

// Replay drains the queue:
//
//  1. Read the full queue, oldest first.
//  2. Skip delete/toggle entries that target a temp id: the row was never
//     created server-side, so there is nothing to mutate. (The corresponding
//     local edit is lost; see the notes in DESIGN.md.)
//  3. Issue the remote write for every other entry. Failures are
//     independent: a failed entry is retained for the next replay and does
//     not block later entries. A delete or toggle whose target the server no
//     longer has is settled, not failed: another device already removed the
//     row, and retrying can never succeed.
//  4. Prune exactly the settled entries from the queue. Failed entries stay
//     in their original relative order, and so does anything enqueued while
//     the drain was in flight.
//  5. Refresh the full item set from the server to reconcile anything
//     replay could not fix.
//
// Delivery is at-least-once: a crash between a server ack and step 4 can
// duplicate an entry on the next reconnect, so remote writes must tolerate
// duplicate application.
func (c *Coordinator) Replay() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.queue.ReadAll()
	if err != nil {
		slog.Warn("replay: read queue", "err", err)
		c.refresh()
		return Result{}
	}
	if len(entries) == 0 {
		c.refresh()
		return Result{}
	}

	var result Result
	done := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if target, ok := entry.Mutation.TargetID(); ok && models.IsTempID(target) {
			slog.Info("replay: skipping mutation against unconfirmed item",
				"kind", entry.Mutation.Kind, "target", target)
			done[entry.ID] = true
			continue
		}

		if err := c.apply(entry.Mutation); err != nil {
			if targetGone(entry.Mutation, err) {
				slog.Info("replay: target already deleted remotely, dropping",
					"kind", entry.Mutation.Kind, "entry", entry.ID)
				done[entry.ID] = true
				continue
			}
			slog.Warn("replay: entry failed, keeping for retry",
				"kind", entry.Mutation.Kind, "entry", entry.ID, "err", err)
			result.Failed++
			continue
		}
		result.Succeeded++
		done[entry.ID] = true
	}

	if err := c.queue.Prune(done); err != nil {
		slog.Warn("replay: prune queue", "err", err)
	}

	c.refresh()
	return result
}

// targetGone reports whether a delete/toggle failed only because its target
// row no longer exists server-side.
func targetGone(m models.Mutation, err error) bool {
	_, ok := m.TargetID()
	return ok && errors.Is(err, remote.ErrNotFound)
}

// apply issues the remote write for one mutation.
func (c *Coordinator) apply(m models.Mutation) error {
	switch m.Kind {
	case models.KindAddItem:
		_, err := c.remote.InsertItem(*m.Add)
		return err
	case models.KindDeleteItem:
		return c.remote.DeleteItem(m.Delete.ItemID)
	case models.KindToggleItem:
		return c.remote.UpdateItemChecked(m.Toggle.ItemID, m.Toggle.Checked)
	default:
		slog.Warn("replay: dropping unknown mutation kind", "kind", m.Kind)
		return nil
	}
}

// refresh replaces local state with the authoritative item set. Runs
// regardless of replay outcome; failure is logged, never surfaced.
func (c *Coordinator) refresh() {
	items, err := c.remote.FetchItems(c.store.ListID())
	if err != nil {
		slog.Warn("replay: refresh after replay", "err", err)
		return
	}
	c.store.ReplaceAll(items)
}
