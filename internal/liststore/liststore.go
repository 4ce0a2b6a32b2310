// Package liststore holds the in-memory state of one shopping list. Local
// mutations apply immediately (optimistic update) and can be rolled back to
// a captured snapshot; remote change events fold in idempotently.
package liststore

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marcus/branger/internal/models"
)

// Snapshot is the pre-mutation item state, captured so a failed online write
// can restore it exactly.
type Snapshot struct {
	items []models.ListItem
}

// Store is the optimistic in-memory item store for a single list.
type Store struct {
	mu     sync.Mutex
	listID string
	items  []models.ListItem
	now    func() time.Time
}

// New returns an empty store for the given list.
func New(listID string) *Store {
	return &Store{listID: listID, now: time.Now}
}

// ListID returns the list this store belongs to.
func (s *Store) ListID() string {
	return s.listID
}

// Items returns the display-ordered view: unchecked items precede checked
// items, and within each group items sort by ascending position.
func (s *Store) Items() []models.ListItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ListItem, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Checked != out[j].Checked {
			return !out[i].Checked
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// Len returns the current item count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (models.ListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return models.ListItem{}, false
}

// NextPosition returns one past the highest position, so new items land at
// the end of the list.
func (s *Store) NextPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := -1
	for _, it := range s.items {
		if it.Position > max {
			max = it.Position
		}
	}
	return max + 1
}

// ApplyLocal mutates the in-memory state according to the mutation's kind
// and returns the pre-mutation snapshot. An add_item applied here receives a
// temp id immediately so the row is visible before the server confirms; the
// mutation itself carries only the field values.
func (s *Store) ApplyLocal(m models.Mutation) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{items: make([]models.ListItem, len(s.items))}
	copy(snap.items, s.items)

	switch m.Kind {
	case models.KindAddItem:
		s.items = append(s.items, models.ListItem{
			ID:          models.NewTempID(s.now()),
			ListID:      m.Add.ListID,
			Name:        m.Add.Name,
			Description: m.Add.Description,
			Position:    m.Add.Position,
			RecipeID:    m.Add.RecipeID,
		})
	case models.KindDeleteItem:
		s.items = removeItem(s.items, m.Delete.ItemID)
	case models.KindToggleItem:
		for i := range s.items {
			if s.items[i].ID == m.Toggle.ItemID {
				s.items[i].Checked = m.Toggle.Checked
				break
			}
		}
	default:
		slog.Warn("liststore: ignoring unknown mutation kind", "kind", m.Kind)
	}

	return snap
}

// Rollback restores the state captured by a previous ApplyLocal.
func (s *Store) Rollback(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]models.ListItem, len(snap.items))
	copy(s.items, snap.items)
}

// MergeRemote folds one authoritative change event into local state.
// De-duplication is id-based: an insert for a present id is ignored (our own
// optimistic add already resolved, or a duplicate delivery), an update for
// an absent id is stale and dropped, a delete of an absent id is a no-op.
func (s *Store) MergeRemote(ev models.RemoteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Op {
	case models.OpInsert:
		for _, it := range s.items {
			if it.ID == ev.Row.ID {
				return
			}
		}
		s.items = append(s.items, ev.Row)
	case models.OpUpdate:
		for i := range s.items {
			if s.items[i].ID == ev.Row.ID {
				s.items[i] = ev.Row
				return
			}
		}
		slog.Debug("merge: update for absent item", "id", ev.Row.ID)
	case models.OpDelete:
		s.items = removeItem(s.items, ev.Row.ID)
	}
}

// ReplaceAll swaps in a freshly fetched authoritative item set. Used by the
// post-replay refresh to reconcile any divergence replay could not fix.
func (s *Store) ReplaceAll(items []models.ListItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]models.ListItem, len(items))
	copy(s.items, items)
}

func removeItem(items []models.ListItem, id string) []models.ListItem {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
