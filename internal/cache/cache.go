// Package cache persists the last-known item set per list so views have
// data to show while offline. Cache failures are non-critical: reads fall
// back to empty, writes are best-effort.
package cache

import (
	"encoding/json"
	"log/slog"

	"github.com/marcus/branger/internal/kv"
	"github.com/marcus/branger/internal/models"
)

const itemsKeyPrefix = "items_cache_"

// Cache stores item snapshots through the injected kv store.
type Cache struct {
	store kv.Store
}

// New returns a cache over store.
func New(store kv.Store) *Cache {
	return &Cache{store: store}
}

// Items returns the cached item set for a list, or nil when absent or
// unreadable.
func (c *Cache) Items(listID string) []models.ListItem {
	data, err := c.store.Get(itemsKeyPrefix + listID)
	if err != nil || len(data) == 0 {
		return nil
	}
	var items []models.ListItem
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Debug("cache: corrupt item snapshot", "list", listID, "err", err)
		return nil
	}
	return items
}

// SetItems stores the item set for a list.
func (c *Cache) SetItems(listID string, items []models.ListItem) {
	data, err := json.Marshal(items)
	if err != nil {
		slog.Debug("cache: encode items", "list", listID, "err", err)
		return
	}
	if err := c.store.Set(itemsKeyPrefix+listID, data); err != nil {
		slog.Debug("cache: persist items", "list", listID, "err", err)
	}
}
