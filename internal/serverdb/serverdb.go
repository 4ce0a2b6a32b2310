// Package serverdb is the storage layer of the reference sync server: the
// authoritative shopping lists and their items.
package serverdb

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marcus/branger/internal/models"
)

const (
	listIDPrefix = "sl-"
	itemIDPrefix = "it-"
)

const schema = `
CREATE TABLE IF NOT EXISTS shopping_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS list_items (
	id          TEXT PRIMARY KEY,
	list_id     TEXT NOT NULL REFERENCES shopping_lists(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	checked     INTEGER NOT NULL DEFAULT 0,
	position    INTEGER NOT NULL DEFAULT 0,
	recipe_id   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_list_items_list ON list_items(list_id, position);
`

// ServerDB wraps the server database connection.
type ServerDB struct {
	conn *sql.DB
	path string
}

// Open opens the server database, creating file and schema if necessary.
func Open(dbPath string) (*ServerDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &ServerDB{conn: conn, path: dbPath}, nil
}

// Ping checks the database connection is alive.
func (db *ServerDB) Ping() error {
	return db.conn.Ping()
}

// Close checkpoints the WAL and closes the database connection.
func (db *ServerDB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// newID generates a prefixed random identifier.
func newID(prefix string) string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return prefix + hex.EncodeToString(buf)
}

// CreateList creates a shopping list and returns it.
func (db *ServerDB) CreateList(name, ownerID string) (*models.ShoppingList, error) {
	list := &models.ShoppingList{
		ID:        newID(listIDPrefix),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(
		`INSERT INTO shopping_lists (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		list.ID, list.Name, list.OwnerID, list.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	return list, nil
}

// GetList returns a list by id, or (nil, nil) when absent.
func (db *ServerDB) GetList(listID string) (*models.ShoppingList, error) {
	var list models.ShoppingList
	var createdAt string
	err := db.conn.QueryRow(
		`SELECT id, name, owner_id, created_at FROM shopping_lists WHERE id = ?`, listID,
	).Scan(&list.ID, &list.Name, &list.OwnerID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list %s: %w", listID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		list.CreatedAt = t
	}
	return &list, nil
}

// InsertItem creates an item with a fresh durable id and returns the row.
func (db *ServerDB) InsertItem(listID string, p models.AddItemPayload) (*models.ListItem, error) {
	item := &models.ListItem{
		ID:          newID(itemIDPrefix),
		ListID:      listID,
		Name:        p.Name,
		Description: p.Description,
		Position:    p.Position,
		RecipeID:    p.RecipeID,
	}
	_, err := db.conn.Exec(
		`INSERT INTO list_items (id, list_id, name, description, checked, position, recipe_id)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		item.ID, item.ListID, item.Name, item.Description, item.Position, item.RecipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// GetItem returns an item by id, or (nil, nil) when absent.
func (db *ServerDB) GetItem(itemID string) (*models.ListItem, error) {
	var it models.ListItem
	err := db.conn.QueryRow(
		`SELECT id, list_id, name, description, checked, position, recipe_id
		 FROM list_items WHERE id = ?`, itemID,
	).Scan(&it.ID, &it.ListID, &it.Name, &it.Description, &it.Checked, &it.Position, &it.RecipeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return &it, nil
}

// UpdateItem applies a partial update and returns the updated row, or
// (nil, nil) when the item does not exist.
func (db *ServerDB) UpdateItem(itemID string, checked *bool, position *int) (*models.ListItem, error) {
	if checked != nil {
		if _, err := db.conn.Exec(`UPDATE list_items SET checked = ? WHERE id = ?`, *checked, itemID); err != nil {
			return nil, fmt.Errorf("update item %s: %w", itemID, err)
		}
	}
	if position != nil {
		if _, err := db.conn.Exec(`UPDATE list_items SET position = ? WHERE id = ?`, *position, itemID); err != nil {
			return nil, fmt.Errorf("update item %s: %w", itemID, err)
		}
	}
	return db.GetItem(itemID)
}

// DeleteItem removes an item. Deleting an absent item is a no-op: replay is
// at-least-once and the same delete can arrive twice. Returns whether a row
// was actually removed.
func (db *ServerDB) DeleteItem(itemID string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM list_items WHERE id = ?`, itemID)
	if err != nil {
		return false, fmt.Errorf("delete item %s: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListItems returns all items of a list ordered by position.
func (db *ServerDB) ListItems(listID string) ([]models.ListItem, error) {
	rows, err := db.conn.Query(
		`SELECT id, list_id, name, description, checked, position, recipe_id
		 FROM list_items WHERE list_id = ? ORDER BY position ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("list items %s: %w", listID, err)
	}
	defer rows.Close()

	var items []models.ListItem
	for rows.Next() {
		var it models.ListItem
		if err := rows.Scan(&it.ID, &it.ListID, &it.Name, &it.Description, &it.Checked, &it.Position, &it.RecipeID); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}
