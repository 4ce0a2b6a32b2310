package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MutationKind identifies a pending local write. The set is closed: every
// consumer switches exhaustively and rejects unknown kinds.
type MutationKind string

const (
	KindAddItem    MutationKind = "add_item"
	KindDeleteItem MutationKind = "delete_item"
	KindToggleItem MutationKind = "toggle_item"
)

// TempIDPrefix marks client-assigned placeholder ids for rows that have not
// been created server-side yet.
const TempIDPrefix = "temp_"

// IsTempID reports whether id is a client-side placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewTempID returns a placeholder id for an item added while offline.
func NewTempID(now time.Time) string {
	return fmt.Sprintf("%s%d", TempIDPrefix, now.UnixMilli())
}

// ListItem is a checklist row as known locally. ID is either the durable
// server-assigned id or a temp_ placeholder.
type ListItem struct {
	ID          string `json:"id"`
	ListID      string `json:"list_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Checked     bool   `json:"checked"`
	Position    int    `json:"position"`
	RecipeID    string `json:"recipe_id,omitempty"`
}

// ShoppingList is the parent record of a checklist.
type ShoppingList struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddItemPayload carries the full new-row fields for an add_item mutation.
// It never carries a temp id: the server assigns the durable id on insert.
type AddItemPayload struct {
	ListID      string `json:"list_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	RecipeID    string `json:"recipe_id,omitempty"`
}

// DeleteItemPayload targets an existing item by id.
type DeleteItemPayload struct {
	ItemID string `json:"item_id"`
}

// ToggleItemPayload sets an item's checked state.
type ToggleItemPayload struct {
	ItemID  string `json:"item_id"`
	Checked bool   `json:"checked"`
}

// Mutation is a single local write, a tagged union over the three kinds.
// Exactly one payload field is set, matching Kind.
type Mutation struct {
	Kind   MutationKind       `json:"kind"`
	Add    *AddItemPayload    `json:"add,omitempty"`
	Delete *DeleteItemPayload `json:"delete,omitempty"`
	Toggle *ToggleItemPayload `json:"toggle,omitempty"`
}

// AddItem builds an add_item mutation.
func AddItem(p AddItemPayload) Mutation {
	return Mutation{Kind: KindAddItem, Add: &p}
}

// DeleteItem builds a delete_item mutation.
func DeleteItem(itemID string) Mutation {
	return Mutation{Kind: KindDeleteItem, Delete: &DeleteItemPayload{ItemID: itemID}}
}

// ToggleItem builds a toggle_item mutation.
func ToggleItem(itemID string, checked bool) Mutation {
	return Mutation{Kind: KindToggleItem, Toggle: &ToggleItemPayload{ItemID: itemID, Checked: checked}}
}

// TargetID returns the item id a delete/toggle mutation refers to.
// add_item mutations have no target: their row does not exist yet.
func (m Mutation) TargetID() (string, bool) {
	switch m.Kind {
	case KindDeleteItem:
		if m.Delete != nil {
			return m.Delete.ItemID, true
		}
	case KindToggleItem:
		if m.Toggle != nil {
			return m.Toggle.ItemID, true
		}
	}
	return "", false
}

// Validate checks that the payload matches the declared kind.
func (m Mutation) Validate() error {
	switch m.Kind {
	case KindAddItem:
		if m.Add == nil {
			return fmt.Errorf("add_item mutation with nil payload")
		}
		if m.Add.Name == "" {
			return fmt.Errorf("add_item mutation with empty name")
		}
	case KindDeleteItem:
		if m.Delete == nil || m.Delete.ItemID == "" {
			return fmt.Errorf("delete_item mutation with no target")
		}
	case KindToggleItem:
		if m.Toggle == nil || m.Toggle.ItemID == "" {
			return fmt.Errorf("toggle_item mutation with no target")
		}
	default:
		return fmt.Errorf("unknown mutation kind: %q", m.Kind)
	}
	return nil
}

// MutationEntry is a pending, not-yet-acknowledged write in the durable
// queue. ID and EnqueuedAt are assigned at enqueue time; ID is used only for
// local queue management and is never sent to the server. Queue order is
// positional: EnqueuedAt exists for diagnostics.
type MutationEntry struct {
	ID         string    `json:"id"`
	Mutation   Mutation  `json:"mutation"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EventOp is the operation of a server-pushed change event.
type EventOp string

const (
	OpInsert EventOp = "insert"
	OpUpdate EventOp = "update"
	OpDelete EventOp = "delete"
)

// RemoteEvent is one entry of the authoritative change stream for a list.
// Delete events carry only the row id.
type RemoteEvent struct {
	Op  EventOp  `json:"op"`
	Row ListItem `json:"row"`
}

// DecodeRemoteEvent parses a wire event and rejects unknown ops.
func DecodeRemoteEvent(data []byte) (RemoteEvent, error) {
	var ev RemoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RemoteEvent{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return RemoteEvent{}, fmt.Errorf("unknown event op: %q", ev.Op)
	}
	return ev, nil
}
