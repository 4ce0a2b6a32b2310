package liststore

import (
	"testing"

	"github.com/marcus/branger/internal/models"
)

func item(id, name string, pos int, checked bool) models.ListItem {
	return models.ListItem{ID: id, ListID: "sl-1", Name: name, Position: pos, Checked: checked}
}

func TestItemsSortUncheckedFirstThenPosition(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{
		item("it-3", "Bread", 2, true),
		item("it-1", "Milk", 1, false),
		item("it-4", "Butter", 3, false),
		item("it-2", "Eggs", 0, true),
	})

	got := s.Items()
	want := []string{"it-1", "it-4", "it-2", "it-3"}
	if len(got) != len(want) {
		t.Fatalf("items: got %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestApplyLocalAddAssignsTempID(t *testing.T) {
	s := New("sl-1")
	s.ApplyLocal(models.AddItem(models.AddItemPayload{ListID: "sl-1", Name: "Milk"}))

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	if !models.IsTempID(items[0].ID) {
		t.Errorf("id %q should be a temp id", items[0].ID)
	}
	if items[0].Name != "Milk" {
		t.Errorf("name: got %q", items[0].Name)
	}
}

func TestApplyLocalToggleAndDelete(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false), item("it-2", "Eggs", 1, false)})

	s.ApplyLocal(models.ToggleItem("it-1", true))
	if it, ok := s.Get("it-1"); !ok || !it.Checked {
		t.Errorf("toggle did not apply: %+v ok=%v", it, ok)
	}

	s.ApplyLocal(models.DeleteItem("it-2"))
	if _, ok := s.Get("it-2"); ok {
		t.Error("it-2 should have been removed")
	}
	if s.Len() != 1 {
		t.Errorf("len: got %d, want 1", s.Len())
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false)})

	snap := s.ApplyLocal(models.DeleteItem("it-1"))
	if s.Len() != 0 {
		t.Fatalf("delete did not apply")
	}

	s.Rollback(snap)
	if it, ok := s.Get("it-1"); !ok || it.Name != "Milk" {
		t.Errorf("rollback did not restore it-1: %+v ok=%v", it, ok)
	}
}

func TestMergeRemoteInsertDeduplicatesByID(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false)})

	s.MergeRemote(models.RemoteEvent{Op: models.OpInsert, Row: item("it-1", "Milk (stale copy)", 0, false)})

	if s.Len() != 1 {
		t.Fatalf("duplicate insert grew the list: len %d", s.Len())
	}
	it, _ := s.Get("it-1")
	if it.Name != "Milk" {
		t.Errorf("existing row was overwritten by duplicate insert: %q", it.Name)
	}
}

func TestMergeRemoteInsertAddsNewRow(t *testing.T) {
	s := New("sl-1")
	s.MergeRemote(models.RemoteEvent{Op: models.OpInsert, Row: item("it-9", "Jam", 0, false)})
	if _, ok := s.Get("it-9"); !ok {
		t.Error("insert event should add the row")
	}
}

func TestMergeRemoteUpdateReplacesRow(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false)})

	s.MergeRemote(models.RemoteEvent{Op: models.OpUpdate, Row: item("it-1", "Milk", 0, true)})

	it, _ := s.Get("it-1")
	if !it.Checked {
		t.Error("update event should replace the row")
	}
}

func TestMergeRemoteUpdateForAbsentRowDropped(t *testing.T) {
	s := New("sl-1")
	s.MergeRemote(models.RemoteEvent{Op: models.OpUpdate, Row: item("it-404", "Ghost", 0, true)})
	if s.Len() != 0 {
		t.Error("update for absent row must not create it")
	}
}

func TestMergeRemoteDeleteIdempotent(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false)})

	ev := models.RemoteEvent{Op: models.OpDelete, Row: models.ListItem{ID: "it-1"}}
	s.MergeRemote(ev)
	s.MergeRemote(ev) // second delivery is a no-op

	if s.Len() != 0 {
		t.Errorf("len: got %d, want 0", s.Len())
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	s := New("sl-1")
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 0, false)})

	view := s.Items()
	view[0].Name = "mutated"

	it, _ := s.Get("it-1")
	if it.Name != "Milk" {
		t.Error("Items view must not alias internal state")
	}
}

func TestNextPosition(t *testing.T) {
	s := New("sl-1")
	if got := s.NextPosition(); got != 0 {
		t.Errorf("empty list: got %d, want 0", got)
	}
	s.ReplaceAll([]models.ListItem{item("it-1", "Milk", 4, false)})
	if got := s.NextPosition(); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}
