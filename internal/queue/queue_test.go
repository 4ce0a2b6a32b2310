package queue

import (
	"errors"
	"testing"

	"github.com/marcus/branger/internal/kv"
	"github.com/marcus/branger/internal/models"
)

func addMutation(name string) models.Mutation {
	return models.AddItem(models.AddItemPayload{ListID: "sl-1", Name: name})
}

func TestEnqueueAssignsIDAndTimestamp(t *testing.T) {
	q := New(kv.NewMemory())

	q.Enqueue(addMutation("Milk"))

	entries, err := q.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("entry id should be assigned")
	}
	if entries[0].EnqueuedAt.IsZero() {
		t.Error("enqueued_at should be assigned")
	}
	if entries[0].Mutation.Kind != models.KindAddItem {
		t.Errorf("kind: got %q, want add_item", entries[0].Mutation.Kind)
	}
}

func TestFIFOOrderPreserved(t *testing.T) {
	q := New(kv.NewMemory())

	names := []string{"Milk", "Eggs", "Bread", "Butter"}
	for _, n := range names {
		q.Enqueue(addMutation(n))
	}

	entries, err := q.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != len(names) {
		t.Fatalf("entries: got %d, want %d", len(entries), len(names))
	}
	for i, n := range names {
		if got := entries[i].Mutation.Add.Name; got != n {
			t.Errorf("entry %d: got %q, want %q", i, got, n)
		}
	}
}

func TestOrderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}

	q := New(store)
	q.Enqueue(addMutation("Milk"))
	q.Enqueue(models.ToggleItem("it-1", true))
	q.Enqueue(models.DeleteItem("it-2"))
	store.Close()

	// Same base dir, fresh process state.
	store2, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("reopen kv: %v", err)
	}
	defer store2.Close()

	entries, err := New(store2).ReadAll()
	if err != nil {
		t.Fatalf("read after restart: %v", err)
	}
	wantKinds := []models.MutationKind{models.KindAddItem, models.KindToggleItem, models.KindDeleteItem}
	if len(entries) != len(wantKinds) {
		t.Fatalf("entries: got %d, want %d", len(entries), len(wantKinds))
	}
	for i, k := range wantKinds {
		if entries[i].Mutation.Kind != k {
			t.Errorf("entry %d kind: got %q, want %q", i, entries[i].Mutation.Kind, k)
		}
	}
}

func TestClear(t *testing.T) {
	q := New(kv.NewMemory())
	q.Enqueue(addMutation("Milk"))

	if err := q.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := q.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after clear: got %d, want 0", len(entries))
	}
}

func TestReplaceWithKeepsExactEntries(t *testing.T) {
	q := New(kv.NewMemory())
	for _, n := range []string{"a", "b", "c", "d"} {
		q.Enqueue(addMutation(n))
	}

	entries, _ := q.ReadAll()
	remainder := []models.MutationEntry{entries[1], entries[3]}
	if err := q.ReplaceWith(remainder); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := q.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}
	if got[0].ID != entries[1].ID || got[1].ID != entries[3].ID {
		t.Errorf("remainder order changed: got [%s %s], want [%s %s]",
			got[0].ID, got[1].ID, entries[1].ID, entries[3].ID)
	}
}

func TestReplaceWithEmptyClears(t *testing.T) {
	q := New(kv.NewMemory())
	q.Enqueue(addMutation("Milk"))

	if err := q.ReplaceWith(nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("len: got %d, want 0", n)
	}
}

func TestPruneKeepsFailedAndLateEntries(t *testing.T) {
	q := New(kv.NewMemory())
	for _, n := range []string{"a", "b", "c"} {
		q.Enqueue(addMutation(n))
	}
	snapshot, _ := q.ReadAll()

	// A mutation arrives after the drain snapshot was taken.
	q.Enqueue(models.ToggleItem("it-9", true))

	// a and c were applied; b failed.
	done := map[string]bool{snapshot[0].ID: true, snapshot[2].ID: true}
	if err := q.Prune(done); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, err := q.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}
	if got[0].ID != snapshot[1].ID {
		t.Errorf("failed entry lost: got %s, want %s", got[0].ID, snapshot[1].ID)
	}
	if got[1].Mutation.Kind != models.KindToggleItem {
		t.Errorf("late entry lost: got %q", got[1].Mutation.Kind)
	}
}

func TestPruneEverythingClears(t *testing.T) {
	q := New(kv.NewMemory())
	q.Enqueue(addMutation("Milk"))
	entries, _ := q.ReadAll()

	if err := q.Prune(map[string]bool{entries[0].ID: true}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("len: got %d, want 0", n)
	}
}

// failingStore always errors on writes.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, error) { return nil, nil }
func (failingStore) Set(string, []byte) error   { return errors.New("disk full") }
func (failingStore) Remove(string) error        { return errors.New("disk full") }

func TestEnqueueSwallowsPersistenceFailure(t *testing.T) {
	q := New(failingStore{})
	// Must not panic or surface the error.
	q.Enqueue(addMutation("Milk"))
}

func TestEnqueueRejectsInvalidMutation(t *testing.T) {
	q := New(kv.NewMemory())
	q.Enqueue(models.Mutation{Kind: "rename_item"})

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("invalid mutation was enqueued")
	}
}
