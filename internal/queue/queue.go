// Package queue implements the durable, order-preserving mutation queue for
// offline writes. Entries are JSON-serialized under a single key in the
// injected kv store, so FIFO order survives process restarts exactly.
package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/marcus/branger/internal/kv"
	"github.com/marcus/branger/internal/models"
)

const queueKey = "offline_queue"

// Queue is the durable mutation queue. The UI flow appends while the replay
// coordinator drains on its own goroutine, so every read-modify-write of the
// persisted sequence holds the queue mutex.
type Queue struct {
	store kv.Store
	now   func() time.Time
	rng   *rand.Rand

	mu sync.Mutex
}

// New returns a queue persisting through store.
func New(store kv.Store) *Queue {
	return &Queue{
		store: store,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newEntryID returns a time-ordered id with a random suffix. The id is used
// only for local queue management and never reaches the server.
func (q *Queue) newEntryID() string {
	return ulid.MustNew(ulid.Timestamp(q.now()), q.rng).String()
}

// Enqueue assigns an id and timestamp to the mutation and appends it to the
// persisted sequence. Persistence failures are logged and swallowed: losing
// one offline mutation is preferable to failing the local edit.
func (q *Queue) Enqueue(m models.Mutation) {
	if err := m.Validate(); err != nil {
		slog.Warn("queue: refusing invalid mutation", "err", err)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.readAll()
	if err != nil {
		slog.Warn("queue: read before enqueue", "err", err)
		entries = nil
	}

	entries = append(entries, models.MutationEntry{
		ID:         q.newEntryID(),
		Mutation:   m,
		EnqueuedAt: q.now().UTC(),
	})

	if err := q.persist(entries); err != nil {
		slog.Warn("queue: enqueue persist", "kind", m.Kind, "err", err)
	}
}

// ReadAll returns the full queue, oldest first. An absent key is an empty
// queue, not an error.
func (q *Queue) ReadAll() ([]models.MutationEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readAll()
}

func (q *Queue) readAll() ([]models.MutationEntry, error) {
	data, err := q.store.Get(queueKey)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []models.MutationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return entries, nil
}

// Len returns the number of pending entries.
func (q *Queue) Len() (int, error) {
	entries, err := q.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes all entries.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clear()
}

func (q *Queue) clear() error {
	if err := q.store.Remove(queueKey); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// ReplaceWith overwrites the queue with exactly the given entries, keeping
// their order.
func (q *Queue) ReplaceWith(entries []models.MutationEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(entries) == 0 {
		return q.clear()
	}
	return q.persist(entries)
}

// Prune removes exactly the entries whose ids are in done, atomically with
// respect to Enqueue. Anything else, including entries appended after the
// caller read its snapshot, stays in order. The replay coordinator uses this
// so a mutation enqueued mid-drain is never lost.
func (q *Queue) Prune(done map[string]bool) error {
	if len(done) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.readAll()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !done[e.ID] {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return q.clear()
	}
	return q.persist(kept)
}

func (q *Queue) persist(entries []models.MutationEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.store.Set(queueKey, data); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}
