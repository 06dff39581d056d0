package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

// QueueKey is the key the pending mutation queue is persisted under
const QueueKey = "syncQueue"

// Queue is the durable FIFO of pending mutations. The whole queue is
// persisted on every change, so a crash never loses accepted mutations.
type Queue struct {
	store  store.Store
	logger *loggy.Logger
	mu     gosync.Mutex
}

// NewQueue creates a new queue over the given store
func NewQueue(st store.Store, logger *loggy.Logger) *Queue {
	return &Queue{store: st, logger: logger}
}

// Enqueue appends a mutation to the tail of the queue
func (q *Queue) Enqueue(ctx context.Context, m PendingMutation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.loadLocked(ctx)
	pending = append(pending, m)
	if err := q.store.SetJSON(ctx, QueueKey, pending); err != nil {
		return fmt.Errorf("persisting sync queue: %w", err)
	}

	q.logger.Debug("Queued mutation", "kind", m.Kind, "mutation_id", m.ID, "queue_len", len(pending))
	return nil
}

// Pending returns the queued mutations in FIFO order
func (q *Queue) Pending(ctx context.Context) []PendingMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked(ctx)
}

// Replace overwrites the queue with the surviving mutations after a
// drain pass.
func (q *Queue) Replace(ctx context.Context, pending []PendingMutation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pending == nil {
		pending = []PendingMutation{}
	}
	if err := q.store.SetJSON(ctx, QueueKey, pending); err != nil {
		return fmt.Errorf("persisting sync queue: %w", err)
	}
	return nil
}

// Len returns the number of queued mutations
func (q *Queue) Len(ctx context.Context) int {
	return len(q.Pending(ctx))
}

// loadLocked reads the stored queue. A missing or unreadable value is an
// empty queue; accepted mutations only disappear by delivery or drop.
func (q *Queue) loadLocked(ctx context.Context) []PendingMutation {
	var pending []PendingMutation
	found, err := q.store.GetJSON(ctx, QueueKey, &pending)
	if err != nil {
		q.logger.Error("Failed to load sync queue", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return pending
}
