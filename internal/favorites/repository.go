// Package favorites manages the set of bookmarked emergency entries.
// The set is mirrored in memory for fast membership checks and persisted
// whole on every change.
package favorites

import (
	"context"
	"sort"
	"sync"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

// StorageKey is the key the favorites set is persisted under
const StorageKey = "favorites"

// Syncer queues a favorites snapshot for background delivery to the
// remote API. Implemented by the sync service.
type Syncer interface {
	EnqueueFavorites(ctx context.Context, ids []string)
}

// Authenticator reports whether a user credential is present
type Authenticator interface {
	IsLoggedIn(ctx context.Context) bool
}

// Repository owns the favorites set. Load must be called before use;
// the mirror is never populated implicitly.
type Repository struct {
	store  store.Store
	auth   Authenticator
	logger *loggy.Logger
	syncer Syncer

	mu          sync.Mutex
	ids         map[string]struct{}
	loaded      bool
	subscribers []func([]string)
}

// NewRepository creates a new favorites repository
func NewRepository(st store.Store, auth Authenticator, logger *loggy.Logger) *Repository {
	return &Repository{
		store:  st,
		auth:   auth,
		logger: logger,
		ids:    make(map[string]struct{}),
	}
}

// SetSyncer late-binds the sync service. Until it is set, toggles are
// local-only.
func (r *Repository) SetSyncer(s Syncer) {
	r.syncer = s
}

// Load populates the in-memory mirror from storage. Callers wait for it
// at startup instead of racing an implicit background load. A missing or
// corrupt stored value yields an empty set.
func (r *Repository) Load(ctx context.Context) error {
	var stored []string
	found, err := r.store.GetJSON(ctx, StorageKey, &stored)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.ids = make(map[string]struct{}, len(stored))
	if found {
		for _, id := range stored {
			r.ids[id] = struct{}{}
		}
	}
	r.loaded = true
	r.mu.Unlock()

	return nil
}

// Toggle adds id if absent and removes it if present, persists the whole
// set, notifies subscribers, and queues the new set for sync when the
// user is signed in. It returns whether id is a favorite afterwards.
func (r *Repository) Toggle(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	if _, ok := r.ids[id]; ok {
		delete(r.ids, id)
	} else {
		r.ids[id] = struct{}{}
	}
	_, nowFavorite := r.ids[id]
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.SetJSON(ctx, StorageKey, snapshot); err != nil {
		return nowFavorite, err
	}

	r.notify(snapshot)

	if r.syncer != nil && r.auth.IsLoggedIn(ctx) {
		r.syncer.EnqueueFavorites(ctx, snapshot)
	}

	return nowFavorite, nil
}

// Replace overwrites the whole set, persists it, and notifies
// subscribers. The pull merge uses it to adopt the merged set; it does
// not queue a sync mutation.
func (r *Repository) Replace(ctx context.Context, ids []string) error {
	r.mu.Lock()
	r.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.SetJSON(ctx, StorageKey, snapshot); err != nil {
		return err
	}

	r.notify(snapshot)
	return nil
}

// All returns the favorite IDs, sorted for stable output
func (r *Repository) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Contains reports whether id is a favorite
func (r *Repository) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Count returns the number of favorites
func (r *Repository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Subscribe registers a callback fired with the new set after every
// change, so other views can refresh counts and filters.
func (r *Repository) Subscribe(fn func(ids []string)) {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}

func (r *Repository) snapshotLocked() []string {
	snapshot := make([]string, 0, len(r.ids))
	for id := range r.ids {
		snapshot = append(snapshot, id)
	}
	sort.Strings(snapshot)
	return snapshot
}

func (r *Repository) notify(ids []string) {
	r.mu.Lock()
	subscribers := make([]func([]string), len(r.subscribers))
	copy(subscribers, r.subscribers)
	r.mu.Unlock()

	for _, fn := range subscribers {
		fn(ids)
	}
}
