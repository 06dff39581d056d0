package profile

import (
	"context"
	"time"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

// StorageKey is the key the profile is persisted under
const StorageKey = "profile"

// Syncer queues a profile snapshot for background delivery to the
// remote API. Implemented by the sync service.
type Syncer interface {
	EnqueueProfile(ctx context.Context, p Profile)
}

// Authenticator reports whether a user credential is present
type Authenticator interface {
	IsLoggedIn(ctx context.Context) bool
}

// Repository owns the shape and persistence of the health profile
type Repository struct {
	store  store.Store
	auth   Authenticator
	logger *loggy.Logger
	syncer Syncer
	now    func() time.Time
}

// NewRepository creates a new profile repository
func NewRepository(st store.Store, auth Authenticator, logger *loggy.Logger) *Repository {
	return &Repository{
		store:  st,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// SetSyncer late-binds the sync service. Until it is set, saves are
// local-only.
func (r *Repository) SetSyncer(s Syncer) {
	r.syncer = s
}

// SetClock overrides the timestamp source, used by tests
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// Get returns the stored profile, or a zero-value profile if nothing is
// stored or the stored value is unreadable. It never fails the caller.
func (r *Repository) Get(ctx context.Context) Profile {
	var p Profile
	found, err := r.store.GetJSON(ctx, StorageKey, &p)
	if err != nil {
		r.logger.Error("Failed to load profile", "error", err)
		return Profile{}
	}
	if !found {
		return Profile{}
	}
	return p
}

// Save stamps UpdatedAt, persists the profile, and queues it for sync
// when the user is signed in. The returned profile carries the stamped
// timestamp, so the stored snapshot and the queued payload agree.
func (r *Repository) Save(ctx context.Context, p Profile) (Profile, error) {
	p.UpdatedAt = r.now().UTC()

	if err := r.store.SetJSON(ctx, StorageKey, &p); err != nil {
		return Profile{}, err
	}

	if r.syncer != nil && r.auth.IsLoggedIn(ctx) {
		r.syncer.EnqueueProfile(ctx, p)
	}

	return p, nil
}

// Replace persists a profile verbatim, keeping its UpdatedAt and without
// queuing a sync mutation. The pull merge uses it to adopt remote state.
func (r *Repository) Replace(ctx context.Context, p Profile) error {
	return r.store.SetJSON(ctx, StorageKey, &p)
}
