package training

import (
	"context"
	"time"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

// StorageKey is the key the training history is persisted under. It is
// the single source of truth; nothing else writes this key.
const StorageKey = "trainingHistory"

// DefaultHistoryLimit caps the stored history at the newest sessions
const DefaultHistoryLimit = 100

// Syncer queues a completed session for background delivery to the
// remote API. Implemented by the sync service.
type Syncer interface {
	EnqueueTrainingSession(ctx context.Context, s Session)
}

// Authenticator reports whether a user credential is present
type Authenticator interface {
	IsLoggedIn(ctx context.Context) bool
}

// Repository owns the training history
type Repository struct {
	store  store.Store
	auth   Authenticator
	logger *loggy.Logger
	syncer Syncer
	limit  int
	now    func() time.Time
}

// NewRepository creates a new training history repository. A limit of
// zero or less uses DefaultHistoryLimit.
func NewRepository(st store.Store, auth Authenticator, logger *loggy.Logger, limit int) *Repository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Repository{
		store:  st,
		auth:   auth,
		logger: logger,
		limit:  limit,
		now:    time.Now,
	}
}

// SetSyncer late-binds the sync service. Until it is set, sessions are
// local-only.
func (r *Repository) SetSyncer(s Syncer) {
	r.syncer = s
}

// SetClock overrides the timestamp source, used by tests
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// AddSession validates and persists a completed session at the front of
// the history (newest first), truncating to the configured limit. When
// the user is signed in, the session is queued for sync.
func (r *Repository) AddSession(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		r.logger.Warn("Rejected training session", "session_id", s.ID, "error", err)
		return err
	}

	history := r.load(ctx)
	history.Sessions = append([]Session{s}, history.Sessions...)
	if len(history.Sessions) > r.limit {
		history.Sessions = history.Sessions[:r.limit]
	}

	if err := r.save(ctx, &history); err != nil {
		return err
	}

	if r.syncer != nil && r.auth.IsLoggedIn(ctx) {
		r.syncer.EnqueueTrainingSession(ctx, s)
	}

	return nil
}

// Sessions returns all stored sessions, newest first
func (r *Repository) Sessions(ctx context.Context) []Session {
	return r.load(ctx).Sessions
}

// SessionCount returns the number of stored sessions
func (r *Repository) SessionCount(ctx context.Context) int {
	return len(r.load(ctx).Sessions)
}

// LastSession returns the most recent session, or nil if there is none
func (r *Repository) LastSession(ctx context.Context) *Session {
	sessions := r.load(ctx).Sessions
	if len(sessions) == 0 {
		return nil
	}
	return &sessions[0]
}

// ReplaceSessions overwrites the stored history with a merged session
// list. The pull merge uses it; it does not queue a sync mutation.
func (r *Repository) ReplaceSessions(ctx context.Context, sessions []Session) error {
	history := History{Sessions: sessions}
	return r.save(ctx, &history)
}

// ClearHistory removes all stored sessions
func (r *Repository) ClearHistory(ctx context.Context) error {
	return r.save(ctx, &History{Sessions: []Session{}})
}

// load returns the stored history, or an empty history if nothing is
// stored or the stored value is unreadable. It never fails the caller.
func (r *Repository) load(ctx context.Context) History {
	var h History
	found, err := r.store.GetJSON(ctx, StorageKey, &h)
	if err != nil {
		r.logger.Error("Failed to load training history", "error", err)
		return History{}
	}
	if !found || h.Sessions == nil {
		return History{}
	}
	return h
}

// save stamps LastUpdated and persists the history
func (r *Repository) save(ctx context.Context, h *History) error {
	now := r.now().UTC()
	h.LastUpdated = &now
	return r.store.SetJSON(ctx, StorageKey, h)
}
