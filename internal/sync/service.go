package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/resqtap/resqtap/internal/favorites"
	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/profile"
	"github.com/resqtap/resqtap/internal/training"
	"github.com/resqtap/resqtap/internal/ulid"
)

// DefaultMaxRetries is the delivery attempts a mutation gets before it
// is dropped.
const DefaultMaxRetries = 3

// Authenticator reports whether a user credential is present
type Authenticator interface {
	IsLoggedIn(ctx context.Context) bool
}

// Config holds the sync engine settings
type Config struct {
	Enabled     bool
	MaxRetries  int
	PullRetries int
}

// Service orchestrates sync cycles: it drains the pending queue in FIFO
// order, then pulls remote state and merges it into the local
// repositories. Only one cycle runs at a time; overlapping triggers are
// coalesced into the running one.
type Service struct {
	queue     *Queue
	client    *Client
	profiles  *profile.Repository
	favorites *favorites.Repository
	training  *training.Repository
	auth      Authenticator
	logger    *loggy.Logger

	maxRetries  int
	pullRetries int

	online  func(ctx context.Context) bool
	now     func() time.Time
	enabled atomic.Bool
	syncing atomic.Bool
	wg      gosync.WaitGroup
	errs    chan error
}

// NewService creates a new sync service
func NewService(
	queue *Queue,
	client *Client,
	profiles *profile.Repository,
	favs *favorites.Repository,
	train *training.Repository,
	auth Authenticator,
	cfg Config,
	logger *loggy.Logger,
) *Service {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	svc := &Service{
		queue:       queue,
		client:      client,
		profiles:    profiles,
		favorites:   favs,
		training:    train,
		auth:        auth,
		logger:      logger,
		maxRetries:  maxRetries,
		pullRetries: cfg.PullRetries,
		online:      func(ctx context.Context) bool { return true },
		now:         time.Now,
		errs:        make(chan error, 16),
	}
	svc.enabled.Store(cfg.Enabled)
	return svc
}

// SetEnabled turns background sync on or off. Disabling stops cycles;
// mutations still queue so they deliver once sync is re-enabled.
func (s *Service) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether sync cycles are allowed to run
func (s *Service) Enabled() bool {
	return s.enabled.Load()
}

// SetOnline overrides the connectivity probe. The default assumes the
// network is reachable and lets individual requests fail.
func (s *Service) SetOnline(fn func(ctx context.Context) bool) {
	s.online = fn
}

// Errors returns the sink background cycles report failures to. Sends
// never block; when nobody is listening, errors are logged and dropped.
func (s *Service) Errors() <-chan error {
	return s.errs
}

// HandleTrigger starts a sync cycle in the background. The caller is not
// blocked and never sees an error; failures go to the Errors sink.
func (s *Service) HandleTrigger(trigger Trigger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := s.Sync(ctx, trigger); err != nil {
			s.report(fmt.Errorf("sync cycle (%s): %w", trigger, err))
		}
	}()
}

// Wait blocks until all background cycles started by HandleTrigger have
// finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Sync runs one full cycle: drain the queue, then pull and merge remote
// state. It is safe to call from any goroutine; if a cycle is already
// running the call is skipped.
func (s *Service) Sync(ctx context.Context, trigger Trigger) (*Result, error) {
	result := &Result{Trigger: trigger}

	if !s.syncing.CompareAndSwap(false, true) {
		s.logger.Debug("Sync already in progress, skipping", "trigger", trigger)
		result.Skipped = true
		return result, nil
	}
	defer s.syncing.Store(false)

	if !s.enabled.Load() {
		s.logger.Debug("Sync disabled, skipping", "trigger", trigger)
		result.Skipped = true
		return result, nil
	}
	if !s.auth.IsLoggedIn(ctx) {
		s.logger.Debug("Signed out, skipping sync", "trigger", trigger)
		result.Skipped = true
		return result, nil
	}
	if !s.online(ctx) {
		s.logger.Debug("Offline, skipping sync", "trigger", trigger)
		result.Skipped = true
		return result, nil
	}

	s.drain(ctx, result)
	s.pullRemote(ctx, result)

	s.logger.Info("Sync cycle finished",
		"trigger", trigger,
		"delivered", result.Delivered,
		"dropped", result.Dropped,
		"remaining", result.Remaining,
		"pull_errors", len(result.PullErrors))

	return result, nil
}

// drain delivers queued mutations oldest first. Each pass counts one
// attempt per mutation; a mutation that exhausts its attempts is dropped
// so one poisoned payload cannot wedge the queue forever.
func (s *Service) drain(ctx context.Context, result *Result) {
	pending := s.queue.Pending(ctx)
	if len(pending) == 0 {
		return
	}

	var survivors []PendingMutation
	for _, m := range pending {
		if err := s.deliver(ctx, m); err != nil {
			m.Attempts++
			if m.Attempts >= s.maxRetries {
				s.logger.Warn("Dropping mutation after repeated failures",
					"kind", m.Kind, "mutation_id", m.ID, "attempts", m.Attempts, "error", err)
				result.Dropped++
				continue
			}
			s.logger.Debug("Mutation delivery failed, keeping it queued",
				"kind", m.Kind, "mutation_id", m.ID, "attempts", m.Attempts, "error", err)
			survivors = append(survivors, m)
			continue
		}
		result.Delivered++
	}

	if err := s.queue.Replace(ctx, survivors); err != nil {
		s.logger.Error("Failed to persist sync queue after drain", "error", err)
		result.QueueError = fmt.Errorf("queue: %w", err)
	}
	result.Remaining = len(survivors)
}

// deliver pushes one mutation to the API. No internal retries; the
// queue's attempt counter is the only retry mechanism.
func (s *Service) deliver(ctx context.Context, m PendingMutation) error {
	switch m.Kind {
	case KindProfile:
		var p profile.Profile
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return fmt.Errorf("decoding profile payload: %w", err)
		}
		return s.client.PutProfile(ctx, p)

	case KindFavorites:
		var ids []string
		if err := json.Unmarshal(m.Payload, &ids); err != nil {
			return fmt.Errorf("decoding favorites payload: %w", err)
		}
		return s.client.PutFavorites(ctx, ids)

	case KindTrainingSession:
		var sess training.Session
		if err := json.Unmarshal(m.Payload, &sess); err != nil {
			return fmt.Errorf("decoding training payload: %w", err)
		}
		return s.client.PushTrainingSessions(ctx, []training.Session{sess})

	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

// pullRemote fetches and merges remote state. The three entities are
// fault isolated; a failure in one step is recorded and the next step
// still runs.
func (s *Service) pullRemote(ctx context.Context, result *Result) {
	if err := s.pullProfile(ctx); err != nil {
		s.logger.Warn("Profile pull failed", "error", err)
		result.PullErrors = append(result.PullErrors, fmt.Errorf("profile: %w", err))
	}
	if err := s.pullFavorites(ctx); err != nil {
		s.logger.Warn("Favorites pull failed", "error", err)
		result.PullErrors = append(result.PullErrors, fmt.Errorf("favorites: %w", err))
	}
	if err := s.pullTraining(ctx); err != nil {
		s.logger.Warn("Training pull failed", "error", err)
		result.PullErrors = append(result.PullErrors, fmt.Errorf("training: %w", err))
	}
}

// pullProfile resolves the profile by last writer wins on UpdatedAt. The
// losing side is overwritten whole; fields are never merged.
func (s *Service) pullProfile(ctx context.Context) error {
	var remote *profile.Profile
	err := s.withPullRetry(ctx, func() error {
		var fetchErr error
		remote, fetchErr = s.client.GetProfile(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}

	local := s.profiles.Get(ctx)

	if remote == nil {
		if local.IsEmpty() {
			return nil
		}
		return s.client.PutProfile(ctx, local)
	}

	switch {
	case remote.UpdatedAt.After(local.UpdatedAt):
		return s.profiles.Replace(ctx, *remote)
	case local.UpdatedAt.After(remote.UpdatedAt):
		return s.client.PutProfile(ctx, local)
	default:
		return nil
	}
}

// pullFavorites merges by set union, so a favorite added on any device
// survives. Removals only propagate through queued mutations.
func (s *Service) pullFavorites(ctx context.Context) error {
	var remote []string
	err := s.withPullRetry(ctx, func() error {
		var fetchErr error
		remote, fetchErr = s.client.GetFavorites(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}

	local := s.favorites.All()

	union := make(map[string]struct{}, len(local)+len(remote))
	for _, id := range local {
		union[id] = struct{}{}
	}
	for _, id := range remote {
		union[id] = struct{}{}
	}
	merged := make([]string, 0, len(union))
	for id := range union {
		merged = append(merged, id)
	}
	sort.Strings(merged)

	if len(merged) != len(local) {
		if err := s.favorites.Replace(ctx, merged); err != nil {
			return err
		}
	}
	if len(merged) != len(remote) {
		return s.client.PutFavorites(ctx, merged)
	}
	return nil
}

// pullTraining merges local and remote sessions by identity, preferring
// the local copy on conflict, and persists the result locally. Sessions
// are only pushed through queued mutations.
func (s *Service) pullTraining(ctx context.Context) error {
	var remote []training.Session
	err := s.withPullRetry(ctx, func() error {
		var fetchErr error
		remote, fetchErr = s.client.ListTrainingSessions(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}
	if len(remote) == 0 {
		return nil
	}

	local := s.training.Sessions(ctx)

	seen := make(map[string]struct{}, len(local))
	merged := make([]training.Session, 0, len(local)+len(remote))
	for _, sess := range local {
		if key := sess.MergeKey(); key != "" {
			seen[key] = struct{}{}
		}
		merged = append(merged, sess)
	}
	for _, sess := range remote {
		key := sess.MergeKey()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, sess)
	}

	if len(merged) == len(local) {
		return nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].FinishedAt.After(merged[j].FinishedAt)
	})

	return s.training.ReplaceSessions(ctx, merged)
}

// withPullRetry retries a pull fetch with exponential backoff. Client
// errors are permanent; the server will not change its mind.
func (s *Service) withPullRetry(ctx context.Context, op func() error) error {
	if s.pullRetries <= 0 {
		return op()
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsClientError() {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.pullRetries)), ctx)
	return backoff.Retry(wrapped, policy)
}

// EnqueueProfile queues a profile snapshot and kicks a background cycle
func (s *Service) EnqueueProfile(ctx context.Context, p profile.Profile) {
	s.enqueue(ctx, KindProfile, p, p.UpdatedAt)
}

// EnqueueFavorites queues a favorites snapshot and kicks a background
// cycle.
func (s *Service) EnqueueFavorites(ctx context.Context, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	s.enqueue(ctx, KindFavorites, ids, s.now().UTC())
}

// EnqueueTrainingSession queues a completed session and kicks a
// background cycle.
func (s *Service) EnqueueTrainingSession(ctx context.Context, sess training.Session) {
	s.enqueue(ctx, KindTrainingSession, sess, sess.FinishedAt)
}

func (s *Service) enqueue(ctx context.Context, kind MutationKind, payload any, queuedAt time.Time) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.report(fmt.Errorf("encoding %s mutation: %w", kind, err))
		return
	}
	if queuedAt.IsZero() {
		queuedAt = s.now().UTC()
	}

	m := PendingMutation{
		ID:       ulid.MutationID(),
		Kind:     kind,
		Payload:  raw,
		QueuedAt: queuedAt,
	}
	if err := s.queue.Enqueue(ctx, m); err != nil {
		s.report(fmt.Errorf("queueing %s mutation: %w", kind, err))
		return
	}

	s.HandleTrigger(TriggerMutation)
}

// PendingMutations returns the queued mutations, oldest first
func (s *Service) PendingMutations(ctx context.Context) []PendingMutation {
	return s.queue.Pending(ctx)
}

// QueueLen returns the number of queued mutations
func (s *Service) QueueLen(ctx context.Context) int {
	return s.queue.Len(ctx)
}

// report sends to the error sink without blocking
func (s *Service) report(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Error("Sync error (sink full)", "error", err)
	}
}
