package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqtap/resqtap/internal/favorites"
	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/profile"
	"github.com/resqtap/resqtap/internal/store"
	"github.com/resqtap/resqtap/internal/training"
)

type fakeAuth struct {
	loggedIn bool
}

func (a *fakeAuth) IsLoggedIn(ctx context.Context) bool {
	return a.loggedIn
}

// fakeRemote is an in-memory stand-in for the sync API server
type fakeRemote struct {
	mu       gosync.Mutex
	profile  *profile.Profile
	favs     []string
	sessions []training.Session

	putProfileCalls   int
	putFavoritesCalls int
	lastFavoritesPut  []string
	pushedSessions    []training.Session

	failProfileGet bool
	failProfilePut bool
	failAllWrites  bool

	blockProfileGet chan struct{} // When set, GET /profile waits on it
	profileGetBusy  chan struct{}

	srv *httptest.Server
}

func newFakeRemote() *fakeRemote {
	r := &fakeRemote{}
	r.srv = httptest.NewServer(http.HandlerFunc(r.handle))
	return r
}

func (r *fakeRemote) handle(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	blockGet := r.blockProfileGet
	busy := r.profileGetBusy
	r.mu.Unlock()

	switch req.URL.Path {
	case "/profile":
		switch req.Method {
		case http.MethodGet:
			if blockGet != nil {
				if busy != nil {
					busy <- struct{}{}
				}
				<-blockGet
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.failProfileGet {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			if r.profile == nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(r.profile)
		case http.MethodPut:
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.failProfilePut || r.failAllWrites {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			var p profile.Profile
			json.NewDecoder(req.Body).Decode(&p)
			r.profile = &p
			r.putProfileCalls++
			w.WriteHeader(http.StatusNoContent)
		}

	case "/favorites":
		r.mu.Lock()
		defer r.mu.Unlock()
		switch req.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(favoritesEnvelope{Favorites: append([]string{}, r.favs...)})
		case http.MethodPut:
			if r.failAllWrites {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			var env favoritesEnvelope
			json.NewDecoder(req.Body).Decode(&env)
			r.favs = env.Favorites
			r.putFavoritesCalls++
			r.lastFavoritesPut = env.Favorites
			w.WriteHeader(http.StatusNoContent)
		}

	case "/training/sessions":
		r.mu.Lock()
		defer r.mu.Unlock()
		switch req.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(sessionsEnvelope{Sessions: append([]training.Session{}, r.sessions...)})
		case http.MethodPost:
			if r.failAllWrites {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			var pushed []training.Session
			json.NewDecoder(req.Body).Decode(&pushed)
			r.sessions = append(r.sessions, pushed...)
			r.pushedSessions = append(r.pushedSessions, pushed...)
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		http.NotFound(w, req)
	}
}

type harness struct {
	svc       *Service
	queue     *Queue
	profiles  *profile.Repository
	favorites *favorites.Repository
	training  *training.Repository
	remote    *fakeRemote
}

func newHarness(t *testing.T, remote *fakeRemote, loggedIn bool) *harness {
	t.Cleanup(remote.srv.Close)

	st := store.NewMemoryStore()
	logger := loggy.NewNoopLogger()
	auth := &fakeAuth{loggedIn: loggedIn}

	profiles := profile.NewRepository(st, auth, logger)
	favs := favorites.NewRepository(st, auth, logger)
	require.NoError(t, favs.Load(context.Background()))
	train := training.NewRepository(st, auth, logger, 0)

	queue := NewQueue(st, logger)
	client := newTestClient(remote.srv.URL, "tok")
	svc := NewService(queue, client, profiles, favs, train, auth, Config{Enabled: true, MaxRetries: 3}, logger)

	profiles.SetSyncer(svc)
	favs.SetSyncer(svc)
	train.SetSyncer(svc)

	return &harness{svc: svc, queue: queue, profiles: profiles, favorites: favs, training: train, remote: remote}
}

func TestSyncSkipsWhenSignedOut(t *testing.T) {
	h := newHarness(t, newFakeRemote(), false)

	result, err := h.svc.Sync(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestSyncSkipsWhenOffline(t *testing.T) {
	h := newHarness(t, newFakeRemote(), true)
	h.svc.SetOnline(func(ctx context.Context) bool { return false })

	result, err := h.svc.Sync(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, h.remote.putProfileCalls)
}

func TestSyncSkipsWhenDisabled(t *testing.T) {
	h := newHarness(t, newFakeRemote(), true)
	h.svc.SetEnabled(false)

	result, err := h.svc.Sync(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, h.svc.Enabled())
}

func TestDisabledSyncQueuesWithoutDelivering(t *testing.T) {
	h := newHarness(t, newFakeRemote(), true)
	ctx := context.Background()
	h.svc.SetEnabled(false)

	_, err := h.favorites.Toggle(ctx, "cpr")
	require.NoError(t, err)
	h.svc.Wait()

	assert.Empty(t, h.remote.favs, "Nothing reaches the server while sync is disabled")
	assert.Equal(t, 1, h.queue.Len(ctx), "The mutation stays queued for later")

	// Re-enabling delivers the queued mutation
	h.svc.SetEnabled(true)
	result, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, []string{"cpr"}, h.remote.lastFavoritesPut)
}

func TestOfflineMutationsDrainInOneCycle(t *testing.T) {
	h := newHarness(t, newFakeRemote(), true)
	ctx := context.Background()

	// Everything queued while offline stays queued
	h.svc.SetOnline(func(ctx context.Context) bool { return false })

	_, err := h.profiles.Save(ctx, profile.Profile{BloodType: "A+"})
	require.NoError(t, err)
	_, err = h.favorites.Toggle(ctx, "cpr")
	require.NoError(t, err)
	_, err = h.favorites.Toggle(ctx, "burns")
	require.NoError(t, err)
	require.NoError(t, h.training.AddSession(ctx, training.Session{
		ID: "sess_1", FinishedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), Score: 8, Total: 10,
	}))

	h.svc.Wait()
	require.Equal(t, 4, h.queue.Len(ctx), "Offline mutations accumulate in order")

	// Back online, one cycle delivers all of them
	h.svc.SetOnline(func(ctx context.Context) bool { return true })
	result, err := h.svc.Sync(ctx, TriggerOnline)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Delivered)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 0, h.queue.Len(ctx))

	require.NotNil(t, h.remote.profile)
	assert.Equal(t, "A+", h.remote.profile.BloodType)
	assert.Equal(t, []string{"burns", "cpr"}, h.remote.lastFavoritesPut)
	require.Len(t, h.remote.pushedSessions, 1)
	assert.Equal(t, "sess_1", h.remote.pushedSessions[0].ID)
}

func TestFailedMutationKeptThenDropped(t *testing.T) {
	remote := newFakeRemote()
	remote.failAllWrites = true
	h := newHarness(t, remote, true)
	ctx := context.Background()

	payload, _ := json.Marshal(profile.Profile{BloodType: "B+"})
	require.NoError(t, h.queue.Enqueue(ctx, PendingMutation{
		ID: "mut_1", Kind: KindProfile, Payload: payload, QueuedAt: time.Now(),
	}))

	// Each cycle counts exactly one attempt
	for i := 1; i < DefaultMaxRetries; i++ {
		result, err := h.svc.Sync(ctx, TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Delivered)
		assert.Equal(t, 0, result.Dropped)
		pending := h.queue.Pending(ctx)
		require.Len(t, pending, 1)
		assert.Equal(t, i, pending[0].Attempts)
	}

	result, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dropped, "Third failure exhausts the attempts")
	assert.Equal(t, 0, h.queue.Len(ctx))
}

func TestFailedMutationDoesNotBlockOthers(t *testing.T) {
	remote := newFakeRemote()
	remote.failProfilePut = true
	h := newHarness(t, remote, true)
	ctx := context.Background()

	profilePayload, _ := json.Marshal(profile.Profile{BloodType: "B+"})
	favPayload, _ := json.Marshal([]string{"cpr"})
	require.NoError(t, h.queue.Enqueue(ctx, PendingMutation{ID: "mut_p", Kind: KindProfile, Payload: profilePayload}))
	require.NoError(t, h.queue.Enqueue(ctx, PendingMutation{ID: "mut_f", Kind: KindFavorites, Payload: favPayload}))

	result, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered, "Favorites mutation delivers despite the profile failure")
	assert.Equal(t, 1, result.Remaining)
	pending := h.queue.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "mut_p", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
}

// failingStore fails queue writes on demand while passing everything
// else through.
type failingStore struct {
	store.Store
	failQueue bool
}

func (s *failingStore) SetJSON(ctx context.Context, key string, value any) error {
	if s.failQueue && key == QueueKey {
		return errors.New("disk full")
	}
	return s.Store.SetJSON(ctx, key, value)
}

func TestDrainQueuePersistFailureReported(t *testing.T) {
	remote := newFakeRemote()
	t.Cleanup(remote.srv.Close)
	ctx := context.Background()

	st := store.NewMemoryStore()
	flaky := &failingStore{Store: st}
	logger := loggy.NewNoopLogger()
	authSvc := &fakeAuth{loggedIn: true}

	profiles := profile.NewRepository(st, authSvc, logger)
	favs := favorites.NewRepository(st, authSvc, logger)
	require.NoError(t, favs.Load(ctx))
	train := training.NewRepository(st, authSvc, logger, 0)

	queue := NewQueue(flaky, logger)
	svc := NewService(queue, newTestClient(remote.srv.URL, "tok"), profiles, favs, train, authSvc,
		Config{Enabled: true, MaxRetries: 3}, logger)

	payload, _ := json.Marshal([]string{"cpr"})
	require.NoError(t, queue.Enqueue(ctx, PendingMutation{ID: "mut_1", Kind: KindFavorites, Payload: payload}))
	flaky.failQueue = true

	result, err := svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	require.Error(t, result.QueueError, "The queue persist failure is reported on its own")
	assert.Empty(t, result.PullErrors, "A drain-side storage error is not a pull error")
}

func TestPullProfileRemoteNewerWins(t *testing.T) {
	remote := newFakeRemote()
	remote.profile = &profile.Profile{
		BloodType: "A+",
		UpdatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	require.NoError(t, h.profiles.Replace(ctx, profile.Profile{
		BloodType: "O-",
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, "A+", h.profiles.Get(ctx).BloodType, "Newer remote replaces local whole")
	assert.Equal(t, 0, remote.putProfileCalls)
}

func TestPullProfileLocalNewerPushed(t *testing.T) {
	remote := newFakeRemote()
	remote.profile = &profile.Profile{
		BloodType: "A+",
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	require.NoError(t, h.profiles.Replace(ctx, profile.Profile{
		BloodType: "O-",
		UpdatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, "O-", h.profiles.Get(ctx).BloodType, "Local copy stays")
	assert.Equal(t, 1, remote.putProfileCalls)
	assert.Equal(t, "O-", remote.profile.BloodType)
}

func TestPullProfileEqualTimestampsNoop(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	remote := newFakeRemote()
	remote.profile = &profile.Profile{BloodType: "A+", UpdatedAt: stamp}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	require.NoError(t, h.profiles.Replace(ctx, profile.Profile{BloodType: "O-", UpdatedAt: stamp}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, "O-", h.profiles.Get(ctx).BloodType, "A timestamp tie writes neither side")
	assert.Equal(t, 0, remote.putProfileCalls)
	assert.Equal(t, "A+", remote.profile.BloodType)
}

func TestPullProfileEmptyRemoteGetsLocal(t *testing.T) {
	h := newHarness(t, newFakeRemote(), true)
	ctx := context.Background()

	require.NoError(t, h.profiles.Replace(ctx, profile.Profile{
		BloodType: "AB+",
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	require.NotNil(t, h.remote.profile)
	assert.Equal(t, "AB+", h.remote.profile.BloodType)
}

func TestPullFavoritesUnion(t *testing.T) {
	remote := newFakeRemote()
	remote.favs = []string{"burns", "choking"}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	require.NoError(t, h.favorites.Replace(ctx, []string{"burns", "cpr"}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	union := []string{"burns", "choking", "cpr"}
	assert.Equal(t, union, h.favorites.All(), "Local adopts the union")
	assert.Equal(t, union, remote.favs, "Remote adopts the union")
}

func TestPullTrainingMergeDedupes(t *testing.T) {
	older := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	remote := newFakeRemote()
	remote.sessions = []training.Session{
		{ID: "sess_shared", FinishedAt: newer, Score: 9, Total: 10},
		{ID: "sess_remote", FinishedAt: older, Score: 6, Total: 10},
	}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	require.NoError(t, h.training.ReplaceSessions(ctx, []training.Session{
		{ID: "sess_shared", FinishedAt: newer, Score: 9, Total: 10},
	}))

	_, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	sessions := h.training.Sessions(ctx)
	require.Len(t, sessions, 2, "Shared session is merged once")
	assert.Equal(t, "sess_shared", sessions[0].ID, "Newest first")
	assert.Equal(t, "sess_remote", sessions[1].ID)
	assert.Empty(t, h.remote.pushedSessions, "Pull merge never pushes sessions")
}

func TestPullFaultIsolation(t *testing.T) {
	remote := newFakeRemote()
	remote.failProfileGet = true
	remote.favs = []string{"bleeding"}
	h := newHarness(t, remote, true)
	ctx := context.Background()

	result, err := h.svc.Sync(ctx, TriggerManual)
	require.NoError(t, err)

	require.Len(t, result.PullErrors, 1, "Only the profile step fails")
	assert.Contains(t, h.favorites.All(), "bleeding", "Favorites still merge")
}

func TestConcurrentSyncSkipped(t *testing.T) {
	remote := newFakeRemote()
	remote.blockProfileGet = make(chan struct{})
	remote.profileGetBusy = make(chan struct{}, 1)
	h := newHarness(t, remote, true)
	ctx := context.Background()

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := h.svc.Sync(ctx, TriggerForeground)
		assert.NoError(t, err)
		assert.False(t, result.Skipped)
	}()

	<-remote.profileGetBusy

	result, err := h.svc.Sync(ctx, TriggerMutation)
	require.NoError(t, err)
	assert.True(t, result.Skipped, "A second cycle while one runs is coalesced")

	close(remote.blockProfileGet)
	wg.Wait()
}
