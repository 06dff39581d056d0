package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

type fakeAuth struct {
	loggedIn bool
}

func (a *fakeAuth) IsLoggedIn(ctx context.Context) bool {
	return a.loggedIn
}

type recordingSyncer struct {
	profiles []Profile
}

func (s *recordingSyncer) EnqueueProfile(ctx context.Context, p Profile) {
	s.profiles = append(s.profiles, p)
}

func newTestRepository(loggedIn bool) (*Repository, *store.MemoryStore, *recordingSyncer) {
	st := store.NewMemoryStore()
	syncer := &recordingSyncer{}
	repo := NewRepository(st, &fakeAuth{loggedIn: loggedIn}, loggy.NewNoopLogger())
	repo.SetSyncer(syncer)
	return repo, st, syncer
}

func TestGetEmptyProfile(t *testing.T) {
	repo, _, _ := newTestRepository(false)

	p := repo.Get(context.Background())
	assert.True(t, p.IsEmpty(), "Missing profile should read back as empty")
}

func TestSaveThenGet(t *testing.T) {
	repo, _, _ := newTestRepository(false)
	ctx := context.Background()

	height := 180.0
	saved, err := repo.Save(ctx, Profile{
		BloodType: "O+",
		Height:    &height,
		Units:     UnitsMetric,
		Allergies: []string{"penicillin"},
	})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero(), "Save should stamp UpdatedAt")

	got := repo.Get(ctx)
	assert.Equal(t, saved, got, "Stored profile should round-trip")
}

func TestSaveStampsBeforeEnqueue(t *testing.T) {
	repo, _, syncer := newTestRepository(true)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return at })

	saved, err := repo.Save(ctx, Profile{BloodType: "A+"})
	require.NoError(t, err)

	require.Len(t, syncer.profiles, 1, "Signed-in save should enqueue")
	assert.Equal(t, at, syncer.profiles[0].UpdatedAt, "Queued payload and stored snapshot must agree")
	assert.Equal(t, saved, syncer.profiles[0])
}

func TestSaveSkipsEnqueueWhenSignedOut(t *testing.T) {
	repo, _, syncer := newTestRepository(false)

	_, err := repo.Save(context.Background(), Profile{BloodType: "B-"})
	require.NoError(t, err)
	assert.Empty(t, syncer.profiles, "Signed-out save should not enqueue")
}

func TestReplaceKeepsTimestamp(t *testing.T) {
	repo, _, syncer := newTestRepository(true)
	ctx := context.Background()

	remote := Profile{
		BloodType: "AB+",
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Replace(ctx, remote))

	got := repo.Get(ctx)
	assert.Equal(t, remote.UpdatedAt, got.UpdatedAt, "Replace must not restamp UpdatedAt")
	assert.Empty(t, syncer.profiles, "Replace must not enqueue")
}

func TestGetToleratesCorruptValue(t *testing.T) {
	repo, st, _ := newTestRepository(false)

	st.SetRaw(StorageKey, `{broken`)
	p := repo.Get(context.Background())
	assert.True(t, p.IsEmpty(), "Corrupt stored profile should fall back to empty")
}

func TestContactPhone(t *testing.T) {
	assert.Equal(t, "+1 555 0100", ContactPhone("Jane Doe: +1 555 0100"))
	assert.Equal(t, "5550100", ContactPhone("5550100"))
	assert.Equal(t, "", ContactPhone(""))
	assert.Equal(t, "+15550100", CleanPhone("+1 (555) 0100"))
}
