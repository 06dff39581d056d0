package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressEmptyHistory(t *testing.T) {
	repo, _, _ := newTestRepository(false, 0)

	summary := repo.Progress(context.Background(), 6)
	assert.Equal(t, 0, summary.TotalSessions)
	assert.Nil(t, summary.LastTrainingDate)
	assert.Empty(t, summary.MonthlyCounts)
	assert.True(t, summary.RefreshOverdue, "No training on record means a refresh is due")
}

func TestProgressSummary(t *testing.T) {
	repo, _, _ := newTestRepository(false, 0)
	ctx := context.Background()
	repo.SetClock(func() time.Time {
		return time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	})

	require.NoError(t, repo.AddSession(ctx, Session{
		ID: "sess_a", FinishedAt: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC), Score: 6, Total: 10,
	}))
	require.NoError(t, repo.AddSession(ctx, Session{
		ID: "sess_b", FinishedAt: time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC), Score: 9, Total: 10,
	}))
	require.NoError(t, repo.AddSession(ctx, Session{
		ID: "sess_c", FinishedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), Score: 10, Total: 10,
	}))

	summary := repo.Progress(ctx, 6)
	assert.Equal(t, 3, summary.TotalSessions)
	require.NotNil(t, summary.LastTrainingDate)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), summary.LastTrainingDate.UTC())
	assert.Equal(t, map[string]int{"2025-05": 2, "2025-06": 1}, summary.MonthlyCounts)
	assert.InDelta(t, 25.0/30.0, summary.AverageScore, 1e-9)
	assert.False(t, summary.RefreshOverdue, "Last session is about a month old")
}

func TestProgressRefreshOverdue(t *testing.T) {
	repo, _, _ := newTestRepository(false, 0)
	ctx := context.Background()
	repo.SetClock(func() time.Time {
		return time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)
	})

	require.NoError(t, repo.AddSession(ctx, Session{
		ID: "sess_old", FinishedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Score: 5, Total: 10,
	}))

	assert.True(t, repo.Progress(ctx, 6).RefreshOverdue)
	assert.False(t, repo.Progress(ctx, 12).RefreshOverdue)
	assert.False(t, repo.Progress(ctx, 0).RefreshOverdue, "Zero interval disables the check")
}

func TestMonthsBetween(t *testing.T) {
	a := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, monthsBetween(a, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, monthsBetween(a, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, monthsBetween(a, time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, monthsBetween(a, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)), "Earlier time clamps to zero")
}
