package training

import (
	"context"
	"time"
)

// Progress summarizes the stored history for the stats views
type Progress struct {
	TotalSessions    int            `json:"totalSessions"`
	LastTrainingDate *time.Time     `json:"lastTrainingDate"`
	MonthlyCounts    map[string]int `json:"monthlyCounts"`
	AverageScore     float64        `json:"averageScore"`
	RefreshOverdue   bool           `json:"refreshOverdue"`
}

// Progress derives a summary from the stored history. refreshMonths is
// the interval after which skills are considered stale; zero or less
// disables the overdue check.
func (r *Repository) Progress(ctx context.Context, refreshMonths int) Progress {
	sessions := r.load(ctx).Sessions

	summary := Progress{
		TotalSessions: len(sessions),
		MonthlyCounts: make(map[string]int),
	}
	if len(sessions) == 0 {
		summary.RefreshOverdue = refreshMonths > 0
		return summary
	}

	var scoreSum, totalSum int
	for i := range sessions {
		s := &sessions[i]
		summary.MonthlyCounts[s.FinishedAt.UTC().Format("2006-01")]++
		scoreSum += s.Score
		totalSum += s.Total

		if summary.LastTrainingDate == nil || s.FinishedAt.After(*summary.LastTrainingDate) {
			finished := s.FinishedAt
			summary.LastTrainingDate = &finished
		}
	}

	if totalSum > 0 {
		summary.AverageScore = float64(scoreSum) / float64(totalSum)
	}

	if refreshMonths > 0 && summary.LastTrainingDate != nil {
		summary.RefreshOverdue = monthsBetween(*summary.LastTrainingDate, r.now()) >= refreshMonths
	}

	return summary
}

// monthsBetween counts whole calendar months from a to b
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	if b.Before(a) {
		return 0
	}
	months := int(b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
