// Package onboarding tracks first-run state: whether the intro flow has
// been completed and, if not, which step the user left off at.
package onboarding

import (
	"context"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/store"
)

// Storage keys for the onboarding state
const (
	CompletedKey = "onboardingCompleted"
	StepKey      = "onboardingStep"
)

// Service reads and writes the onboarding state
type Service struct {
	store  store.Store
	logger *loggy.Logger
}

// NewService creates a new onboarding service
func NewService(st store.Store, logger *loggy.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Completed reports whether the intro flow has been finished. A missing
// or unreadable value means not completed.
func (s *Service) Completed(ctx context.Context) bool {
	var completed bool
	found, err := s.store.GetJSON(ctx, CompletedKey, &completed)
	if err != nil {
		s.logger.Error("Failed to load onboarding state", "error", err)
		return false
	}
	return found && completed
}

// SetCompleted marks the intro flow as finished or resets it
func (s *Service) SetCompleted(ctx context.Context, completed bool) error {
	return s.store.SetJSON(ctx, CompletedKey, completed)
}

// Step returns the saved intro step, or zero if none is saved
func (s *Service) Step(ctx context.Context) int {
	var step int
	found, err := s.store.GetJSON(ctx, StepKey, &step)
	if err != nil {
		s.logger.Error("Failed to load onboarding step", "error", err)
		return 0
	}
	if !found || step < 0 {
		return 0
	}
	return step
}

// SetStep saves the intro step so the flow can resume there
func (s *Service) SetStep(ctx context.Context, step int) error {
	return s.store.SetJSON(ctx, StepKey, step)
}

// Reset clears both the completion flag and the saved step
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Remove(ctx, CompletedKey); err != nil {
		return err
	}
	return s.store.Remove(ctx, StepKey)
}
