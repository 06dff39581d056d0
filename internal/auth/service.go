// Package auth provides the opaque credential provider. Token exchange
// happens outside the app; this service only stores the resulting bearer
// token and answers whether the user is currently signed in.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/resqtap/resqtap/internal/config"
	"github.com/resqtap/resqtap/internal/loggy"
)

// Service manages the locally persisted credential
type Service struct {
	settings config.SettingsRepository
	logger   *loggy.Logger

	mu       sync.Mutex
	onChange []func()
}

// NewService creates a new auth service
func NewService(settings config.SettingsRepository, logger *loggy.Logger) *Service {
	return &Service{
		settings: settings,
		logger:   logger,
	}
}

// IsLoggedIn reports whether a credential is currently stored. Lookup
// failures are treated as signed-out; the app keeps working offline.
func (s *Service) IsLoggedIn(ctx context.Context) bool {
	return s.Token(ctx) != ""
}

// Token returns the stored bearer token, or empty if signed out
func (s *Service) Token(ctx context.Context) string {
	token, err := s.settings.GetSetting(ctx, config.SettingAuthToken)
	if err != nil {
		s.logger.Error("Failed to read auth token", "error", err)
		return ""
	}
	return token
}

// SetToken stores a new credential and enables sync. An empty token is
// equivalent to Logout.
func (s *Service) SetToken(ctx context.Context, token string) error {
	if err := s.settings.SetSetting(ctx, config.SettingAuthToken, token); err != nil {
		return fmt.Errorf("saving auth token: %w", err)
	}

	enabledStr := "false"
	if token != "" {
		enabledStr = "true"
	}
	if err := s.settings.SetSetting(ctx, config.SettingSyncEnabled, enabledStr); err != nil {
		s.logger.Warn("Failed to save sync enabled status", "error", err)
	}

	s.notify()
	return nil
}

// Logout clears the stored credential
func (s *Service) Logout(ctx context.Context) error {
	if err := s.SetToken(ctx, ""); err != nil {
		return err
	}
	s.logger.Info("Signed out")
	return nil
}

// OnChange registers a callback fired whenever the authentication state
// changes. The sync engine uses this as its auth-changed trigger.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Service) notify() {
	s.mu.Lock()
	callbacks := make([]func(), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
