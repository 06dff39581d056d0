// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/auth"
	"github.com/resqtap/resqtap/internal/config"
	"github.com/resqtap/resqtap/internal/database"
	"github.com/resqtap/resqtap/internal/favorites"
	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/onboarding"
	"github.com/resqtap/resqtap/internal/profile"
	"github.com/resqtap/resqtap/internal/store"
	"github.com/resqtap/resqtap/internal/sync"
	"github.com/resqtap/resqtap/internal/training"
)

// App represents the application instance with its dependencies
type App struct {
	Config     *config.Config
	Store      store.Store
	Settings   config.SettingsRepository
	Auth       *auth.Service
	Profile    *profile.Repository
	Favorites  *favorites.Repository
	Training   *training.Repository
	Onboarding *onboarding.Service
	Sync       *sync.Service
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
	)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	app, err := initServices(cfg, db)
	if err != nil {
		return nil, err
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices initializes all application services
func initServices(cfg *config.Config, db *sql.DB) (*App, error) {
	logger := loggy.GetGlobalLogger()
	ctx := context.Background()

	settingsRepo := config.NewSQLSettingsRepository(db, logger)
	if err := config.LoadSyncSettings(ctx, cfg, settingsRepo); err != nil {
		loggy.Warn("Failed to load sync settings from database", "error", err)
		// Continue anyway, using defaults
	}

	authService := auth.NewService(settingsRepo, logger)
	kvStore := store.NewSQLStore(db, logger)

	profileRepo := profile.NewRepository(kvStore, authService, logger)
	favoritesRepo := favorites.NewRepository(kvStore, authService, logger)
	trainingRepo := training.NewRepository(kvStore, authService, logger, cfg.Training.HistoryLimit)
	onboardingService := onboarding.NewService(kvStore, logger)

	if err := favoritesRepo.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}

	syncQueue := sync.NewQueue(kvStore, logger)
	apiClient := sync.NewClient(sync.ClientConfig{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		BurstLimit:        cfg.Server.BurstLimit,
	}, authService, logger)

	syncService := sync.NewService(
		syncQueue,
		apiClient,
		profileRepo,
		favoritesRepo,
		trainingRepo,
		authService,
		sync.Config{
			Enabled:     cfg.Sync.Enabled,
			MaxRetries:  cfg.Sync.MaxRetries,
			PullRetries: cfg.Sync.PullRetries,
		},
		logger,
	)

	// Late bind the sync service so mutations made from here on are queued
	profileRepo.SetSyncer(syncService)
	favoritesRepo.SetSyncer(syncService)
	trainingRepo.SetSyncer(syncService)

	// Signing in enables sync and kicks a cycle; signing out disables it
	authService.OnChange(func() {
		enabled := authService.IsLoggedIn(context.Background())
		cfg.Sync.Enabled = enabled
		syncService.SetEnabled(enabled)
		syncService.HandleTrigger(sync.TriggerAuthChanged)
	})

	return &App{
		Config:     cfg,
		Store:      kvStore,
		Settings:   settingsRepo,
		Auth:       authService,
		Profile:    profileRepo,
		Favorites:  favoritesRepo,
		Training:   trainingRepo,
		Onboarding: onboardingService,
		Sync:       syncService,
	}, nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	// Let background sync cycles finish before the database goes away
	app.Sync.Wait()

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
