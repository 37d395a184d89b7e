// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/analytics"
	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/jobs"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

// Application wraps cartridge.Application with linkpulse-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithRoutes creates a new application with a custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// The background jobs get their own gateway; request handlers build
	// theirs lazily from the first request's context.
	store := storage.NewFailover(
		storage.NewSQLiteStore(dbManager.GetConnection(), logger),
		storage.Fallback(),
		logger,
	)
	rollup := analytics.NewRollup(store, cfg.RollupWindowDays, logger)
	broker := realtime.Default(logger)

	scheduler, err := jobs.NewScheduler(dbManager, rollup, broker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	// Sec-Fetch-Site is a browser-only header. Every state-changing
	// endpoint here is either bearer-authenticated (the Authorization
	// header cannot be attached cross-site) or a public tracking call
	// that non-browser clients hit, so the strict browser-only check
	// would 403 legitimate traffic.
	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.EnableSecFetchSite = false

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      serverCfg,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, MountAppRoutes)
}
