package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/apiclient"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/handlers"
	"github.com/ternarybob/docintel/internal/interfaces"
	"github.com/ternarybob/docintel/internal/services/dashboard"
	"github.com/ternarybob/docintel/internal/services/events"
	"github.com/ternarybob/docintel/internal/services/registry"
	"github.com/ternarybob/docintel/internal/services/scheduler"
	"github.com/ternarybob/docintel/internal/services/uploads"
	"github.com/ternarybob/docintel/internal/services/viewer"
	"github.com/ternarybob/docintel/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Backend transport
	Client *apiclient.Client

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service

	// Snapshot cache (nil when storage.badger.enabled is false)
	BadgerDB        *badger.BadgerDB
	SnapshotStorage interfaces.SnapshotStorage

	// View-models
	Registry     *registry.Registry
	UploadQueue  *uploads.Queue
	InboxWatcher *uploads.InboxWatcher
	Viewer       *viewer.Viewer
	Aggregator   *dashboard.Aggregator

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	DocumentHandler  *handlers.DocumentHandler
	UploadHandler    *handlers.UploadHandler
	StatsHandler     *handlers.StatsHandler
	SchedulerHandler *handlers.SchedulerHandler
	WSHandler        *handlers.WebSocketHandler
	EventSubscriber  *handlers.EventSubscriber
}

// New initializes the application with all dependencies.
// Nothing talks to the backend until Start or an explicit view-model call.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Debug().
		Str("base_url", app.Client.BaseURL()).
		Str("process_mode", cfg.Registry.ProcessMode).
		Bool("snapshot_cache", app.SnapshotStorage != nil).
		Bool("inbox_watcher", app.InboxWatcher != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the Badger snapshot cache when enabled
func (a *App) initDatabase() error {
	if !a.Config.Storage.Badger.Enabled {
		a.Logger.Debug().Msg("Snapshot cache disabled")
		return nil
	}

	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}

	a.BadgerDB = db
	a.SnapshotStorage = badger.NewSnapshotStorage(db, a.Logger)
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the transport client and view-models in dependency order
func (a *App) initServices() error {
	a.Client = apiclient.NewClientFromConfig(a.Config.Backend, a.Logger)
	a.EventService = events.NewService(a.Logger)
	a.SchedulerService = scheduler.NewService(a.Logger)

	registryConfig, err := registry.ConfigFromCommon(a.Config)
	if err != nil {
		return err
	}

	// A nil *SnapshotStorage must not reach the registry as a non-nil interface
	var cache interfaces.SnapshotStorage
	if a.SnapshotStorage != nil {
		cache = a.SnapshotStorage
	}

	a.Registry, err = registry.NewRegistry(a.Client, a.SchedulerService, a.EventService, cache, registryConfig, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	a.UploadQueue = uploads.NewQueue(a.Client, a.EventService, a.Config.Uploads.UseAdvanced, a.Logger)

	if a.Config.Uploads.InboxDir != "" {
		a.InboxWatcher, err = uploads.NewInboxWatcher(a.Config.Uploads, a.UploadQueue, a.EventService, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create inbox watcher: %w", err)
		}
	}

	a.Viewer = viewer.NewViewer(a.Client, a.Registry, a.Logger)
	a.Aggregator = dashboard.NewAggregator(a.Client, a.Client, a.Config.Backend.StatsLimit, a.Logger)

	return nil
}

// initHandlers wires the local state API handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Client, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.Registry, a.Viewer, a.Logger)
	a.UploadHandler = handlers.NewUploadHandler(a.UploadQueue, a.Logger)
	a.StatsHandler = handlers.NewStatsHandler(a.Aggregator, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService)
	a.WSHandler = handlers.NewWebSocketHandler(a.Logger)
	a.EventSubscriber = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &a.Config.WebSocket)
}

// Start begins background work: the scheduler, the cached snapshot, the
// first refresh, auto-refresh per config and the inbox watcher.
// A failed first refresh is logged and leaves the cached list in place.
func (a *App) Start() error {
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if loaded, err := a.Registry.LoadCached(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load cached snapshot")
	} else if loaded {
		a.Logger.Info().Int("documents", len(a.Registry.Documents())).Msg("Loaded cached document list")
	}

	if err := a.Registry.Refresh(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Initial refresh failed")
	}

	if a.Config.Registry.AutoRefresh {
		if err := a.Registry.SetAutoRefresh(true); err != nil {
			return fmt.Errorf("failed to enable auto-refresh: %w", err)
		}
	}

	if a.InboxWatcher != nil {
		if err := a.InboxWatcher.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start inbox watcher: %w", err)
		}
	}

	a.Logger.Info().
		Bool("auto_refresh", a.Registry.AutoRefreshEnabled()).
		Int("documents", len(a.Registry.Documents())).
		Msg("Application started")

	return nil
}

// Context returns the application lifetime context, cancelled by Close
func (a *App) Context() context.Context {
	return a.ctx
}

// Close closes all application resources
func (a *App) Close() error {
	var errs []error

	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.InboxWatcher != nil {
		if err := a.InboxWatcher.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop inbox watcher")
		}
	}

	// Registry first: it disarms and unregisters its scheduler job
	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close registry")
		}
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.EventSubscriber != nil {
		a.EventSubscriber.Close()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// SnapshotStorage owns the Badger connection
	if a.SnapshotStorage != nil {
		if err := a.SnapshotStorage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		} else {
			a.Logger.Debug().Msg("Storage closed")
		}
	}

	return errors.Join(errs...)
}
