package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/service"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/config"
	"github.com/garyjia/hr-approval/internal/infrastructure/auth"
	infraLark "github.com/garyjia/hr-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/hr-approval/internal/infrastructure/idempotency"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/hr-approval/internal/infrastructure/storage"
	"github.com/garyjia/hr-approval/internal/infrastructure/worker"
	ws "github.com/garyjia/hr-approval/internal/interfaces/websocket"
	"github.com/garyjia/hr-approval/migrations"
	"github.com/garyjia/hr-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// NotifierBundle holds the delivery channels of the notification hook.
type NotifierBundle struct {
	Lark      *infraLark.SDKClient
	Hub       *ws.Hub
	Notifiers []port.Notifier
}

// IdempotencyBundle holds the redis client and the store built on it.
type IdempotencyBundle struct {
	Client *redis.Client
	Store  *idempotency.Store
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := ProvideMigrations(db, cfg, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideMigrations applies migrations from the configured directory or,
// when none is set, the ones embedded in the binary.
func ProvideMigrations(db *database.DB, cfg *config.DatabaseConfig, logger *zap.Logger) error {
	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		if err := migrator.RunMigrationsDir(cfg.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	}
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Request:      repository.NewRequestRepository(db.DB, logger),
		History:      repository.NewHistoryRepository(db.DB, logger),
		Users:        repository.NewUserRepository(db.DB, logger),
		Notification: repository.NewNotificationRepository(db.DB, logger),
	}, nil
}

// ProvideNotifiers creates the enabled delivery channels. The hub is created
// whenever websocket delivery is on, even if notifications are disabled,
// so /ws keeps accepting connections.
func ProvideNotifiers(cfg *config.Config, logger *zap.Logger) (*NotifierBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &NotifierBundle{}

	if cfg.Notification.WebSocket {
		bundle.Hub = ws.NewHub(logger)
		bundle.Notifiers = append(bundle.Notifiers, ws.NewNotifier(bundle.Hub))
	}

	if cfg.Lark.Enabled {
		larkCfg := infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		}
		if !larkCfg.Enabled() {
			return nil, fmt.Errorf("lark credentials are required")
		}
		bundle.Lark = infraLark.NewSDKClient(larkCfg, logger)
		messenger := infraLark.NewMessenger(bundle.Lark, logger)
		bundle.Notifiers = append(bundle.Notifiers, infraLark.NewNotifier(messenger, logger))
	}

	return bundle, nil
}

// ProvideIdempotency connects to redis and creates the idempotency store.
// Returns nil when redis is disabled.
func ProvideIdempotency(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*IdempotencyBundle, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &IdempotencyBundle{
		Client: client,
		Store:  idempotency.NewStore(client, cfg.IdempotencyTTL, logger),
	}, nil
}

// ProvideTokenManager creates the bearer token manager.
func ProvideTokenManager(cfg *config.AuthConfig) (*auth.TokenManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	return auth.NewTokenManager(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.Issuer,
		TokenTTL: cfg.TokenTTL,
	})
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dispatcherLogger := &dispatcherLoggerAdapter{logger: logger}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
		dispatcher.WithHandlerTimeout(30*time.Second),
		dispatcher.WithMaxConcurrency(16),
	), nil
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Recorder   port.MetricsRecorder
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow deps are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	opts := []workflow.EngineOption{}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Recorder != nil {
		opts = append(opts, workflow.WithRecorder(deps.Recorder))
	}

	return workflow.NewEngine(deps.Repos.Request, deps.Repos.History, deps.TxManager, opts...), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Registry        workflow.Registry
	Repos           *RepositoryBundle
	TxManager       port.TransactionManager
	Dispatcher      dispatcher.Dispatcher
	Recorder        port.MetricsRecorder
	Notifiers       []port.Notifier
	NotificationsOn bool
	Logger          *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification hook to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	svcLogger := &zapLoggerAdapter{logger: deps.Logger}

	projections := service.NewProjectionService(deps.Registry, deps.Repos.Request, deps.Repos.History, svcLogger)

	bundle := &ServiceBundle{
		Requests: service.NewRequestService(
			deps.Registry,
			deps.Repos.Request,
			deps.Repos.History,
			deps.Repos.Users,
			deps.TxManager,
			deps.Dispatcher,
			deps.Recorder,
			svcLogger,
		),
		Projections: projections,
		Exports:     service.NewExportService(projections, svcLogger),
	}

	if deps.NotificationsOn && deps.Dispatcher != nil && len(deps.Notifiers) > 0 {
		bundle.Notification = service.NewNotificationService(
			deps.Registry,
			deps.Repos.Request,
			deps.Repos.Users,
			deps.Repos.Notification,
			deps.Notifiers,
			deps.Recorder,
			svcLogger,
		)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}

// ProvideWorkers builds the background worker manager. The notification
// retry worker runs only when notifications are on and retries are configured.
func ProvideWorkers(cfg *config.NotificationConfig, services *ServiceBundle, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if services == nil || services.Notification == nil {
		return manager
	}
	if cfg.MaxAttempts <= 0 || cfg.RetryInterval <= 0 {
		return manager
	}

	manager.Register(worker.NewNotificationRetryWorker(services.Notification, worker.RetryConfig{
		Interval:    cfg.RetryInterval,
		MaxAttempts: cfg.MaxAttempts,
	}, logger))
	return manager
}

// ProvideFileStorage creates the export archive
func ProvideFileStorage(cfg *config.ExportConfig, logger *zap.Logger) (*storage.LocalFileStorage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("export.dir is required")
	}
	return storage.NewLocalFileStorage(cfg.Dir, logger), nil
}
