// Package container provides dependency injection and lifecycle management
// for the HR approval service.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/service"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/config"
	"github.com/garyjia/hr-approval/internal/infrastructure/auth"
	"github.com/garyjia/hr-approval/internal/infrastructure/idempotency"
	"github.com/garyjia/hr-approval/internal/infrastructure/metrics"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/hr-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/hr-approval/internal/interfaces/http"
	ws "github.com/garyjia/hr-approval/internal/interfaces/websocket"
	"github.com/garyjia/hr-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	notifiers   *NotifierBundle
	redis       *redis.Client
	idempotency *idempotency.Store
	recorder    *metrics.Recorder
	tokens      *auth.TokenManager

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle
	workers    *worker.Manager

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Request      port.RequestRepository
	History      port.HistoryRepository
	Users        port.UserDirectory
	Notification port.NotificationRepository
}

// ServiceBundle groups all application services. Notification is nil when
// the notification hook is disabled.
type ServiceBundle struct {
	Requests     service.RequestService
	Projections  service.ProjectionService
	Exports      service.ExportService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database and repositories
// 2. External clients (redis, Lark, websocket hub) and metrics
// 3. Event dispatcher and workflow engine
// 4. Application services
// 5. Background workers
// 6. HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	if err := c.initExternalClients(ctx); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized",
		zap.Int("notifiers", len(c.notifiers.Notifiers)),
		zap.Bool("idempotency", c.idempotency != nil),
		zap.Bool("metrics", c.recorder != nil))

	// Step 3: Initialize dispatcher and workflow engine
	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	// Step 4: Initialize application services
	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Start background workers
	if err := c.initWorkers(ctx); err != nil {
		c.teardown()
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Background workers started", zap.Int("workers", c.workers.Count()))

	// Step 6: Build the HTTP server
	c.initServer()

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far
func (c *Container) teardown() []error {
	var errs []error

	// Step 1: Stop the HTTP server (reverse of step 6)
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
		c.server = nil
	}

	// Stop background workers (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Step 2: Drain in-flight notifications (reverse of steps 3 and 4)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 3: External clients (reverse of step 2)
	if c.notifiers != nil && c.notifiers.Hub != nil {
		c.notifiers.Hub.Close()
		c.logger.Info("WebSocket hub closed")
	}
	c.notifiers = nil
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redis = nil
	}

	// Step 4: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.db != nil {
		if err := c.db.Health(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check redis
	if c.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			status.Components["redis"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["redis"] = ComponentHealth{Healthy: true}
		}
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	if c.notifiers != nil && c.notifiers.Hub != nil {
		status.Components["websocket"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("connected clients: %d", c.notifiers.Hub.ClientCount()),
		}
	}

	if c.workers != nil && c.workers.Count() > 0 {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("registered: %d", c.workers.Count()),
		}
	}

	return status
}

// HealthCheck reports the first unhealthy component as an error
func (c *Container) HealthCheck(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	for name, h := range status.Components {
		if !h.Healthy {
			return fmt.Errorf("%s: %s", name, h.Message)
		}
	}
	return fmt.Errorf("unhealthy")
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.db.Close()
		c.db = nil
		return err
	}

	c.repositories = repos
	return nil
}

// initExternalClients initializes notifiers, redis, metrics and the token manager.
func (c *Container) initExternalClients(ctx context.Context) error {
	notifiers, err := ProvideNotifiers(c.config, c.logger)
	if err != nil {
		return err
	}
	c.notifiers = notifiers

	idem, err := ProvideIdempotency(ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	if idem != nil {
		c.redis = idem.Client
		c.idempotency = idem.Store
	}

	if c.config.Metrics.Enabled {
		c.recorder = metrics.NewRecorder()
	}

	tokens, err := ProvideTokenManager(&c.config.Auth)
	if err != nil {
		return err
	}
	c.tokens = tokens

	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Dispatcher: c.dispatcher,
		Recorder:   c.metricsRecorder(),
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Registry:        c.workflow.Registry(),
		Repos:           c.repositories,
		TxManager:       c.txManager,
		Dispatcher:      c.dispatcher,
		Recorder:        c.metricsRecorder(),
		Notifiers:       c.notifiers.Notifiers,
		NotificationsOn: c.config.Notification.Enabled,
		Logger:          c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

// initWorkers starts the background workers the configuration asks for
func (c *Container) initWorkers(ctx context.Context) error {
	c.workers = ProvideWorkers(&c.config.Notification, c.services, c.logger)
	return c.workers.StartAll(ctx)
}

// initServer wires the HTTP routes to the services
func (c *Container) initServer() {
	httpLogger := &zapLoggerAdapter{logger: c.logger}
	authenticator := httpapi.NewAuthenticator(c.tokens, c.repositories.Users)

	deps := httpapi.Dependencies{
		Requests:      c.services.Requests,
		Engine:        c.workflow,
		Projections:   c.services.Projections,
		Exports:       c.services.Exports,
		Notifications: c.repositories.Notification,
		Auth:          authenticator,
		Idempotency:   c.idempotency,
		Health:        c.HealthCheck,
	}
	if c.recorder != nil {
		deps.Metrics = c.recorder
	}
	if c.notifiers.Hub != nil {
		deps.WebSocket = ws.Handler(c.notifiers.Hub, httpapi.TokenFromRequest, authenticator.Resolve, c.logger)
	}

	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
		Mode:         c.config.Server.Mode,
		CORSOrigins:  c.config.Server.CORSOrigins,
		MetricsPath:  c.config.Metrics.Path,
	}, deps, httpLogger)
}

// metricsRecorder returns the recorder as an interface, nil when metrics are off
func (c *Container) metricsRecorder() port.MetricsRecorder {
	if c.recorder == nil {
		return nil
	}
	return c.recorder
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Tokens returns the bearer token manager.
func (c *Container) Tokens() *auth.TokenManager {
	return c.tokens
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Hub returns the websocket hub, nil when websocket delivery is off.
func (c *Container) Hub() *ws.Hub {
	if c.notifiers == nil {
		return nil
	}
	return c.notifiers.Hub
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
