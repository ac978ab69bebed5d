package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/application/workflow"
	infraLark "github.com/eddyoasis/procurement-workflow/internal/infrastructure/external/lark"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/worker"
	"github.com/eddyoasis/procurement-workflow/internal/metrics"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	larkClient *infraLark.SDKClient
	sender     port.MessageSender

	// Infrastructure - Documents
	documents *DocumentBundle

	// Application
	metrics    *metrics.WorkflowMetrics
	dispatcher dispatcher.Dispatcher
	thresholds service.ThresholdService
	roles      port.RoleDirectory
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Requisition   port.RequisitionRepository
	Allocation    port.AllocationRepository
	LineItem      port.LineItemRepository
	Step          port.StepRepository
	Record        port.ApprovalRecordRepository
	PurchaseOrder port.PurchaseOrderRepository
	SystemConfig  port.SystemConfigRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requisition   service.RequisitionService
	PurchaseOrder service.PurchaseOrderService
	Threshold     service.ThresholdService
	Notification  service.NotificationService
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
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
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

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. External clients (Lark)
// 3. Purchase order documents
// 4. Metrics and event dispatcher
// 5. Thresholds, roles, workflow engine and services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized", zap.Bool("lark", c.larkClient != nil))

	// Step 3: Initialize purchase order documents
	if err := c.initDocuments(); err != nil {
		return fmt.Errorf("failed to initialize documents: %w", err)
	}
	c.logger.Info("Document generation initialized",
		zap.Bool("export_xlsx", c.documents.Exporter != nil))

	// Step 4: Initialize metrics and dispatcher
	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	// Step 5: Initialize workflow engine and services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Workflow engine and services initialized")

	// Step 6: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Int("count", c.workers.GetWorkerCount()))

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

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Drain async handlers before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.sqlDB != nil {
		if err := c.sqlDB.Ping(); err != nil {
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

	// Check dispatcher
	if c.dispatcher != nil {
		stats := c.dispatcher.Stats()
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: !stats.Closed,
			Message: fmt.Sprintf("handlers: %d, in flight: %d", stats.Handlers, stats.InFlight),
		}
		if stats.Closed {
			status.Overall = false
		}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check workers
	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		}
		if !c.workers.IsRunning() {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check messaging
	if c.sender != nil {
		msg := "lark"
		if c.larkClient == nil {
			msg = "log only"
		}
		status.Components["messaging"] = ComponentHealth{Healthy: true, Message: msg}
	} else {
		status.Components["messaging"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initExternalClients initializes the approver messenger.
func (c *Container) initExternalClients() error {
	bundle, err := ProvideMessaging(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}

	c.larkClient = bundle.Client
	c.sender = bundle.Sender
	return nil
}

// initDocuments initializes the purchase order builder and exporter.
func (c *Container) initDocuments() error {
	documents, err := ProvideDocuments(&c.config.PurchaseOrder, c.logger)
	if err != nil {
		return err
	}

	c.documents = documents
	return nil
}

// initDispatcher initializes metrics and the event dispatcher.
func (c *Container) initDispatcher() error {
	c.metrics = metrics.NewWorkflowMetrics()

	disp, err := ProvideDispatcher(&c.config.Dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

// initServices initializes thresholds, roles, the workflow engine and all
// application services.
func (c *Container) initServices() error {
	c.thresholds = ProvideThresholds(&c.config.Workflow, c.repositories.SystemConfig, c.logger)
	c.roles = ProvideRoleDirectory(c.config.Roles)

	services, engine, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Documents:  c.documents,
		Sender:     c.sender,
		Thresholds: c.thresholds,
		Roles:      c.roles,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	c.workflow = engine
	return nil
}

// initWorkers creates and starts background workers.
func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(&c.config.PurchaseOrder, c.repositories, c.services.PurchaseOrder, c.logger)
	return c.workers.StartAll(c.ctx)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// MessageSender returns the approver messenger.
func (c *Container) MessageSender() port.MessageSender {
	return c.sender
}

// Metrics returns the workflow metrics.
func (c *Container) Metrics() *metrics.WorkflowMetrics {
	return c.metrics
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

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
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

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Warn(msg, fields...)
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
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
