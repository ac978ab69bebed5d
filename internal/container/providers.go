package container

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/dispatcher"
	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/application/workflow"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
	infraLark "github.com/eddyoasis/procurement-workflow/internal/infrastructure/external/lark"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/persistence/repository"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/storage"
	"github.com/eddyoasis/procurement-workflow/internal/infrastructure/worker"
	"github.com/eddyoasis/procurement-workflow/internal/purchaseorder"
	"github.com/eddyoasis/procurement-workflow/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// MessagingBundle holds the approver messaging components. Client is nil
// when Lark is disabled.
type MessagingBundle struct {
	Client *infraLark.SDKClient
	Sender port.MessageSender
}

// DocumentBundle holds purchase order building and rendering.
type DocumentBundle struct {
	Sink     port.DocumentSink
	Exporter port.DocumentExporter
	Storage  port.FileStorage
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.Open(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requisition:   repository.NewRequisitionRepository(sqlDB, logger),
		Allocation:    repository.NewAllocationRepository(sqlDB, logger),
		LineItem:      repository.NewLineItemRepository(sqlDB, logger),
		Step:          repository.NewStepRepository(sqlDB, logger),
		Record:        repository.NewApprovalRecordRepository(sqlDB, logger),
		PurchaseOrder: repository.NewPurchaseOrderRepository(sqlDB, logger),
		SystemConfig:  repository.NewSystemConfigRepository(sqlDB, logger),
	}, nil
}

// ProvideMessaging creates the Lark messenger, or a log-only sender when Lark
// is disabled.
func ProvideMessaging(cfg *LarkConfig, logger *zap.Logger) (*MessagingBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}

	if !cfg.Enabled {
		logger.Warn("Lark disabled, approver notifications go to the log")
		return &MessagingBundle{Sender: infraLark.NewLogMessenger(logger)}, nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return &MessagingBundle{
		Client: client,
		Sender: infraLark.NewMessenger(client, logger),
	}, nil
}

// ProvideDocuments creates the purchase order builder and, when enabled, the
// workbook exporter with its file storage.
func ProvideDocuments(cfg *PurchaseOrderConfig, logger *zap.Logger) (*DocumentBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("purchase order config is required")
	}

	bundle := &DocumentBundle{
		Sink: purchaseorder.NewBuilder(cfg.NumberPrefix, logger),
	}
	if cfg.ExportXLSX {
		bundle.Storage = storage.NewLocalFileStorage(cfg.OutputDir, logger)
		bundle.Exporter = purchaseorder.NewWorkbookExporter(bundle.Storage, logger)
	}
	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	}
	if cfg != nil && cfg.AsyncTimeout > 0 {
		opts = append(opts, dispatcher.WithAsyncTimeout(cfg.AsyncTimeout))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ProvideThresholds creates the layered threshold resolver.
func ProvideThresholds(cfg *WorkflowConfig, repo port.SystemConfigRepository, logger *zap.Logger) service.ThresholdService {
	return service.NewThresholdService(repo, service.StaticThresholds{
		BaseCurrency:  cfg.BaseCurrency,
		Thresholds:    cfg.Thresholds,
		ExchangeRates: cfg.ExchangeRates,
	}, &zapLoggerAdapter{logger: logger})
}

// ProvideRoleDirectory maps configured role holders to approvers.
func ProvideRoleDirectory(roles map[string]RoleHolder) port.RoleDirectory {
	approvers := make(map[string]port.Approver, len(roles))
	for role, holder := range roles {
		approvers[strings.ToUpper(role)] = port.Approver{Name: holder.Name, Email: holder.Email}
	}
	return service.NewStaticRoleDirectory(approvers)
}

// ProvideWorkers creates the worker manager and registers the purchase order
// retry worker when a retry interval is configured.
func ProvideWorkers(cfg *PurchaseOrderConfig, repos *RepositoryBundle, orders service.PurchaseOrderService, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if cfg.RetryInterval > 0 {
		manager.Register(worker.NewDocumentRetryWorker(worker.DocumentRetryConfig{
			PollInterval: cfg.RetryInterval,
			MaxAttempts:  cfg.RetryMaxAttempts,
		}, repos.Requisition, orders, logger))
	}
	return manager
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Documents  *DocumentBundle
	Sender     port.MessageSender
	Thresholds service.ThresholdService
	Roles      port.RoleDirectory
	Metrics    port.WorkflowMetrics
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and all application services,
// and subscribes notification handlers to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Documents == nil {
		return nil, nil, fmt.Errorf("document bundle is required")
	}

	svcLogger := &zapLoggerAdapter{logger: deps.Logger}

	purchaseOrders := service.NewPurchaseOrderService(
		deps.Repos.Requisition,
		deps.Repos.LineItem,
		deps.Repos.PurchaseOrder,
		deps.TxManager,
		deps.Documents.Sink,
		deps.Documents.Exporter,
		deps.Dispatcher,
		deps.Metrics,
		svcLogger,
	)

	repos := workflow.Repositories{
		Requisitions: deps.Repos.Requisition,
		Allocations:  deps.Repos.Allocation,
		Items:        deps.Repos.LineItem,
		Steps:        deps.Repos.Step,
		Records:      deps.Repos.Record,
	}

	engine := workflow.NewEngine(
		repos,
		deps.TxManager,
		workflow.NewStepGenerator(deps.Thresholds, deps.Roles),
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithDocumentGenerator(purchaseOrders),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithLogger(svcLogger),
	)

	notifications := service.NewNotificationService(deps.Repos.Requisition, deps.Sender, svcLogger)
	deps.Dispatcher.SubscribeNamed(event.TypeNextApproversActive, "approver_notifier", notifications.HandleNextApprovers)
	deps.Dispatcher.SubscribeNamed(event.TypeRequisitionSubmitted, "requester_notifier", notifications.HandleOutcome)
	deps.Dispatcher.SubscribeNamed(event.TypeRequisitionApproved, "requester_notifier", notifications.HandleOutcome)
	deps.Dispatcher.SubscribeNamed(event.TypeRequisitionRejected, "requester_notifier", notifications.HandleOutcome)

	return &ServiceBundle{
		Requisition:   service.NewRequisitionService(repos, deps.TxManager, engine, svcLogger),
		PurchaseOrder: purchaseOrders,
		Threshold:     deps.Thresholds,
		Notification:  notifications,
	}, engine, nil
}
