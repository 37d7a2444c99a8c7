package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/routing"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/service"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/validation"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/workflow"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/config"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/export"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/memory"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/repository"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/worker"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/notification"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/webhook"
	"github.com/AshrafHassan95/invoice-automation-agent/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice    port.InvoiceRepository
	Validation port.ValidationRepository
	Approval   port.ApprovalRepository
	Audit      port.AuditRepository
	Lookup     port.Lookup
	MasterData port.MasterDataWriter
	Tx         port.TransactionManager
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Invoice      service.InvoiceService
	Export       service.ExportService
	Notification service.NotificationService
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		if _, err := database.NewMigrator(db, logger).RunMigrations(cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

// ProvideSQLiteRepositories builds the repositories over an open database.
func ProvideSQLiteRepositories(db *database.DB, logger *zap.Logger) *RepositoryBundle {
	txDB := sqlite.NewDB(db.DB, logger)
	lookup := repository.NewLookupRepository(txDB, logger)

	return &RepositoryBundle{
		Invoice:    repository.NewInvoiceRepository(txDB, logger),
		Validation: repository.NewValidationRepository(txDB, logger),
		Approval:   repository.NewApprovalRepository(txDB, logger),
		Audit:      repository.NewAuditRepository(txDB, logger),
		Lookup:     lookup,
		MasterData: lookup,
		Tx:         txDB,
	}
}

// ProvideMemoryRepositories builds the repositories over a process-local store.
func ProvideMemoryRepositories(store *memory.Store) *RepositoryBundle {
	lookup := store.Lookup()

	return &RepositoryBundle{
		Invoice:    store.Invoices(),
		Validation: store.Validations(),
		Approval:   store.Approvals(),
		Audit:      store.Audit(),
		Lookup:     lookup,
		MasterData: lookup,
		Tx:         store,
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(NewZapLogger(logger.Named("dispatcher"))))
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config     *config.Config
	Repos      *RepositoryBundle
	Directory  port.ApproverDirectory
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices builds the evaluator, the decider, the approval lifecycle
// and the services on top of them.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Config == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	appLogger := NewZapLogger(deps.Logger)

	evaluator, err := validation.NewEvaluator(deps.Config.Rules, validation.WithLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	decider, err := routing.NewDecider(deps.Config.Rules, deps.Directory, routing.WithLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to create decider: %w", err)
	}

	lifecycle := workflow.NewLifecycle(
		deps.Repos.Invoice,
		deps.Repos.Approval,
		deps.Repos.Audit,
		deps.Repos.Tx,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(appLogger),
	)

	invoiceService := service.NewInvoiceService(
		service.Repositories{
			Invoices:    deps.Repos.Invoice,
			Validations: deps.Repos.Validation,
			Approvals:   deps.Repos.Approval,
			Audit:       deps.Repos.Audit,
			Tx:          deps.Repos.Tx,
		},
		deps.Repos.Lookup,
		evaluator,
		decider,
		lifecycle,
		appLogger,
		service.WithDispatcher(deps.Dispatcher),
		service.WithBatchConcurrency(deps.Config.Worker.BatchConcurrency),
	)

	exportService := service.NewExportService(
		deps.Repos.Invoice,
		deps.Repos.Approval,
		export.NewExcelExporter(deps.Logger.Named("export")),
		appLogger,
	)

	notificationService := service.NewNotificationService(
		notification.NewLogNotifier(deps.Logger.Named("notify")),
		deps.Config.Notification.Escalations,
		appLogger,
	)
	notificationService.Register(deps.Dispatcher)

	return &ServiceBundle{
		Invoice:      invoiceService,
		Export:       exportService,
		Notification: notificationService,
	}, nil
}

// ProvideWorkers registers the background workers without starting them.
func ProvideWorkers(cfg *config.WorkerConfig, repos *RepositoryBundle, d dispatcher.Dispatcher, logger *zap.Logger) (*worker.Manager, *worker.SLAMonitor) {
	slaCfg := worker.DefaultSLAMonitorConfig()
	if cfg.SLAPollInterval > 0 {
		slaCfg.PollInterval = cfg.SLAPollInterval
	}
	if cfg.SLABatchSize > 0 {
		slaCfg.BatchSize = cfg.SLABatchSize
	}

	monitor := worker.NewSLAMonitor(slaCfg, repos.Approval, repos.Audit, repos.Tx, d, logger)

	manager := worker.NewManager(logger)
	manager.Register(monitor)
	return manager, monitor
}

// ProvideWebhook creates the extraction webhook handler.
func ProvideWebhook(cfg *config.WebhookConfig, processor webhook.Processor, logger *zap.Logger) *webhook.Handler {
	verifier := webhook.NewVerifier(cfg.VerifyToken, cfg.Secret, cfg.MaxSkew, logger)
	return webhook.NewHandler(verifier, processor, logger.Named("webhook"))
}
