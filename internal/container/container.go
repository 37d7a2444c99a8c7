// Package container wires the invoice engine together and manages the
// lifecycle of its components.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/config"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/directory"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/memory"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/seed"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/worker"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/webhook"
	"github.com/AshrafHassan95/invoice-automation-agent/pkg/database"
)

// Container owns every component of the engine. Components are built in
// dependency order by Start and torn down in reverse by Close.
type Container struct {
	config *config.Config
	logger *zap.Logger

	runWorkers bool

	// Data
	database     *database.DB
	repositories *RepositoryBundle
	directory    *directory.Static

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	webhook    *webhook.Handler

	// Workers
	workers    *worker.Manager
	slaMonitor *worker.SLAMonitor

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// Option configures the container
type Option func(*Container)

// WithoutWorkers builds the workers but never starts them. Used by one-shot
// commands.
func WithoutWorkers() Option {
	return func(c *Container) {
		c.runWorkers = false
	}
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

// NewContainer creates a container. Call Start to build the components.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:     cfg,
		logger:     logger,
		runWorkers: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start builds the components and starts the workers
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
	c.logger.Info("Starting container", zap.String("storage_driver", c.config.Storage.Driver))

	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.directory = directory.NewStatic(c.config.Approvers)
	if err := c.initSeed(); err != nil {
		return fmt.Errorf("failed to load seed data: %w", err)
	}

	c.dispatcher = ProvideDispatcher(c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Config:     c.config,
		Repos:      c.repositories,
		Directory:  c.directory,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.webhook = ProvideWebhook(&c.config.Webhook, services.Invoice, c.logger)

	c.workers, c.slaMonitor = ProvideWorkers(&c.config.Worker, c.repositories, c.dispatcher, c.logger)
	if c.runWorkers {
		if err := c.workers.StartAll(c.ctx); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
	}

	c.ready.Store(true)
	c.logger.Info("Container started")
	return nil
}

func (c *Container) initStorage() error {
	switch c.config.Storage.Driver {
	case config.DriverMemory:
		c.repositories = ProvideMemoryRepositories(memory.NewStore())
		return nil
	default:
		db, err := ProvideDatabase(&c.config.Database, c.logger)
		if err != nil {
			return err
		}
		c.database = db
		c.repositories = ProvideSQLiteRepositories(db, c.logger)
		return nil
	}
}

func (c *Container) initSeed() error {
	path := c.config.Storage.SeedFile
	if path == "" {
		return nil
	}

	data, err := seed.Load(path)
	if err != nil {
		return err
	}
	if _, err := seed.Apply(c.ctx, data, c.repositories.MasterData, c.repositories.Tx, c.logger); err != nil {
		return err
	}
	c.directory.Merge(data.Approvers)
	return nil
}

// Close stops the workers, the dispatcher and the database, in that order
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

	if c.workers != nil && c.workers.IsRunning() {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of the store, the workers and the dispatcher.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.repositories == nil:
		set("storage", false, "not initialized")
	case c.database == nil:
		set("storage", true, config.DriverMemory)
	default:
		if err := c.database.PingContext(ctx); err != nil {
			set("storage", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("storage", true, config.DriverSQLite)
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else if c.runWorkers {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.WorkerCount()))
	} else {
		set("workers", true, "disabled")
	}

	set("dispatcher", c.dispatcher != nil, "")
	return status
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle { return c.repositories }

// Directory returns the approver directory.
func (c *Container) Directory() *directory.Static { return c.directory }

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher { return c.dispatcher }

// Services returns all application services.
func (c *Container) Services() *ServiceBundle { return c.services }

// Webhook returns the extraction webhook handler.
func (c *Container) Webhook() *webhook.Handler { return c.webhook }

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager { return c.workers }

// SLAMonitor returns the SLA monitor, which one-shot commands can scan directly.
func (c *Container) SLAMonitor() *worker.SLAMonitor { return c.slaMonitor }
