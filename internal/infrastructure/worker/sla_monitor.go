package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/event"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
)

// SLATrigger is recorded in the audit trail when a deadline is missed
const SLATrigger = "SLA_BREACHED"

// SLAMonitorConfig holds configuration for the SLA monitor
type SLAMonitorConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultSLAMonitorConfig returns default configuration
func DefaultSLAMonitorConfig() SLAMonitorConfig {
	return SLAMonitorConfig{
		PollInterval: time.Minute,
		BatchSize:    100,
	}
}

// SLAMonitor reports pending approvals that passed their deadline. Each
// request is reported once: the breach is flagged on the request together
// with its audit record, and flagged requests are no longer listed.
type SLAMonitor struct {
	config SLAMonitorConfig

	approvalRepo port.ApprovalRepository
	auditRepo    port.AuditRepository
	tx           port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	now          func() time.Time
	logger       *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	breaches  int
}

// NewSLAMonitor creates a new SLA monitor
func NewSLAMonitor(
	config SLAMonitorConfig,
	approvalRepo port.ApprovalRepository,
	auditRepo port.AuditRepository,
	tx port.TransactionManager,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *SLAMonitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSLAMonitorConfig().PollInterval
	}
	return &SLAMonitor{
		config:       config,
		approvalRepo: approvalRepo,
		auditRepo:    auditRepo,
		tx:           tx,
		dispatcher:   d,
		now:          time.Now,
		logger:       logger,
	}
}

// Name returns the worker name for identification
func (m *SLAMonitor) Name() string {
	return "SLAMonitor"
}

// Start begins the polling loop
func (m *SLAMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("sla monitor already running")
	}

	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.isRunning = true

	m.logger.Info("SLAMonitor started",
		zap.Duration("poll_interval", m.config.PollInterval),
		zap.Int("batch_size", m.config.BatchSize))

	go m.pollLoop(loopCtx, m.done)
	return nil
}

// Stop terminates the loop and waits for the current scan to finish
func (m *SLAMonitor) Stop() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done

	m.logger.Info("SLAMonitor stopped", zap.Int("breaches_reported", m.Breaches()))
	return nil
}

// Breaches returns how many breaches this monitor has reported
func (m *SLAMonitor) Breaches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaches
}

func (m *SLAMonitor) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := m.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("SLA scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce reports every overdue request not reported before and returns
// how many were reported in this scan
func (m *SLAMonitor) ScanOnce(ctx context.Context) (int, error) {
	now := m.now()
	overdue, err := m.approvalRepo.ListOverdue(ctx, now, m.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue approvals: %w", err)
	}

	count := 0
	for _, req := range overdue {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}

		reported, err := m.report(ctx, req, now)
		if err != nil {
			m.logger.Error("Failed to report SLA breach",
				zap.String("invoice_id", req.InvoiceID),
				zap.Error(err))
			continue
		}
		if reported {
			count++
		}
	}

	if count > 0 {
		m.logger.Info("SLA breaches reported", zap.Int("count", count))
	}
	return count, nil
}

// report flags the breach and appends its audit record in one transaction.
// It returns false when another scan flagged the request first or it left
// pending in the meantime.
func (m *SLAMonitor) report(ctx context.Context, req *entity.ApprovalRequest, now time.Time) (bool, error) {
	deadline := req.SLADeadline.UTC().Format(time.RFC3339)
	state := domainwf.StatePendingApproval.String()

	marked := false
	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := m.approvalRepo.MarkSLABreached(txCtx, req.InvoiceID, now)
		if err != nil || !ok {
			return err
		}
		marked = true

		if err := m.auditRepo.Append(txCtx, &entity.AuditRecord{
			InvoiceID: req.InvoiceID,
			FromState: state,
			ToState:   state,
			Trigger:   SLATrigger,
			Actor:     entity.ActorSLA,
			Detail:    fmt.Sprintf("deadline %s passed; pending with %s", deadline, req.AssignedTo),
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
	if err != nil || !marked {
		return false, err
	}

	m.mu.Lock()
	m.breaches++
	m.mu.Unlock()

	m.logger.Info("SLA breached",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("level", string(req.Level)),
		zap.String("assigned_to", req.AssignedTo),
		zap.Duration("overdue_by", now.Sub(*req.SLADeadline)))

	if m.dispatcher != nil {
		m.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeSLABreached, req.InvoiceID, map[string]interface{}{
			"request_id":   req.ID,
			"level":        string(req.Level),
			"assigned_to":  req.AssignedTo,
			"priority":     string(req.Priority),
			"sla_deadline": deadline,
		}, uuid.NewString()))
	}
	return true, nil
}
