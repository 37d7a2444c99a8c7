package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/workflow"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/event"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
)

// ErrAlreadyProcessed is returned when an invoice id has been seen before
var ErrAlreadyProcessed = errors.New("invoice already processed")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Evaluator validates an invoice against the rule table
type Evaluator interface {
	Evaluate(ctx context.Context, inv *entity.InvoiceRecord, lookup port.Lookup) *entity.ValidationResult
}

// Router turns a validation verdict into an approval request
type Router interface {
	Route(ctx context.Context, inv *entity.InvoiceRecord, validation *entity.ValidationResult) *entity.ApprovalRequest
}

// Repositories groups the stores the invoice service writes to
type Repositories struct {
	Invoices    port.InvoiceRepository
	Validations port.ValidationRepository
	Approvals   port.ApprovalRepository
	Audit       port.AuditRepository
	Tx          port.TransactionManager
}

// InvoiceDetails is everything known about one invoice
type InvoiceDetails struct {
	Entry      *entity.InvoiceEntry     `json:"invoice"`
	Validation *entity.ValidationResult `json:"validation"`
	Approval   *entity.ApprovalRequest  `json:"approval"`
}

// InvoiceService runs invoices through validation, routing and the approval lifecycle
type InvoiceService interface {
	Process(ctx context.Context, inv *entity.InvoiceRecord) (*entity.ProcessingOutcome, error)
	ProcessBatch(ctx context.Context, invoices []*entity.InvoiceRecord) []*entity.ProcessingOutcome
	Decide(ctx context.Context, invoiceID string, decision entity.ApprovalDecision) (*entity.ApprovalRequest, error)
	GetInvoice(ctx context.Context, invoiceID string) (*InvoiceDetails, error)
	ListInvoices(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceEntry, error)
	ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error)
	AuditTrail(ctx context.Context, invoiceID string) ([]*entity.AuditRecord, error)
	Metrics() entity.Metrics
	Statistics(ctx context.Context) (*entity.Statistics, error)
}

type invoiceServiceImpl struct {
	repos      Repositories
	lookup     port.Lookup
	evaluator  Evaluator
	router     Router
	lifecycle  workflow.Lifecycle
	dispatcher dispatcher.Dispatcher
	logger     Logger

	now              func() time.Time
	batchConcurrency int

	mu      sync.Mutex
	metrics entity.Metrics
	totalMs int64
}

// Option configures the invoice service
type Option func(*invoiceServiceImpl)

// WithDispatcher sets the event dispatcher for lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(s *invoiceServiceImpl) {
		s.dispatcher = d
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *invoiceServiceImpl) {
		s.now = now
	}
}

// WithBatchConcurrency bounds how many invoices ProcessBatch handles at once
func WithBatchConcurrency(n int) Option {
	return func(s *invoiceServiceImpl) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repos Repositories,
	lookup port.Lookup,
	evaluator Evaluator,
	router Router,
	lifecycle workflow.Lifecycle,
	logger Logger,
	opts ...Option,
) InvoiceService {
	s := &invoiceServiceImpl{
		repos:            repos,
		lookup:           lookup,
		evaluator:        evaluator,
		router:           router,
		lifecycle:        lifecycle,
		logger:           logger,
		now:              time.Now,
		batchConcurrency: 4,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Process validates, routes and records one invoice
func (s *invoiceServiceImpl) Process(ctx context.Context, inv *entity.InvoiceRecord) (*entity.ProcessingOutcome, error) {
	if inv == nil {
		return nil, fmt.Errorf("invoice cannot be nil")
	}

	start := s.now()
	record := *inv
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = start
	}

	outcome := &entity.ProcessingOutcome{InvoiceID: record.ID}

	existing, err := s.repos.Invoices.GetByID(ctx, record.ID)
	if err != nil {
		return s.fail(outcome, start, fmt.Errorf("failed to check invoice: %w", err))
	}
	if existing != nil {
		return s.fail(outcome, start, fmt.Errorf("%w: %s", ErrAlreadyProcessed, record.ID))
	}

	v, err := s.assess(ctx, &record)
	if err != nil {
		outcome.Validation = v.validation
		outcome.Approval = v.request
		return s.fail(outcome, start, err)
	}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		// An identical invoice may have been stored since the assessment ran.
		// Transactions are serialised, so checking again here is final.
		if !v.validation.HasException(entity.ExceptionDuplicateInvoice) {
			dup, err := s.storedDuplicate(txCtx, &record)
			if err != nil {
				return err
			}
			if dup {
				s.logger.Info("Duplicate stored during processing, reassessing", "invoice_id", record.ID)
				if v, err = s.assess(txCtx, &record); err != nil {
					return err
				}
			}
		}

		finished := s.now()
		outcome.ProcessingTimeMs = finished.Sub(start).Milliseconds()
		entry := &entity.InvoiceEntry{
			Invoice:          record,
			Status:           v.final.String(),
			ProcessingTimeMs: outcome.ProcessingTimeMs,
			CreatedAt:        finished,
			UpdatedAt:        finished,
		}

		if err := s.repos.Invoices.Create(txCtx, entry); err != nil {
			if errors.Is(err, port.ErrAlreadyExists) {
				return fmt.Errorf("%w: %s", ErrAlreadyProcessed, record.ID)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		if err := s.repos.Validations.Save(txCtx, v.validation); err != nil {
			return fmt.Errorf("failed to save validation: %w", err)
		}
		if err := s.repos.Approvals.Create(txCtx, v.request); err != nil {
			return fmt.Errorf("failed to create approval request: %w", err)
		}
		for _, tr := range v.transitions {
			if err := s.repos.Audit.Append(txCtx, intakeAudit(record.ID, tr, v.validation, v.request)); err != nil {
				return fmt.Errorf("failed to append audit record: %w", err)
			}
		}
		return nil
	})
	validation, request, transitions := v.validation, v.request, v.transitions
	outcome.Validation = validation
	outcome.Approval = request
	outcome.FinalStatus = v.final.String()
	if err != nil {
		return s.fail(outcome, start, err)
	}

	s.record(outcome, request)

	s.logger.Info("Invoice processed",
		"invoice_id", record.ID,
		"vendor", record.VendorName,
		"amount", record.TotalAmount,
		"validation", validation.OverallStatus,
		"level", request.Level,
		"final_status", outcome.FinalStatus,
		"processing_time_ms", outcome.ProcessingTimeMs,
	)

	s.emitIntake(ctx, &record, validation, request, transitions)
	return outcome, nil
}

// assessment is the validation verdict, routing and intake path for one invoice
type assessment struct {
	validation  *entity.ValidationResult
	request     *entity.ApprovalRequest
	transitions []domainwf.Transition
	final       domainwf.State
}

func (s *invoiceServiceImpl) assess(ctx context.Context, record *entity.InvoiceRecord) (assessment, error) {
	validation := s.evaluator.Evaluate(ctx, record, s.lookup)
	request := s.router.Route(ctx, record, validation)

	transitions, err := workflow.RunIntake(ctx, request.Level == entity.LevelAuto, domainwf.WithClock(s.now))
	if err != nil {
		return assessment{validation: validation, request: request}, err
	}
	return assessment{
		validation:  validation,
		request:     request,
		transitions: transitions,
		final:       transitions[len(transitions)-1].To,
	}, nil
}

// storedDuplicate reports whether another invoice with the same vendor and
// number is already stored
func (s *invoiceServiceImpl) storedDuplicate(ctx context.Context, record *entity.InvoiceRecord) (bool, error) {
	vendor := strings.TrimSpace(record.VendorName)
	number := strings.TrimSpace(record.InvoiceNumber)
	if vendor == "" || number == "" {
		return false, nil
	}

	matches, err := s.lookup.FindInvoicesByNumber(ctx, vendor, number)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	for _, m := range matches {
		if m.ID != record.ID {
			return true, nil
		}
	}
	return false, nil
}

// ProcessBatch processes invoices in parallel; results keep the input order
func (s *invoiceServiceImpl) ProcessBatch(ctx context.Context, invoices []*entity.InvoiceRecord) []*entity.ProcessingOutcome {
	results := make([]*entity.ProcessingOutcome, len(invoices))
	sem := make(chan struct{}, s.batchConcurrency)
	var wg sync.WaitGroup

	for i, inv := range invoices {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = errorOutcome(inv, ctx.Err())
			continue
		}

		wg.Add(1)
		go func(i int, inv *entity.InvoiceRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := s.Process(ctx, inv)
			if err != nil && outcome == nil {
				outcome = errorOutcome(inv, err)
			}
			results[i] = outcome
		}(i, inv)
	}

	wg.Wait()

	s.logger.Info("Batch processed", "count", len(invoices))
	return results
}

func (s *invoiceServiceImpl) Decide(ctx context.Context, invoiceID string, decision entity.ApprovalDecision) (*entity.ApprovalRequest, error) {
	return s.lifecycle.Decide(ctx, invoiceID, decision)
}

func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, invoiceID string) (*InvoiceDetails, error) {
	entry, err := s.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if entry == nil {
		return nil, &domainwf.InvoiceNotFoundError{InvoiceID: invoiceID}
	}

	validation, err := s.repos.Validations.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get validation: %w", err)
	}
	approval, err := s.repos.Approvals.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return &InvoiceDetails{Entry: entry, Validation: validation, Approval: approval}, nil
}

func (s *invoiceServiceImpl) ListInvoices(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceEntry, error) {
	if filter.Status != "" {
		if _, err := domainwf.ParseState(filter.Status); err != nil {
			return nil, err
		}
	}
	return s.repos.Invoices.List(ctx, filter)
}

func (s *invoiceServiceImpl) ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error) {
	return s.repos.Approvals.ListPending(ctx, limit)
}

func (s *invoiceServiceImpl) AuditTrail(ctx context.Context, invoiceID string) ([]*entity.AuditRecord, error) {
	entry, err := s.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if entry == nil {
		return nil, &domainwf.InvoiceNotFoundError{InvoiceID: invoiceID}
	}
	return s.repos.Audit.ListByInvoiceID(ctx, invoiceID)
}

func (s *invoiceServiceImpl) Metrics() entity.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *invoiceServiceImpl) Statistics(ctx context.Context) (*entity.Statistics, error) {
	return s.repos.Invoices.Statistics(ctx)
}

func (s *invoiceServiceImpl) fail(outcome *entity.ProcessingOutcome, start time.Time, err error) (*entity.ProcessingOutcome, error) {
	outcome.FinalStatus = "ERROR"
	outcome.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
	outcome.Errors = append(outcome.Errors, err.Error())

	s.mu.Lock()
	s.metrics.TotalProcessed++
	s.metrics.Failed++
	s.mu.Unlock()

	s.logger.Error("Invoice processing failed", "invoice_id", outcome.InvoiceID, "error", err)
	return outcome, err
}

func (s *invoiceServiceImpl) record(outcome *entity.ProcessingOutcome, request *entity.ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalProcessed++
	s.metrics.Successful++
	switch request.Level {
	case entity.LevelAuto:
		s.metrics.AutoApproved++
	case entity.LevelException:
		s.metrics.Exceptions++
	default:
		s.metrics.ManualReview++
	}

	s.totalMs += outcome.ProcessingTimeMs
	s.metrics.AvgProcessingTimeMs = float64(s.totalMs) / float64(s.metrics.Successful)
}

func (s *invoiceServiceImpl) emitIntake(
	ctx context.Context,
	inv *entity.InvoiceRecord,
	validation *entity.ValidationResult,
	request *entity.ApprovalRequest,
	transitions []domainwf.Transition,
) {
	if s.dispatcher == nil {
		return
	}

	received := event.NewEvent(event.TypeInvoiceReceived, inv.ID, map[string]interface{}{
		"vendor":         inv.VendorName,
		"invoice_number": inv.InvoiceNumber,
		"amount":         inv.TotalAmount,
		"currency":       inv.Currency,
	})
	correlation := received.CorrelationID
	events := []*event.Event{
		received,
		event.NewEventWithCorrelation(event.TypeInvoiceValidated, inv.ID, map[string]interface{}{
			"overall_status":   string(validation.OverallStatus),
			"can_auto_process": validation.CanAutoProcess,
			"exceptions":       len(validation.Exceptions),
		}, correlation),
		event.NewEventWithCorrelation(event.TypeInvoiceRouted, inv.ID, map[string]interface{}{
			"level":       string(request.Level),
			"assigned_to": request.AssignedTo,
			"priority":    string(request.Priority),
		}, correlation),
	}

	if request.Level == entity.LevelAuto {
		events = append(events, event.NewEventWithCorrelation(event.TypeAutoApproved, inv.ID, map[string]interface{}{
			"amount": inv.TotalAmount,
		}, correlation))
	} else {
		payload := map[string]interface{}{
			"request_id":  request.ID,
			"level":       string(request.Level),
			"assigned_to": request.AssignedTo,
			"priority":    string(request.Priority),
			"reason":      request.Reason,
			"amount":      request.Amount,
			"vendor":      request.VendorName,
		}
		if request.SLADeadline != nil {
			payload["sla_deadline"] = request.SLADeadline.Format(time.RFC3339)
		}
		events = append(events, event.NewEventWithCorrelation(event.TypeApprovalRequired, inv.ID, payload, correlation))
	}

	for _, tr := range transitions {
		events = append(events, event.NewEventWithCorrelation(event.TypeStatusChanged, inv.ID, map[string]interface{}{
			"previous_status": tr.From.String(),
			"new_status":      tr.To.String(),
			"trigger":         tr.Trigger.String(),
		}, correlation))
	}

	for _, evt := range events {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

func intakeAudit(invoiceID string, tr domainwf.Transition, validation *entity.ValidationResult, request *entity.ApprovalRequest) *entity.AuditRecord {
	var detail string
	switch tr.Trigger {
	case domainwf.TriggerValidate:
		detail = fmt.Sprintf("validation %s, exceptions %v", validation.OverallStatus, validation.Exceptions)
	case domainwf.TriggerRoute:
		detail = fmt.Sprintf("routed to %s (%s), priority %s", request.Level, request.AssignedTo, request.Priority)
	default:
		detail = request.Reason
	}

	return &entity.AuditRecord{
		InvoiceID: invoiceID,
		FromState: tr.From.String(),
		ToState:   tr.To.String(),
		Trigger:   tr.Trigger.String(),
		Actor:     entity.ActorSystem,
		Detail:    detail,
		Timestamp: tr.At,
	}
}

func errorOutcome(inv *entity.InvoiceRecord, err error) *entity.ProcessingOutcome {
	outcome := &entity.ProcessingOutcome{FinalStatus: "ERROR", Errors: []string{err.Error()}}
	if inv != nil {
		outcome.InvoiceID = inv.ID
	}
	return outcome
}
