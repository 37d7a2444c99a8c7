package port

import (
	"context"
	"errors"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// ErrAlreadyExists is wrapped by Create when the key is taken
var ErrAlreadyExists = errors.New("record already exists")

// TransactionManager runs fn inside a transaction carried by ctx
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	Status string
	Limit  int
	Offset int
}

// InvoiceRepository stores invoices keyed by id with a status column.
// Get methods return nil, nil when nothing matches.
type InvoiceRepository interface {
	Create(ctx context.Context, entry *entity.InvoiceEntry) error
	GetByID(ctx context.Context, id string) (*entity.InvoiceEntry, error)
	UpdateStatus(ctx context.Context, id, status string) error
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.InvoiceEntry, error)
	Statistics(ctx context.Context) (*entity.Statistics, error)
}

// ValidationRepository stores validation snapshots
type ValidationRepository interface {
	Save(ctx context.Context, result *entity.ValidationResult) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ValidationResult, error)
}

// ApprovalRepository stores approval requests and their decisions
type ApprovalRepository interface {
	Create(ctx context.Context, req *entity.ApprovalRequest) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ApprovalRequest, error)

	// CompareAndSetStatus moves the request from one status to another and
	// reports whether this call performed the change
	CompareAndSetStatus(ctx context.Context, invoiceID string, from, to entity.RequestStatus, decidedAt time.Time) (bool, error)

	// AttachDecision records the decision; a request holds at most one
	AttachDecision(ctx context.Context, invoiceID string, decision *entity.ApprovalDecision) error

	ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error)

	// ListOverdue returns pending requests past their deadline whose breach
	// has not been recorded yet
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalRequest, error)

	// MarkSLABreached records the breach on a pending request and reports
	// whether this call recorded it
	MarkSLABreached(ctx context.Context, invoiceID string, at time.Time) (bool, error)
}

// AuditRepository is the append-only lifecycle trail
type AuditRepository interface {
	Append(ctx context.Context, record *entity.AuditRecord) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.AuditRecord, error)
}
