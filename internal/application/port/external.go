package port

import (
	"context"
	"errors"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// ErrLookupUnavailable marks a lookup that could not be answered
var ErrLookupUnavailable = errors.New("lookup unavailable")

// Lookup answers master data and history questions for validation.
// Absent records are nil, nil; errors mean the source could not be queried.
type Lookup interface {
	// FindVendor matches the vendor name case-insensitively
	FindVendor(ctx context.Context, name string) (*entity.VendorRecord, error)

	FindPO(ctx context.Context, number string) (*entity.PORecord, error)

	// FindRecentInvoices returns the vendor's invoices received within windowDays
	FindRecentInvoices(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error)

	// FindInvoicesByNumber returns every stored invoice with this vendor and number
	FindInvoicesByNumber(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error)
}

// MasterDataWriter loads vendors and purchase orders
type MasterDataWriter interface {
	UpsertVendor(ctx context.Context, vendor *entity.VendorRecord) error
	UpsertPO(ctx context.Context, po *entity.PORecord) error
}

// ApproverDirectory resolves the approver for a routing level
type ApproverDirectory interface {
	ApproverFor(ctx context.Context, level entity.ApprovalLevel) (string, error)
}

// Notification is a message for a person or team
type Notification struct {
	Recipient string
	Subject   string
	Body      string
	InvoiceID string
	Priority  entity.Priority
}

// Notifier delivers notifications to approvers and teams
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
