package port

import (
	"context"
	"io"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// ExportRow is one approved invoice handed to downstream consumers
type ExportRow struct {
	Invoice  entity.InvoiceRecord
	Status   string
	Approval *entity.ApprovalRequest
}

// InvoiceExporter renders invoices into a report document
type InvoiceExporter interface {
	WriteApproved(ctx context.Context, w io.Writer, rows []ExportRow) error
	WritePendingQueue(ctx context.Context, w io.Writer, requests []*entity.ApprovalRequest) error
}
