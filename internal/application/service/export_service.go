package service

import (
	"context"
	"fmt"
	"io"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
)

// ExportService hands approved invoices to downstream consumers
type ExportService interface {
	ExportApproved(ctx context.Context, w io.Writer) (int, error)
	ExportPendingQueue(ctx context.Context, w io.Writer) (int, error)
}

type exportServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	approvalRepo port.ApprovalRepository
	exporter     port.InvoiceExporter
	pageSize     int
	logger       Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	invoiceRepo port.InvoiceRepository,
	approvalRepo port.ApprovalRepository,
	exporter port.InvoiceExporter,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		invoiceRepo:  invoiceRepo,
		approvalRepo: approvalRepo,
		exporter:     exporter,
		pageSize:     500,
		logger:       logger,
	}
}

// ExportApproved writes every auto-approved and approved invoice to w
func (s *exportServiceImpl) ExportApproved(ctx context.Context, w io.Writer) (int, error) {
	var rows []port.ExportRow

	for _, state := range []domainwf.State{domainwf.StateAutoApproved, domainwf.StateApproved} {
		entries, err := s.listAll(ctx, state.String())
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			req, err := s.approvalRepo.GetByInvoiceID(ctx, entry.Invoice.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to get approval for %s: %w", entry.Invoice.ID, err)
			}
			rows = append(rows, port.ExportRow{Invoice: entry.Invoice, Status: entry.Status, Approval: req})
		}
	}

	if err := s.exporter.WriteApproved(ctx, w, rows); err != nil {
		s.logger.Error("Failed to export approved invoices", "error", err)
		return 0, fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info("Approved invoices exported", "count", len(rows))
	return len(rows), nil
}

// ExportPendingQueue writes the pending approval queue to w
func (s *exportServiceImpl) ExportPendingQueue(ctx context.Context, w io.Writer) (int, error) {
	requests, err := s.approvalRepo.ListPending(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	if err := s.exporter.WritePendingQueue(ctx, w, requests); err != nil {
		s.logger.Error("Failed to export pending queue", "error", err)
		return 0, fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info("Pending queue exported", "count", len(requests))
	return len(requests), nil
}

func (s *exportServiceImpl) listAll(ctx context.Context, status string) ([]*entity.InvoiceEntry, error) {
	var all []*entity.InvoiceEntry
	for offset := 0; ; offset += s.pageSize {
		page, err := s.invoiceRepo.List(ctx, port.InvoiceFilter{Status: status, Limit: s.pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s invoices: %w", status, err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
	}
}
