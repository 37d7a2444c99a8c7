// Package export renders invoices for downstream ERP and finance consumers
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// Sheet names
const (
	ApprovedSheet = "Approved"
	PendingSheet  = "Pending Approvals"
)

var approvedHeaders = []string{
	"Invoice ID", "Vendor", "Invoice Number", "Invoice Date", "Due Date", "PO Number",
	"Currency", "Total Amount", "Status", "Approval Level", "Approved By", "Decided At",
}

var pendingHeaders = []string{
	"Request ID", "Invoice ID", "Vendor", "Amount", "Currency", "Level",
	"Assigned To", "Priority", "SLA Deadline", "Reason",
}

// ExcelExporter writes xlsx workbooks
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new ExcelExporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// WriteApproved writes one row per approved invoice
func (e *ExcelExporter) WriteApproved(ctx context.Context, w io.Writer, rows []port.ExportRow) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := e.prepareSheet(file, ApprovedSheet, approvedHeaders); err != nil {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		inv := row.Invoice
		values := []interface{}{
			inv.ID, inv.VendorName, inv.InvoiceNumber, inv.InvoiceDate.String(), dueDate(inv.DueDate),
			inv.PONumber, inv.Currency, inv.TotalAmount, row.Status,
		}
		values = append(values, approvalColumns(row.Approval)...)

		if err := setRow(file, ApprovedSheet, i+2, values); err != nil {
			return err
		}
	}

	return e.write(file, w, ApprovedSheet, len(rows))
}

// WritePendingQueue writes the pending approval queue in the order given
func (e *ExcelExporter) WritePendingQueue(ctx context.Context, w io.Writer, requests []*entity.ApprovalRequest) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := e.prepareSheet(file, PendingSheet, pendingHeaders); err != nil {
		return err
	}

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}

		values := []interface{}{
			req.ID, req.InvoiceID, req.VendorName, req.Amount, req.Currency, string(req.Level),
			req.AssignedTo, string(req.Priority), formatTime(req.SLADeadline), req.Reason,
		}
		if err := setRow(file, PendingSheet, i+2, values); err != nil {
			return err
		}
	}

	return e.write(file, w, PendingSheet, len(requests))
}

func (e *ExcelExporter) prepareSheet(file *excelize.File, sheet string, headers []string) error {
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(file, sheet, 1, values); err != nil {
		return err
	}

	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (e *ExcelExporter) write(file *excelize.File, w io.Writer, sheet string, count int) error {
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Workbook exported",
		zap.String("sheet", sheet),
		zap.Int("rows", count))
	return nil
}

func setRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}

func approvalColumns(req *entity.ApprovalRequest) []interface{} {
	if req == nil {
		return []interface{}{"", "", ""}
	}

	approvedBy := req.AssignedTo
	if req.Decision != nil {
		approvedBy = req.Decision.ApproverEmail
	}
	return []interface{}{string(req.Level), approvedBy, formatTime(req.DecidedAt)}
}

func dueDate(d *entity.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var _ port.InvoiceExporter = (*ExcelExporter)(nil)
