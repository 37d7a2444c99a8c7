package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

var (
	_ port.InvoiceRepository    = (*InvoiceRepository)(nil)
	_ port.ValidationRepository = (*ValidationRepository)(nil)
	_ port.ApprovalRepository   = (*ApprovalRepository)(nil)
	_ port.AuditRepository      = (*AuditRepository)(nil)
	_ port.Lookup               = (*LookupRepository)(nil)
	_ port.MasterDataWriter     = (*LookupRepository)(nil)
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct{ s *Store }

func (r *InvoiceRepository) Create(ctx context.Context, entry *entity.InvoiceEntry) error {
	return r.s.write(ctx, func(d *dataset) error {
		if _, exists := d.invoices[entry.Invoice.ID]; exists {
			return fmt.Errorf("invoice %s: %w", entry.Invoice.ID, port.ErrAlreadyExists)
		}
		d.invoices[entry.Invoice.ID] = *entry
		return nil
	})
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.InvoiceEntry, error) {
	var out *entity.InvoiceEntry
	r.s.read(func(d *dataset) {
		if entry, ok := d.invoices[id]; ok {
			out = &entry
		}
	})
	return out, nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.s.write(ctx, func(d *dataset) error {
		entry, ok := d.invoices[id]
		if !ok {
			return fmt.Errorf("invoice not found: %s", id)
		}
		entry.Status = status
		entry.UpdatedAt = r.s.now()
		d.invoices[id] = entry
		return nil
	})
}

func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceEntry, error) {
	var out []*entity.InvoiceEntry
	r.s.read(func(d *dataset) {
		for _, entry := range d.invoices {
			if filter.Status != "" && entry.Status != filter.Status {
				continue
			}
			e := entry
			out = append(out, &e)
		}
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Invoice.ID < out[j].Invoice.ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entity.InvoiceEntry{}, nil
		}
		out = out[filter.Offset:]
	}
	return limitSlice(out, filter.Limit), nil
}

func (r *InvoiceRepository) Statistics(ctx context.Context) (*entity.Statistics, error) {
	stats := &entity.Statistics{ByStatus: make(map[string]int64)}
	var totalMs int64
	r.s.read(func(d *dataset) {
		for _, entry := range d.invoices {
			stats.TotalInvoices++
			stats.ByStatus[entry.Status]++
			stats.TotalAmount += entry.Invoice.TotalAmount
			totalMs += entry.ProcessingTimeMs
		}
	})
	if stats.TotalInvoices > 0 {
		stats.AvgProcessingTimeMs = float64(totalMs) / float64(stats.TotalInvoices)
	}
	return stats, nil
}

// ValidationRepository implements port.ValidationRepository
type ValidationRepository struct{ s *Store }

func (r *ValidationRepository) Save(ctx context.Context, result *entity.ValidationResult) error {
	return r.s.write(ctx, func(d *dataset) error {
		d.validations[result.InvoiceID] = *result
		return nil
	})
}

func (r *ValidationRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ValidationResult, error) {
	var out *entity.ValidationResult
	r.s.read(func(d *dataset) {
		if v, ok := d.validations[invoiceID]; ok {
			out = &v
		}
	})
	return out, nil
}

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct{ s *Store }

func (r *ApprovalRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	return r.s.write(ctx, func(d *dataset) error {
		if _, exists := d.approvals[req.InvoiceID]; exists {
			return fmt.Errorf("approval request for %s: %w", req.InvoiceID, port.ErrAlreadyExists)
		}
		d.approvals[req.InvoiceID] = *req
		return nil
	})
}

func (r *ApprovalRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ApprovalRequest, error) {
	var out *entity.ApprovalRequest
	r.s.read(func(d *dataset) {
		if req, ok := d.approvals[invoiceID]; ok {
			out = &req
		}
	})
	return out, nil
}

func (r *ApprovalRepository) CompareAndSetStatus(ctx context.Context, invoiceID string, from, to entity.RequestStatus, decidedAt time.Time) (bool, error) {
	swapped := false
	err := r.s.write(ctx, func(d *dataset) error {
		req, ok := d.approvals[invoiceID]
		if !ok || req.Status != from {
			return nil
		}
		req.Status = to
		req.DecidedAt = &decidedAt
		d.approvals[invoiceID] = req
		swapped = true
		return nil
	})
	return swapped, err
}

func (r *ApprovalRepository) AttachDecision(ctx context.Context, invoiceID string, decision *entity.ApprovalDecision) error {
	return r.s.write(ctx, func(d *dataset) error {
		req, ok := d.approvals[invoiceID]
		if !ok {
			return fmt.Errorf("approval request not found: %s", invoiceID)
		}
		if req.Decision != nil {
			return fmt.Errorf("decision for %s: %w", invoiceID, port.ErrAlreadyExists)
		}
		recorded := *decision
		req.Decision = &recorded
		d.approvals[invoiceID] = req
		return nil
	})
}

func (r *ApprovalRepository) ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error) {
	return r.list(limit, func(req *entity.ApprovalRequest) bool { return req.IsPending() }), nil
}

func (r *ApprovalRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalRequest, error) {
	return r.list(limit, func(req *entity.ApprovalRequest) bool { return req.BreachUnreported(now) }), nil
}

func (r *ApprovalRepository) MarkSLABreached(ctx context.Context, invoiceID string, at time.Time) (bool, error) {
	marked := false
	err := r.s.write(ctx, func(d *dataset) error {
		req, ok := d.approvals[invoiceID]
		if !ok || !req.IsPending() || req.SLABreachedAt != nil {
			return nil
		}
		req.SLABreachedAt = &at
		d.approvals[invoiceID] = req
		marked = true
		return nil
	})
	return marked, err
}

func (r *ApprovalRepository) list(limit int, keep func(*entity.ApprovalRequest) bool) []*entity.ApprovalRequest {
	out := []*entity.ApprovalRequest{}
	r.s.read(func(d *dataset) {
		for _, req := range d.approvals {
			req := req
			if keep(&req) {
				out = append(out, &req)
			}
		}
	})
	sortQueue(out)
	return limitSlice(out, limit)
}

// AuditRepository implements port.AuditRepository
type AuditRepository struct{ s *Store }

func (r *AuditRepository) Append(ctx context.Context, record *entity.AuditRecord) error {
	return r.s.write(ctx, func(d *dataset) error {
		record.ID = d.nextAuditID
		d.nextAuditID++
		d.audit = append(d.audit, *record)
		return nil
	})
}

func (r *AuditRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.AuditRecord, error) {
	out := []*entity.AuditRecord{}
	r.s.read(func(d *dataset) {
		for _, rec := range d.audit {
			if rec.InvoiceID == invoiceID {
				rec := rec
				out = append(out, &rec)
			}
		}
	})
	return out, nil
}

// LookupRepository implements port.Lookup and port.MasterDataWriter
type LookupRepository struct{ s *Store }

func (r *LookupRepository) FindVendor(ctx context.Context, name string) (*entity.VendorRecord, error) {
	var out *entity.VendorRecord
	r.s.read(func(d *dataset) {
		if v, ok := d.vendors[key(name)]; ok {
			out = &v
		}
	})
	return out, nil
}

func (r *LookupRepository) FindPO(ctx context.Context, number string) (*entity.PORecord, error) {
	var out *entity.PORecord
	r.s.read(func(d *dataset) {
		if po, ok := d.pos[key(number)]; ok {
			out = &po
		}
	})
	return out, nil
}

func (r *LookupRepository) FindRecentInvoices(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
	cutoff := r.s.now().AddDate(0, 0, -windowDays)
	var out []entity.InvoiceRecord
	r.s.read(func(d *dataset) {
		for _, entry := range d.invoices {
			if entity.SameVendor(entry.Invoice.VendorName, vendor) && !entry.Invoice.ReceivedAt.Before(cutoff) {
				out = append(out, entry.Invoice)
			}
		}
	})
	sortByReceived(out)
	return out, nil
}

func (r *LookupRepository) FindInvoicesByNumber(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error) {
	var out []entity.InvoiceRecord
	r.s.read(func(d *dataset) {
		for _, entry := range d.invoices {
			if entity.SameVendor(entry.Invoice.VendorName, vendor) && key(entry.Invoice.InvoiceNumber) == key(number) {
				out = append(out, entry.Invoice)
			}
		}
	})
	sortByReceived(out)
	return out, nil
}

func (r *LookupRepository) UpsertVendor(ctx context.Context, vendor *entity.VendorRecord) error {
	if key(vendor.Name) == "" {
		return fmt.Errorf("vendor name is required")
	}
	return r.s.write(ctx, func(d *dataset) error {
		d.vendors[key(vendor.Name)] = *vendor
		return nil
	})
}

func (r *LookupRepository) UpsertPO(ctx context.Context, po *entity.PORecord) error {
	if key(po.Number) == "" {
		return fmt.Errorf("po number is required")
	}
	return r.s.write(ctx, func(d *dataset) error {
		d.pos[key(po.Number)] = *po
		return nil
	})
}

func sortByReceived(records []entity.InvoiceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})
}
