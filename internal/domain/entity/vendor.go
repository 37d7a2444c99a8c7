package entity

import "time"

// PO statuses
const (
	POStatusOpen          = "open"
	POStatusClosed        = "closed"
	POStatusFullyInvoiced = "fully_invoiced"
)

// VendorRecord is master data about a supplier
type VendorRecord struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Active   bool   `json:"active" yaml:"active"`
	Approved bool   `json:"approved" yaml:"approved"`
	TaxID    string `json:"tax_id,omitempty" yaml:"tax_id"`
}

// Eligible reports whether invoices from this vendor may be paid
func (v *VendorRecord) Eligible() bool {
	return v.Active && v.Approved
}

// PORecord is a purchase order used for 3-way matching
type PORecord struct {
	Number         string    `json:"po_number" yaml:"po_number"`
	VendorName     string    `json:"vendor_name" yaml:"vendor_name"`
	TotalAmount    float64   `json:"total_amount" yaml:"total_amount"`
	InvoicedAmount float64   `json:"invoiced_amount" yaml:"invoiced_amount"`
	Currency       string    `json:"currency" yaml:"currency"`
	Status         string    `json:"status" yaml:"status"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Remaining returns the amount still available for invoicing
func (p *PORecord) Remaining() float64 {
	return p.TotalAmount - p.InvoicedAmount
}

// IsOpen reports whether the PO can still be invoiced against
func (p *PORecord) IsOpen() bool {
	return p.Status == POStatusOpen && p.Remaining() > 0
}
