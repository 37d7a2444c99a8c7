package entity

import (
	"strings"
	"time"
)

// LineItem is a single line of an invoice
type LineItem struct {
	LineNumber      int     `json:"line_number"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	Amount          float64 `json:"amount"`
	TaxAmount       float64 `json:"tax_amount,omitempty"`
	POLineReference string  `json:"po_line_reference,omitempty"`
}

// InvoiceRecord holds the fields extracted from an invoice document.
// It is produced by extraction and never modified by the engine; absent
// optional amounts are nil rather than zero.
type InvoiceRecord struct {
	ID                   string     `json:"id"`
	VendorName           string     `json:"vendor_name"`
	InvoiceNumber        string     `json:"invoice_number"`
	InvoiceDate          Date       `json:"invoice_date"`
	DueDate              *Date      `json:"due_date,omitempty"`
	PONumber             string     `json:"po_number,omitempty"`
	Subtotal             *float64   `json:"subtotal,omitempty"`
	TaxAmount            *float64   `json:"tax_amount,omitempty"`
	TotalAmount          float64    `json:"total_amount"`
	Currency             string     `json:"currency"`
	LineItems            []LineItem `json:"line_items,omitempty"`
	ExtractionConfidence float64    `json:"extraction_confidence,omitempty"`
	DocumentPath         string     `json:"document_path,omitempty"`
	ReceivedAt           time.Time  `json:"received_at"`
}

// HasPO reports whether the invoice references a purchase order
func (i *InvoiceRecord) HasPO() bool {
	return strings.TrimSpace(i.PONumber) != ""
}

// HasBreakdown reports whether both subtotal and tax were extracted
func (i *InvoiceRecord) HasBreakdown() bool {
	return i.Subtotal != nil && i.TaxAmount != nil
}

// SameVendor compares vendor names case-insensitively
func SameVendor(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// InvoiceEntry is a stored invoice together with its lifecycle status
type InvoiceEntry struct {
	Invoice          InvoiceRecord `json:"invoice"`
	Status           string        `json:"status"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Float returns a pointer to v, for optional amounts
func Float(v float64) *float64 {
	return &v
}
