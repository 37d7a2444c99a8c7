package entity

import "time"

// AuditRecord is one append-only entry in an invoice's lifecycle trail
type AuditRecord struct {
	ID        int64     `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Trigger   string    `json:"trigger"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
