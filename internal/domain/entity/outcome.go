package entity

// ProcessingOutcome bundles what one pass of the pipeline produced
type ProcessingOutcome struct {
	InvoiceID        string            `json:"invoice_id"`
	Validation       *ValidationResult `json:"validation"`
	Approval         *ApprovalRequest  `json:"approval"`
	FinalStatus      string            `json:"final_status"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Errors           []string          `json:"errors,omitempty"`
}

// RequiresHuman reports whether the outcome left a pending approval
func (o *ProcessingOutcome) RequiresHuman() bool {
	return o.Approval != nil && o.Approval.IsPending()
}

// Metrics are running counters kept by the orchestrator
type Metrics struct {
	TotalProcessed      int64   `json:"total_processed"`
	Successful          int64   `json:"successful"`
	Failed              int64   `json:"failed"`
	AutoApproved        int64   `json:"auto_approved"`
	ManualReview        int64   `json:"manual_review"`
	Exceptions          int64   `json:"exceptions"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}

// Statistics are aggregates computed by the store
type Statistics struct {
	TotalInvoices       int64            `json:"total_invoices"`
	ByStatus            map[string]int64 `json:"by_status"`
	TotalAmount         float64          `json:"total_amount"`
	AvgProcessingTimeMs float64          `json:"avg_processing_time_ms"`
}
