package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/service"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/notification"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoices service.InvoiceService
	export   service.ExportService
	health   HealthFunc
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(invoices service.InvoiceService, export service.ExportService, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		invoices: invoices,
		export:   export,
		health:   health,
		logger:   logger,
		now:      time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// BatchRequest is the body of POST /api/invoices/batch
type BatchRequest struct {
	Invoices []*entity.InvoiceRecord `json:"invoices" binding:"required"`
}

// DecisionRequest is the body of POST /api/invoices/:id/decision
type DecisionRequest struct {
	ApproverName  string `json:"approver_name"`
	ApproverEmail string `json:"approver_email"`
	Comments      string `json:"comments"`
	Action        string `json:"action"`
}

// PageQuery holds paging query parameters
type PageQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// ProcessInvoice handles POST /api/invoices
func (h *Handlers) ProcessInvoice(c *gin.Context) {
	var inv entity.InvoiceRecord
	if err := c.ShouldBindJSON(&inv); err != nil {
		h.badRequest(c, "invalid invoice payload", err)
		return
	}

	outcome, err := h.invoices.Process(c.Request.Context(), &inv)
	if err != nil {
		h.fail(c, "Failed to process invoice", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: outcome})
}

// ProcessBatch handles POST /api/invoices/batch. Per-invoice failures are
// reported inside the outcomes.
func (h *Handlers) ProcessBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid batch payload", err)
		return
	}
	if len(req.Invoices) == 0 {
		h.badRequest(c, "batch contains no invoices", nil)
		return
	}

	outcomes := h.invoices.ProcessBatch(c.Request.Context(), req.Invoices)
	c.JSON(http.StatusOK, Response{Success: true, Data: outcomes})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	query, ok := h.pageQuery(c)
	if !ok {
		return
	}

	entries, err := h.invoices.ListInvoices(c.Request.Context(), port.InvoiceFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		h.fail(c, "Failed to list invoices", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	details, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: details})
}

// AuditTrail handles GET /api/invoices/:id/audit
func (h *Handlers) AuditTrail(c *gin.Context) {
	records, err := h.invoices.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get audit trail", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// Decide handles POST /api/invoices/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid decision payload", err)
		return
	}

	id := c.Param("id")
	updated, err := h.invoices.Decide(c.Request.Context(), id, entity.ApprovalDecision{
		ApproverName:  req.ApproverName,
		ApproverEmail: req.ApproverEmail,
		Comments:      req.Comments,
		Action:        entity.DecisionAction(req.Action),
	})
	if err != nil {
		h.fail(c, "Failed to record decision", err)
		return
	}

	h.logger.Info("Decision recorded", "invoice_id", id, "status", updated.Status)
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// PendingApprovals handles GET /api/approvals/pending
func (h *Handlers) PendingApprovals(c *gin.Context) {
	query, ok := h.pageQuery(c)
	if !ok {
		return
	}

	pending, err := h.invoices.ListPending(c.Request.Context(), query.Limit)
	if err != nil {
		h.fail(c, "Failed to list pending approvals", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

// ApprovalDigest handles GET /api/approvals/digest
func (h *Handlers) ApprovalDigest(c *gin.Context) {
	pending, err := h.invoices.ListPending(c.Request.Context(), 0)
	if err != nil {
		h.fail(c, "Failed to list pending approvals", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: notification.Aggregate(pending, h.now())})
}

// Metrics handles GET /api/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.invoices.Metrics()})
}

// Statistics handles GET /api/statistics
func (h *Handlers) Statistics(c *gin.Context) {
	stats, err := h.invoices.Statistics(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to compute statistics", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// ExportApproved handles GET /api/export/approved
func (h *Handlers) ExportApproved(c *gin.Context) {
	var buf bytes.Buffer
	count, err := h.export.ExportApproved(c.Request.Context(), &buf)
	if err != nil {
		h.fail(c, "Failed to export approved invoices", err)
		return
	}
	h.sendWorkbook(c, "approved_invoices", count, &buf)
}

// ExportPending handles GET /api/export/pending
func (h *Handlers) ExportPending(c *gin.Context) {
	var buf bytes.Buffer
	count, err := h.export.ExportPendingQueue(c.Request.Context(), &buf)
	if err != nil {
		h.fail(c, "Failed to export pending queue", err)
		return
	}
	h.sendWorkbook(c, "pending_approvals", count, &buf)
}

func (h *Handlers) sendWorkbook(c *gin.Context, name string, count int, buf *bytes.Buffer) {
	filename := name + "_" + h.now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("X-Export-Count", strconv.Itoa(count))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) pageQuery(c *gin.Context) (PageQuery, bool) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return q, false
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		h.logger.Error("Bad request", "path", c.FullPath(), "error", err)
	}
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps service errors onto HTTP statuses
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "error", err)
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrInvalidDecision), errors.Is(err, domainwf.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrStaleDecision), errors.Is(err, service.ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
