package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/config"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/container"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage:   config.StorageConfig{Driver: config.DriverMemory},
		Rules:     rules.DefaultConfig(),
		Approvers: map[string]string{"manager": "maria@example.com", "director": "dana@example.com"},
		Worker:    config.WorkerConfig{BatchConcurrency: 2, SLAPollInterval: time.Hour},
	}

	c, err := container.NewContainer(cfg, zap.NewNop(), container.WithoutWorkers())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Repositories().MasterData.UpsertVendor(context.Background(), &entity.VendorRecord{
		Name: "Acme Inc", Active: true, Approved: true,
	}))

	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, Dependencies{
		Invoices: c.Services().Invoice,
		Export:   c.Services().Export,
		Health: func(ctx context.Context) (bool, interface{}) {
			h := c.Health(ctx)
			return h.Overall, h.Components
		},
	}, &mockLogger{})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func invoicePayload(id, number string, total float64) map[string]interface{} {
	return map[string]interface{}{
		"id":             id,
		"vendor_name":    "Acme Inc",
		"invoice_number": number,
		"invoice_date":   time.Now().Format("2006-01-02"),
		"total_amount":   total,
		"currency":       "USD",
	}
}

func TestHealthCheck(t *testing.T) {
	s := setupServer(t)

	w, resp := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"status":"healthy"`)
}

func TestProcessAndDecide(t *testing.T) {
	s := setupServer(t)

	w, resp := doJSON(t, s, http.MethodPost, "/api/invoices", invoicePayload("inv-1", "INV-1", 12000))
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)

	var outcome entity.ProcessingOutcome
	require.NoError(t, json.Unmarshal(resp.Data, &outcome))
	assert.Equal(t, "PENDING_APPROVAL", outcome.FinalStatus)
	assert.Equal(t, entity.LevelManager, outcome.Approval.Level)
	assert.Equal(t, "maria@example.com", outcome.Approval.AssignedTo)

	w, _ = doJSON(t, s, http.MethodPost, "/api/invoices", invoicePayload("inv-1", "INV-1", 12000))
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = doJSON(t, s, http.MethodGet, "/api/approvals/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []entity.ApprovalRequest
	require.NoError(t, json.Unmarshal(resp.Data, &pending))
	require.Len(t, pending, 1)

	w, resp = doJSON(t, s, http.MethodGet, "/api/approvals/digest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "maria@example.com")

	decision := map[string]string{
		"approver_name":  "Maria",
		"approver_email": "maria@example.com",
		"action":         "approve",
	}
	w, resp = doJSON(t, s, http.MethodPost, "/api/invoices/inv-1/decision", decision)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	var decided entity.ApprovalRequest
	require.NoError(t, json.Unmarshal(resp.Data, &decided))
	assert.Equal(t, entity.RequestApproved, decided.Status)

	w, _ = doJSON(t, s, http.MethodPost, "/api/invoices/inv-1/decision", decision)
	assert.Equal(t, http.StatusConflict, w.Code, "second decision is stale")

	w, resp = doJSON(t, s, http.MethodGet, "/api/invoices/inv-1/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trail []entity.AuditRecord
	require.NoError(t, json.Unmarshal(resp.Data, &trail))
	assert.Equal(t, "APPROVED", trail[len(trail)-1].ToState)

	w, resp = doJSON(t, s, http.MethodGet, "/api/invoices?status=APPROVED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "inv-1")
}

func TestDecide_Errors(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
	}{
		{
			name:   "unknown invoice",
			path:   "/api/invoices/missing/decision",
			body:   map[string]string{"approver_name": "A", "approver_email": "a@example.com", "action": "approve"},
			status: http.StatusNotFound,
		},
		{
			name:   "missing email",
			path:   "/api/invoices/missing/decision",
			body:   map[string]string{"approver_name": "A", "action": "approve"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown action",
			path:   "/api/invoices/missing/decision",
			body:   map[string]string{"approver_name": "A", "approver_email": "a@example.com", "action": "escalate"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetInvoice_NotFound(t *testing.T) {
	s := setupServer(t)

	w, _ := doJSON(t, s, http.MethodGet, "/api/invoices/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, s, http.MethodGet, "/api/invoices?status=PENDING", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessBatch_AndMetrics(t *testing.T) {
	s := setupServer(t)

	body := map[string]interface{}{
		"invoices": []interface{}{
			invoicePayload("b-1", "B-1", 1200),
			invoicePayload("b-2", "B-2", 30000),
			map[string]interface{}{"id": "b-3", "invoice_date": time.Now().Format("2006-01-02"), "total_amount": 10},
		},
	}
	w, resp := doJSON(t, s, http.MethodPost, "/api/invoices/batch", body)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)

	var outcomes []entity.ProcessingOutcome
	require.NoError(t, json.Unmarshal(resp.Data, &outcomes))
	require.Len(t, outcomes, 3)
	assert.Equal(t, "AUTO_APPROVED", outcomes[0].FinalStatus)
	assert.Equal(t, entity.LevelDirector, outcomes[1].Approval.Level)
	assert.Equal(t, entity.LevelException, outcomes[2].Approval.Level)

	w, resp = doJSON(t, s, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metrics entity.Metrics
	require.NoError(t, json.Unmarshal(resp.Data, &metrics))
	assert.EqualValues(t, 3, metrics.TotalProcessed)
	assert.EqualValues(t, 1, metrics.AutoApproved)
	assert.EqualValues(t, 1, metrics.Exceptions)

	w, resp = doJSON(t, s, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats entity.Statistics
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.EqualValues(t, 3, stats.TotalInvoices)

	w, _ = doJSON(t, s, http.MethodPost, "/api/invoices/batch", map[string]interface{}{"invoices": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportApproved(t *testing.T) {
	s := setupServer(t)

	w, _ := doJSON(t, s, http.MethodPost, "/api/invoices", invoicePayload("x-1", "X-1", 800))
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/export/approved", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Export-Count"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
