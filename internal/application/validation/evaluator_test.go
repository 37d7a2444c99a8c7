package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

// mockLookup implements port.Lookup for testing
type mockLookup struct {
	findVendorFunc           func(ctx context.Context, name string) (*entity.VendorRecord, error)
	findPOFunc               func(ctx context.Context, number string) (*entity.PORecord, error)
	findRecentInvoicesFunc   func(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error)
	findInvoicesByNumberFunc func(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error)
}

var _ port.Lookup = (*mockLookup)(nil)

func (m *mockLookup) FindVendor(ctx context.Context, name string) (*entity.VendorRecord, error) {
	if m.findVendorFunc != nil {
		return m.findVendorFunc(ctx, name)
	}
	return &entity.VendorRecord{Name: name, Active: true, Approved: true}, nil
}

func (m *mockLookup) FindPO(ctx context.Context, number string) (*entity.PORecord, error) {
	if m.findPOFunc != nil {
		return m.findPOFunc(ctx, number)
	}
	return nil, nil
}

func (m *mockLookup) FindRecentInvoices(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
	if m.findRecentInvoicesFunc != nil {
		return m.findRecentInvoicesFunc(ctx, vendor, windowDays)
	}
	return nil, nil
}

func (m *mockLookup) FindInvoicesByNumber(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error) {
	if m.findInvoicesByNumberFunc != nil {
		return m.findInvoicesByNumberFunc(ctx, vendor, number)
	}
	return nil, nil
}

// mockLogger implements Logger for testing
type mockLogger struct {
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

var testNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T, mutate func(*rules.Config)) *Evaluator {
	t.Helper()
	cfg := rules.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEvaluator(cfg, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return e
}

func validInvoice() *entity.InvoiceRecord {
	return &entity.InvoiceRecord{
		ID:            "inv-1",
		VendorName:    "Acme Corp",
		InvoiceNumber: "INV-001",
		InvoiceDate:   entity.NewDate(2024, 6, 1),
		Subtotal:      entity.Float(1000),
		TaxAmount:     entity.Float(100),
		TotalAmount:   1100,
		Currency:      "USD",
		ReceivedAt:    testNow,
	}
}

func TestNewEvaluator_RejectsInvalidConfig(t *testing.T) {
	cfg := rules.DefaultConfig()
	cfg.ManagerThreshold = 1000

	e, err := NewEvaluator(cfg)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, rules.ErrInvalidConfig)
}

func TestEvaluate_CleanInvoicePasses(t *testing.T) {
	e := newTestEvaluator(t, nil)

	result := e.Evaluate(context.Background(), validInvoice(), &mockLookup{})

	assert.Equal(t, entity.ValidationPassed, result.OverallStatus)
	assert.True(t, result.CanAutoProcess)
	assert.Empty(t, result.Exceptions)
	assert.Equal(t, testNow, result.ValidatedAt)

	require.Len(t, result.Checks, 6)
	names := make([]string, 0, len(result.Checks))
	for _, c := range result.Checks {
		names = append(names, c.Name)
		assert.Equal(t, entity.ValidationPassed, c.Status, c.Name)
	}
	assert.Equal(t, []string{
		entity.CheckRequiredFields,
		entity.CheckAmount,
		entity.CheckDate,
		entity.CheckVendor,
		entity.CheckDuplicate,
		entity.CheckPurchaseOrder,
	}, names)
}

func TestEvaluate_RunsEveryCheckOnBrokenInput(t *testing.T) {
	e := newTestEvaluator(t, nil)

	result := e.Evaluate(context.Background(), &entity.InvoiceRecord{ID: "empty"}, &mockLookup{})

	assert.Equal(t, entity.ValidationFailed, result.OverallStatus)
	assert.False(t, result.CanAutoProcess)
	assert.Len(t, result.Checks, 6)
	assert.True(t, result.HasException(entity.ExceptionMissingRequiredField))
	assert.True(t, result.HasException(entity.ExceptionAmountOutOfRange))
	assert.True(t, result.HasException(entity.ExceptionInvalidDate))
	assert.True(t, result.HasException(entity.ExceptionVendorUnapproved))

	primary, ok := result.PrimaryException()
	require.True(t, ok)
	assert.Equal(t, entity.ExceptionMissingRequiredField, primary)
}

func TestEvaluate_NilInvoice(t *testing.T) {
	e := newTestEvaluator(t, nil)

	result := e.Evaluate(context.Background(), nil, &mockLookup{})

	assert.Equal(t, entity.ValidationFailed, result.OverallStatus)
	assert.Len(t, result.Checks, 6)
}

func TestCheckRequiredFields(t *testing.T) {
	e := newTestEvaluator(t, nil)

	tests := []struct {
		name    string
		mutate  func(*entity.InvoiceRecord)
		status  entity.ValidationStatus
		message string
	}{
		{"all present", func(*entity.InvoiceRecord) {}, entity.ValidationPassed, ""},
		{"blank vendor", func(i *entity.InvoiceRecord) { i.VendorName = "   " }, entity.ValidationFailed, "vendor_name"},
		{"missing number", func(i *entity.InvoiceRecord) { i.InvoiceNumber = "" }, entity.ValidationFailed, "invoice_number"},
		{"zero total", func(i *entity.InvoiceRecord) { i.TotalAmount = 0 }, entity.ValidationFailed, "total_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(inv)

			outcome := e.checkRequiredFields(inv)
			assert.Equal(t, tt.status, outcome.Status)
			if tt.status == entity.ValidationFailed {
				assert.Contains(t, outcome.Message, tt.message)
				assert.Equal(t, []entity.ExceptionKind{entity.ExceptionMissingRequiredField}, outcome.Exceptions)
			}
		})
	}
}

func TestCheckAmount(t *testing.T) {
	e := newTestEvaluator(t, nil)

	tests := []struct {
		name       string
		subtotal   *float64
		tax        *float64
		total      float64
		status     entity.ValidationStatus
		exceptions []entity.ExceptionKind
	}{
		{"within range no breakdown", nil, nil, 500, entity.ValidationPassed, nil},
		{"minimum amount", nil, nil, 0.01, entity.ValidationPassed, nil},
		{"maximum amount", nil, nil, 10_000_000, entity.ValidationPassed, nil},
		{"below minimum", nil, nil, 0.001, entity.ValidationFailed, []entity.ExceptionKind{entity.ExceptionAmountOutOfRange}},
		{"negative", nil, nil, -10, entity.ValidationFailed, []entity.ExceptionKind{entity.ExceptionAmountOutOfRange}},
		{"above maximum", nil, nil, 10_000_001, entity.ValidationFailed, []entity.ExceptionKind{entity.ExceptionAmountOutOfRange}},
		{"breakdown matches", entity.Float(1000), entity.Float(100), 1100, entity.ValidationPassed, nil},
		// 2% of 1000 is exactly 20
		{"deviation equals tolerance", entity.Float(1000), entity.Float(20), 1000, entity.ValidationPassed, nil},
		{"deviation beyond tolerance", entity.Float(1000), entity.Float(21), 1000, entity.ValidationFailed, []entity.ExceptionKind{entity.ExceptionAmountMismatch}},
		{"only subtotal present", entity.Float(10), nil, 1000, entity.ValidationPassed, nil},
		{"out of range and mismatch", entity.Float(1), entity.Float(1), 20_000_000, entity.ValidationFailed,
			[]entity.ExceptionKind{entity.ExceptionAmountOutOfRange, entity.ExceptionAmountMismatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			inv.Subtotal = tt.subtotal
			inv.TaxAmount = tt.tax
			inv.TotalAmount = tt.total

			outcome := e.checkAmount(inv)
			assert.Equal(t, tt.status, outcome.Status, outcome.Message)
			assert.Equal(t, tt.exceptions, outcome.Exceptions)
		})
	}
}

func TestCheckDates(t *testing.T) {
	e := newTestEvaluator(t, nil)
	today := entity.DateOf(testNow)
	due := func(d entity.Date) *entity.Date { return &d }

	tests := []struct {
		name    string
		date    entity.Date
		dueDate *entity.Date
		status  entity.ValidationStatus
	}{
		{"today", today, nil, entity.ValidationPassed},
		{"missing", entity.Date{}, nil, entity.ValidationFailed},
		{"tomorrow", entity.NewDate(2024, 6, 16), nil, entity.ValidationFailed},
		{"exactly max age", entity.DateOf(today.AddDate(0, 0, -365)), nil, entity.ValidationPassed},
		{"one day too old", entity.DateOf(today.AddDate(0, 0, -366)), nil, entity.ValidationFailed},
		{"due after invoice", entity.NewDate(2024, 6, 1), due(entity.NewDate(2024, 7, 1)), entity.ValidationPassed},
		{"due before invoice", entity.NewDate(2024, 6, 1), due(entity.NewDate(2024, 5, 1)), entity.ValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			inv.InvoiceDate = tt.date
			inv.DueDate = tt.dueDate

			outcome := e.checkDates(inv, today)
			assert.Equal(t, tt.status, outcome.Status, outcome.Message)
			if tt.status == entity.ValidationFailed {
				assert.Equal(t, []entity.ExceptionKind{entity.ExceptionInvalidDate}, outcome.Exceptions)
			}
		})
	}
}

func TestCheckVendor(t *testing.T) {
	e := newTestEvaluator(t, nil)

	tests := []struct {
		name      string
		vendor    *entity.VendorRecord
		err       error
		status    entity.ValidationStatus
		exception entity.ExceptionKind
	}{
		{"approved", &entity.VendorRecord{Name: "Acme Corp", Active: true, Approved: true}, nil, entity.ValidationPassed, ""},
		{"unknown", nil, nil, entity.ValidationFailed, entity.ExceptionVendorUnapproved},
		{"inactive", &entity.VendorRecord{Name: "Acme Corp", Active: false, Approved: true}, nil, entity.ValidationFailed, entity.ExceptionVendorUnapproved},
		{"unapproved", &entity.VendorRecord{Name: "Acme Corp", Active: true, Approved: false}, nil, entity.ValidationFailed, entity.ExceptionVendorUnapproved},
		{"lookup error", nil, errors.New("connection refused"), entity.ValidationFailed, entity.ExceptionLookupUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &mockLookup{
				findVendorFunc: func(ctx context.Context, name string) (*entity.VendorRecord, error) {
					assert.Equal(t, "Acme Corp", name)
					return tt.vendor, tt.err
				},
			}

			outcome := e.checkVendor(context.Background(), validInvoice(), lookup)
			assert.Equal(t, tt.status, outcome.Status, outcome.Message)
			if tt.exception != "" {
				assert.Equal(t, []entity.ExceptionKind{tt.exception}, outcome.Exceptions)
			}
		})
	}
}

func TestCheckVendor_LookupErrorIsLogged(t *testing.T) {
	logger := &mockLogger{}
	e, err := NewEvaluator(rules.DefaultConfig(), WithLogger(logger))
	require.NoError(t, err)

	lookup := &mockLookup{
		findVendorFunc: func(ctx context.Context, name string) (*entity.VendorRecord, error) {
			return nil, port.ErrLookupUnavailable
		},
	}

	outcome := e.checkVendor(context.Background(), validInvoice(), lookup)
	assert.Contains(t, outcome.Message, "lookup unavailable")
	assert.Len(t, logger.errors, 1)
}

func TestCheckDuplicates(t *testing.T) {
	e := newTestEvaluator(t, nil)

	prior := func(id, number string, total float64) entity.InvoiceRecord {
		return entity.InvoiceRecord{ID: id, VendorName: "Acme Corp", InvoiceNumber: number, TotalAmount: total}
	}

	tests := []struct {
		name      string
		byNumber  []entity.InvoiceRecord
		recent    []entity.InvoiceRecord
		status    entity.ValidationStatus
		exception entity.ExceptionKind
	}{
		{"no history", nil, nil, entity.ValidationPassed, ""},
		{"exact duplicate", []entity.InvoiceRecord{prior("inv-0", "INV-001", 50)}, nil, entity.ValidationFailed, entity.ExceptionDuplicateInvoice},
		{"self only", []entity.InvoiceRecord{prior("inv-1", "INV-001", 1100)}, []entity.InvoiceRecord{prior("inv-1", "INV-001", 1100)}, entity.ValidationPassed, ""},
		{"similar amount", nil, []entity.InvoiceRecord{prior("inv-0", "INV-000", 1110)}, entity.ValidationWarning, entity.ExceptionDuplicateSuspected},
		{"different amount", nil, []entity.InvoiceRecord{prior("inv-0", "INV-000", 2000)}, entity.ValidationPassed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &mockLookup{
				findInvoicesByNumberFunc: func(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error) {
					return tt.byNumber, nil
				},
				findRecentInvoicesFunc: func(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
					assert.Equal(t, 90, windowDays)
					return tt.recent, nil
				},
			}

			outcome := e.checkDuplicates(context.Background(), validInvoice(), lookup)
			assert.Equal(t, tt.status, outcome.Status, outcome.Message)
			if tt.exception != "" {
				assert.Equal(t, []entity.ExceptionKind{tt.exception}, outcome.Exceptions)
			}
		})
	}
}

func TestCheckDuplicates_LookupError(t *testing.T) {
	e := newTestEvaluator(t, nil)
	lookup := &mockLookup{
		findRecentInvoicesFunc: func(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
			return nil, errors.New("timeout")
		},
	}

	outcome := e.checkDuplicates(context.Background(), validInvoice(), lookup)
	assert.Equal(t, entity.ValidationFailed, outcome.Status)
	assert.Equal(t, []entity.ExceptionKind{entity.ExceptionLookupUnavailable}, outcome.Exceptions)
}

func TestCheckPurchaseOrder(t *testing.T) {
	openPO := func(total, invoiced float64) *entity.PORecord {
		return &entity.PORecord{Number: "PO-1", VendorName: "ACME CORP", TotalAmount: total, InvoicedAmount: invoiced, Status: entity.POStatusOpen}
	}

	tests := []struct {
		name      string
		poNumber  string
		po        *entity.PORecord
		err       error
		requirePO bool
		status    entity.ValidationStatus
		exception entity.ExceptionKind
	}{
		{"no PO not required", "", nil, nil, false, entity.ValidationPassed, ""},
		{"no PO required", "", nil, nil, true, entity.ValidationWarning, entity.ExceptionMissingPO},
		{"matches remaining", "PO-1", openPO(2000, 900), nil, false, entity.ValidationPassed, ""},
		{"within tolerance of remaining", "PO-1", openPO(1080, 0), nil, false, entity.ValidationPassed, ""},
		{"beyond tolerance", "PO-1", openPO(5000, 0), nil, false, entity.ValidationFailed, entity.ExceptionPOMismatch},
		{"not found", "PO-1", nil, nil, false, entity.ValidationFailed, entity.ExceptionPOMismatch},
		{"other vendor", "PO-1", &entity.PORecord{Number: "PO-1", VendorName: "Globex", TotalAmount: 1100, Status: entity.POStatusOpen}, nil, false, entity.ValidationFailed, entity.ExceptionPOMismatch},
		{"closed", "PO-1", &entity.PORecord{Number: "PO-1", VendorName: "Acme Corp", TotalAmount: 1100, Status: entity.POStatusClosed}, nil, false, entity.ValidationFailed, entity.ExceptionPOMismatch},
		{"fully invoiced", "PO-1", openPO(1100, 1100), nil, false, entity.ValidationFailed, entity.ExceptionPOMismatch},
		{"lookup error", "PO-1", nil, errors.New("down"), false, entity.ValidationFailed, entity.ExceptionLookupUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(t, func(c *rules.Config) { c.RequirePOForAutoApproval = tt.requirePO })
			inv := validInvoice()
			inv.PONumber = tt.poNumber

			lookup := &mockLookup{
				findPOFunc: func(ctx context.Context, number string) (*entity.PORecord, error) {
					return tt.po, tt.err
				},
			}

			outcome := e.checkPurchaseOrder(context.Background(), inv, lookup)
			assert.Equal(t, tt.status, outcome.Status, outcome.Message)
			if tt.exception != "" {
				assert.Equal(t, []entity.ExceptionKind{tt.exception}, outcome.Exceptions)
			}
		})
	}
}

func TestEvaluate_MissingPOBlocksAutoProcessing(t *testing.T) {
	e := newTestEvaluator(t, func(c *rules.Config) { c.RequirePOForAutoApproval = true })

	result := e.Evaluate(context.Background(), validInvoice(), &mockLookup{})

	assert.Equal(t, entity.ValidationWarning, result.OverallStatus)
	assert.False(t, result.CanAutoProcess)
	assert.Equal(t, []entity.ExceptionKind{entity.ExceptionMissingPO}, result.Exceptions)
}

func TestEvaluate_SuspectedDuplicateIsWarning(t *testing.T) {
	e := newTestEvaluator(t, nil)
	lookup := &mockLookup{
		findRecentInvoicesFunc: func(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
			return []entity.InvoiceRecord{{ID: "inv-0", VendorName: "Acme Corp", InvoiceNumber: "INV-000", TotalAmount: 1100}}, nil
		},
	}

	result := e.Evaluate(context.Background(), validInvoice(), lookup)

	assert.Equal(t, entity.ValidationWarning, result.OverallStatus)
	assert.False(t, result.CanAutoProcess)
	assert.True(t, result.HasException(entity.ExceptionDuplicateSuspected))
}
