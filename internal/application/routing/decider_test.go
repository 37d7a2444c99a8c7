package routing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

// mockDirectory implements port.ApproverDirectory for testing
type mockDirectory struct {
	approverForFunc func(ctx context.Context, level entity.ApprovalLevel) (string, error)
}

func (m *mockDirectory) ApproverFor(ctx context.Context, level entity.ApprovalLevel) (string, error) {
	if m.approverForFunc != nil {
		return m.approverForFunc(ctx, level)
	}
	return string(level) + "@example.com", nil
}

var testNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newTestDecider(t *testing.T, dir *mockDirectory) *Decider {
	t.Helper()
	if dir == nil {
		dir = &mockDirectory{}
	}
	d, err := NewDecider(rules.DefaultConfig(), dir,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return "APR-test" }),
	)
	require.NoError(t, err)
	return d
}

func invoice(total float64) *entity.InvoiceRecord {
	return &entity.InvoiceRecord{
		ID:            "inv-1",
		VendorName:    "Acme Corp",
		InvoiceNumber: "INV-001",
		TotalAmount:   total,
		Currency:      "USD",
	}
}

func passedResult() *entity.ValidationResult {
	return entity.NewValidationResult("inv-1", []entity.CheckOutcome{
		{Name: entity.CheckRequiredFields, Status: entity.ValidationPassed},
	}, true, testNow)
}

func resultWith(outcomes ...entity.CheckOutcome) *entity.ValidationResult {
	return entity.NewValidationResult("inv-1", outcomes, true, testNow)
}

func TestNewDecider(t *testing.T) {
	_, err := NewDecider(rules.DefaultConfig(), nil)
	assert.Error(t, err)

	bad := rules.DefaultConfig()
	bad.DirectorThreshold = 10
	_, err = NewDecider(bad, &mockDirectory{})
	assert.ErrorIs(t, err, rules.ErrInvalidConfig)
}

func TestRoute_AmountBuckets(t *testing.T) {
	d := newTestDecider(t, nil)

	tests := []struct {
		name     string
		amount   float64
		level    entity.ApprovalLevel
		priority entity.Priority
		slaHours int
	}{
		{"manager lower edge", 5000.01, entity.LevelManager, entity.PriorityNormal, 48},
		{"manager upper bound inclusive", 25000, entity.LevelManager, entity.PriorityNormal, 48},
		{"director lower edge", 25000.01, entity.LevelDirector, entity.PriorityNormal, 24},
		{"director upper bound inclusive", 100000, entity.LevelDirector, entity.PriorityNormal, 24},
		{"executive", 100000.01, entity.LevelExecutive, entity.PriorityCritical, 8},
		{"executive large", 2_500_000, entity.LevelExecutive, entity.PriorityCritical, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := d.Route(context.Background(), invoice(tt.amount), passedResult())

			assert.Equal(t, tt.level, req.Level)
			assert.Equal(t, tt.priority, req.Priority)
			assert.Equal(t, entity.RequestPending, req.Status)
			assert.Equal(t, string(tt.level)+"@example.com", req.AssignedTo)
			require.NotNil(t, req.SLADeadline)
			assert.Equal(t, testNow.Add(time.Duration(tt.slaHours)*time.Hour), *req.SLADeadline)
			assert.Nil(t, req.DecidedAt)
		})
	}
}

func TestRoute_AutoApproval(t *testing.T) {
	d := newTestDecider(t, nil)

	for _, amount := range []float64{0.01, 1200, 5000} {
		req := d.Route(context.Background(), invoice(amount), passedResult())

		assert.Equal(t, entity.LevelAuto, req.Level, "amount %v", amount)
		assert.Equal(t, entity.RequestApproved, req.Status)
		assert.Equal(t, entity.AutoApprover, req.AssignedTo)
		assert.Equal(t, entity.PriorityNormal, req.Priority)
		assert.Nil(t, req.SLADeadline)
		require.NotNil(t, req.DecidedAt)
		assert.Equal(t, testNow, *req.DecidedAt)
	}
}

func TestRoute_NotAutoWithoutPO(t *testing.T) {
	d := newTestDecider(t, nil)
	validation := entity.NewValidationResult("inv-1", []entity.CheckOutcome{
		{Name: entity.CheckRequiredFields, Status: entity.ValidationPassed},
	}, false, testNow)

	req := d.Route(context.Background(), invoice(1200), validation)

	assert.Equal(t, entity.LevelManager, req.Level)
	assert.Equal(t, entity.RequestPending, req.Status)
}

func TestRoute_Exceptions(t *testing.T) {
	d := newTestDecider(t, nil)

	tests := []struct {
		name     string
		result   *entity.ValidationResult
		team     string
		priority entity.Priority
		slaHours int
		hint     string
	}{
		{
			name: "missing po warning goes to procurement",
			result: resultWith(entity.CheckOutcome{
				Name: entity.CheckPurchaseOrder, Status: entity.ValidationWarning,
				Exceptions: []entity.ExceptionKind{entity.ExceptionMissingPO},
			}),
			team: entity.TeamProcurement, priority: entity.PriorityHigh, slaHours: 24,
			hint: "Create or locate Purchase Order reference",
		},
		{
			name: "unapproved vendor goes to vendor management",
			result: resultWith(entity.CheckOutcome{
				Name: entity.CheckVendor, Status: entity.ValidationFailed, Message: "vendor \"Shady\" not found",
				Exceptions: []entity.ExceptionKind{entity.ExceptionVendorUnapproved},
			}),
			team: entity.TeamVendorManagement, priority: entity.PriorityCritical, slaHours: 4,
			hint: "Submit vendor for approval or find alternative",
		},
		{
			name: "duplicate goes to accounts payable",
			result: resultWith(entity.CheckOutcome{
				Name: entity.CheckDuplicate, Status: entity.ValidationFailed,
				Exceptions: []entity.ExceptionKind{entity.ExceptionDuplicateInvoice},
			}),
			team: entity.TeamAccountsPayable, priority: entity.PriorityCritical, slaHours: 4,
		},
		{
			name: "first exception picks the team",
			result: resultWith(
				entity.CheckOutcome{Name: entity.CheckAmount, Status: entity.ValidationFailed,
					Exceptions: []entity.ExceptionKind{entity.ExceptionAmountMismatch}},
				entity.CheckOutcome{Name: entity.CheckVendor, Status: entity.ValidationFailed,
					Exceptions: []entity.ExceptionKind{entity.ExceptionVendorUnapproved}},
			),
			team: entity.TeamAccountsPayable, priority: entity.PriorityCritical, slaHours: 4,
			hint: "Reconcile amount difference with requester",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// small amount: exceptions take precedence over auto-approval
			req := d.Route(context.Background(), invoice(100), tt.result)

			assert.Equal(t, entity.LevelException, req.Level)
			assert.Equal(t, tt.team, req.AssignedTo)
			assert.Equal(t, tt.priority, req.Priority)
			assert.Equal(t, entity.RequestPending, req.Status)
			require.NotNil(t, req.SLADeadline)
			assert.Equal(t, testNow.Add(time.Duration(tt.slaHours)*time.Hour), *req.SLADeadline)
			if tt.hint != "" {
				assert.Contains(t, req.Reason, tt.hint)
			}
		})
	}
}

func TestRoute_DirectoryFailureFallsBackToRole(t *testing.T) {
	d := newTestDecider(t, &mockDirectory{
		approverForFunc: func(ctx context.Context, level entity.ApprovalLevel) (string, error) {
			return "", errors.New("directory offline")
		},
	})

	req := d.Route(context.Background(), invoice(50000), passedResult())

	assert.Equal(t, entity.LevelDirector, req.Level)
	assert.Equal(t, "role:director", req.AssignedTo)
}

func TestRoute_CopiesInvoiceFields(t *testing.T) {
	d := newTestDecider(t, nil)

	req := d.Route(context.Background(), invoice(12000), passedResult())

	assert.Equal(t, "APR-test", req.ID)
	assert.Equal(t, "inv-1", req.InvoiceID)
	assert.Equal(t, 12000.0, req.Amount)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "Acme Corp", req.VendorName)
	assert.Equal(t, testNow, req.CreatedAt)
	assert.True(t, strings.Contains(req.Reason, "manager"))
}

func TestDefaultRequestID(t *testing.T) {
	d, err := NewDecider(rules.DefaultConfig(), &mockDirectory{})
	require.NoError(t, err)

	req := d.Route(context.Background(), invoice(1000), passedResult())
	assert.True(t, strings.HasPrefix(req.ID, "APR-"))
}

func TestActionHint_Unknown(t *testing.T) {
	assert.Equal(t, "Review invoice manually", ActionHint(entity.ExceptionKind("other")))
}
