package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
	"github.com/AshrafHassan95/invoice-automation-agent/pkg/database"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).RunMigrations(filepath.Join("..", "..", "..", "..", "migrations"))
	require.NoError(t, err)

	return sqlite.NewDB(db.DB, logger)
}

func clock() Option {
	return WithClock(func() time.Time { return testNow })
}

func invoiceEntry(id, vendor, number string, total float64, received time.Time) *entity.InvoiceEntry {
	return &entity.InvoiceEntry{
		Invoice: entity.InvoiceRecord{
			ID:            id,
			VendorName:    vendor,
			InvoiceNumber: number,
			InvoiceDate:   entity.NewDate(2024, 6, 10),
			TotalAmount:   total,
			Currency:      "USD",
			ReceivedAt:    received,
		},
		Status:           "PENDING_APPROVAL",
		ProcessingTimeMs: 10,
		CreatedAt:        received,
		UpdatedAt:        received,
	}
}

func pendingRequest(invoiceID string, priority entity.Priority, deadline *time.Time, created time.Time) *entity.ApprovalRequest {
	return &entity.ApprovalRequest{
		ID:          "APR-" + invoiceID,
		InvoiceID:   invoiceID,
		Level:       entity.LevelManager,
		AssignedTo:  "manager@example.com",
		Priority:    priority,
		Reason:      "needs review",
		Amount:      100,
		Currency:    "USD",
		VendorName:  "Acme Inc",
		SLADeadline: deadline,
		Status:      entity.RequestPending,
		CreatedAt:   created,
	}
}

func TestInvoiceRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(setupDB(t), zap.NewNop(), clock())

	due := entity.NewDate(2024, 7, 10)
	in := invoiceEntry("inv-1", "Acme Inc", "A-1", 1080, testNow)
	in.Invoice.DueDate = &due
	in.Invoice.PONumber = "PO-1"
	in.Invoice.Subtotal = entity.Float(1000)
	in.Invoice.TaxAmount = entity.Float(80)
	in.Invoice.LineItems = []entity.LineItem{{LineNumber: 1, Description: "Widgets", Quantity: 10, UnitPrice: 100, Amount: 1000}}
	require.NoError(t, repo.Create(ctx, in))

	got, err := repo.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "2024-06-10", got.Invoice.InvoiceDate.String())
	require.NotNil(t, got.Invoice.DueDate)
	assert.Equal(t, "2024-07-10", got.Invoice.DueDate.String())
	require.NotNil(t, got.Invoice.Subtotal)
	assert.Equal(t, 1000.0, *got.Invoice.Subtotal)
	assert.Equal(t, 80.0, *got.Invoice.TaxAmount)
	assert.Equal(t, in.Invoice.LineItems, got.Invoice.LineItems)
	assert.True(t, got.Invoice.ReceivedAt.Equal(testNow))
	assert.Equal(t, "PENDING_APPROVAL", got.Status)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, invoiceEntry("inv-1", "Other", "B-1", 5, testNow))
	assert.ErrorIs(t, err, port.ErrAlreadyExists)
}

func TestInvoiceRepository_OptionalFieldsStayNil(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(setupDB(t), zap.NewNop())

	in := invoiceEntry("inv-1", "Acme Inc", "A-1", 50, testNow)
	in.Invoice.InvoiceDate = entity.Date{}
	require.NoError(t, repo.Create(ctx, in))

	got, err := repo.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, got.Invoice.InvoiceDate.IsZero())
	assert.Nil(t, got.Invoice.DueDate)
	assert.Nil(t, got.Invoice.Subtotal)
	assert.Nil(t, got.Invoice.TaxAmount)
}

func TestInvoiceRepository_UpdateListStatistics(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository(setupDB(t), zap.NewNop(), clock())

	for i, id := range []string{"a", "b", "c"} {
		received := testNow.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, invoiceEntry(id, "Acme Inc", "N-"+id, float64(100*(i+1)), received)))
	}
	require.NoError(t, repo.UpdateStatus(ctx, "b", "APPROVED"))
	assert.Error(t, repo.UpdateStatus(ctx, "missing", "APPROVED"))

	all, err := repo.List(ctx, port.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Invoice.ID)

	approved, err := repo.List(ctx, port.InvoiceFilter{Status: "APPROVED"})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "b", approved[0].Invoice.ID)
	assert.True(t, approved[0].UpdatedAt.Equal(testNow))

	page, err := repo.List(ctx, port.InvoiceFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Invoice.ID)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalInvoices)
	assert.Equal(t, int64(2), stats.ByStatus["PENDING_APPROVAL"])
	assert.Equal(t, int64(1), stats.ByStatus["APPROVED"])
	assert.InDelta(t, 600.0, stats.TotalAmount, 1e-9)
	assert.InDelta(t, 10.0, stats.AvgProcessingTimeMs, 1e-9)
}

func TestValidationRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	require.NoError(t, NewInvoiceRepository(db, zap.NewNop()).Create(ctx, invoiceEntry("inv-1", "Acme Inc", "A-1", 100, testNow)))
	repo := NewValidationRepository(db, zap.NewNop())

	result := entity.NewValidationResult("inv-1", []entity.CheckOutcome{
		{Name: entity.CheckRequiredFields, Status: entity.ValidationPassed, Message: "ok"},
		{Name: entity.CheckPurchaseOrder, Status: entity.ValidationWarning, Message: "no PO",
			Exceptions: []entity.ExceptionKind{entity.ExceptionMissingPO}},
	}, false, testNow)
	require.NoError(t, repo.Save(ctx, result))

	got, err := repo.GetByInvoiceID(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.ValidationWarning, got.OverallStatus)
	assert.Equal(t, []entity.ExceptionKind{entity.ExceptionMissingPO}, got.Exceptions)
	assert.Len(t, got.Checks, 2)

	missing, err := repo.GetByInvoiceID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApprovalRepository_CreateAndDecide(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	require.NoError(t, NewInvoiceRepository(db, zap.NewNop()).Create(ctx, invoiceEntry("inv-1", "Acme Inc", "A-1", 100, testNow)))
	repo := NewApprovalRepository(db, zap.NewNop())

	deadline := testNow.Add(48 * time.Hour)
	require.NoError(t, repo.Create(ctx, pendingRequest("inv-1", entity.PriorityNormal, &deadline, testNow)))
	assert.ErrorIs(t, repo.Create(ctx, pendingRequest("inv-1", entity.PriorityNormal, nil, testNow)), port.ErrAlreadyExists)

	decidedAt := testNow.Add(time.Hour)
	swapped, err := repo.CompareAndSetStatus(ctx, "inv-1", entity.RequestPending, entity.RequestApproved, decidedAt)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = repo.CompareAndSetStatus(ctx, "inv-1", entity.RequestPending, entity.RequestRejected, decidedAt)
	require.NoError(t, err)
	assert.False(t, swapped)

	decision := &entity.ApprovalDecision{
		ApproverName:  "Max",
		ApproverEmail: "max@example.com",
		Comments:      "fine",
		Action:        entity.ActionApprove,
		DecidedAt:     decidedAt,
	}
	require.NoError(t, repo.AttachDecision(ctx, "inv-1", decision))
	assert.ErrorIs(t, repo.AttachDecision(ctx, "inv-1", decision), port.ErrAlreadyExists)

	got, err := repo.GetByInvoiceID(ctx, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.RequestApproved, got.Status)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decidedAt))
	require.NotNil(t, got.SLADeadline)
	assert.True(t, got.SLADeadline.Equal(deadline))
	require.NotNil(t, got.Decision)
	assert.Equal(t, "max@example.com", got.Decision.ApproverEmail)
	assert.True(t, got.Decision.DecidedAt.Equal(decidedAt))

	missing, err := repo.GetByInvoiceID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApprovalRepository_ConcurrentCompareAndSet(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	require.NoError(t, NewInvoiceRepository(db, zap.NewNop()).Create(ctx, invoiceEntry("inv-1", "Acme Inc", "A-1", 100, testNow)))
	repo := NewApprovalRepository(db, zap.NewNop())
	require.NoError(t, repo.Create(ctx, pendingRequest("inv-1", entity.PriorityNormal, nil, testNow)))

	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithTransaction(ctx, func(txCtx context.Context) error {
				swapped, err := repo.CompareAndSetStatus(txCtx, "inv-1", entity.RequestPending, entity.RequestApproved, testNow)
				if err != nil {
					return err
				}
				if swapped {
					atomic.AddInt32(&wins, 1)
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestApprovalRepository_QueueOrdering(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	invoices := NewInvoiceRepository(db, zap.NewNop())
	repo := NewApprovalRepository(db, zap.NewNop())

	past := testNow.Add(-time.Hour)
	later := testNow.Add(24 * time.Hour)
	sooner := testNow.Add(4 * time.Hour)

	reqs := []*entity.ApprovalRequest{
		pendingRequest("normal-later", entity.PriorityNormal, &later, testNow),
		pendingRequest("critical-overdue", entity.PriorityCritical, &past, testNow),
		pendingRequest("normal-sooner", entity.PriorityNormal, &sooner, testNow),
		pendingRequest("high-none", entity.PriorityHigh, nil, testNow),
	}
	for _, req := range reqs {
		require.NoError(t, invoices.Create(ctx, invoiceEntry(req.InvoiceID, "Acme Inc", req.InvoiceID, 100, testNow)))
		require.NoError(t, repo.Create(ctx, req))
	}

	pending, err := repo.ListPending(ctx, 0)
	require.NoError(t, err)
	var order []string
	for _, r := range pending {
		order = append(order, r.InvoiceID)
	}
	assert.Equal(t, []string{"critical-overdue", "high-none", "normal-sooner", "normal-later"}, order)

	limited, err := repo.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	overdue, err := repo.ListOverdue(ctx, testNow, 0)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "critical-overdue", overdue[0].InvoiceID)

	marked, err := repo.MarkSLABreached(ctx, "critical-overdue", testNow)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = repo.MarkSLABreached(ctx, "critical-overdue", testNow)
	require.NoError(t, err)
	assert.False(t, marked)

	overdue, err = repo.ListOverdue(ctx, testNow, 0)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	got, err := repo.GetByInvoiceID(ctx, "critical-overdue")
	require.NoError(t, err)
	require.NotNil(t, got.SLABreachedAt)
	assert.True(t, got.SLABreachedAt.Equal(testNow))
	assert.Equal(t, entity.RequestPending, got.Status)
}

func TestAuditRepository_AppendOnly(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	for _, to := range []string{"VALIDATED", "ROUTED"} {
		rec := &entity.AuditRecord{InvoiceID: "inv-1", ToState: to, Actor: entity.ActorSystem, Timestamp: testNow}
		require.NoError(t, repo.Append(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	trail, err := repo.ListByInvoiceID(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "VALIDATED", trail[0].ToState)
	assert.Equal(t, "ROUTED", trail[1].ToState)

	_, err = db.ExecContext(ctx, `UPDATE audit_log SET actor = 'someone' WHERE invoice_id = 'inv-1'`)
	assert.Error(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM audit_log`)
	assert.Error(t, err)
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	invoices := NewInvoiceRepository(db, zap.NewNop())
	audit := NewAuditRepository(db, zap.NewNop())

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := invoices.Create(txCtx, invoiceEntry("inv-1", "Acme Inc", "A-1", 100, testNow)); err != nil {
			return err
		}
		if err := audit.Append(txCtx, &entity.AuditRecord{InvoiceID: "inv-1", ToState: "VALIDATED", Actor: "system", Timestamp: testNow}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := invoices.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	trail, err := audit.ListByInvoiceID(ctx, "inv-1")
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestLookupRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	invoices := NewInvoiceRepository(db, zap.NewNop())
	lookup := NewLookupRepository(db, zap.NewNop(), clock())

	require.NoError(t, lookup.UpsertVendor(ctx, &entity.VendorRecord{ID: "V1", Name: "Acme Inc", Active: true}))
	require.NoError(t, lookup.UpsertVendor(ctx, &entity.VendorRecord{ID: "V1", Name: "ACME Inc", Active: true, Approved: true}))
	assert.Error(t, lookup.UpsertVendor(ctx, &entity.VendorRecord{Name: "  "}))

	vendor, err := lookup.FindVendor(ctx, "  acme inc ")
	require.NoError(t, err)
	require.NotNil(t, vendor)
	assert.True(t, vendor.Eligible())
	assert.Equal(t, "ACME Inc", vendor.Name)

	none, err := lookup.FindVendor(ctx, "Unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, lookup.UpsertPO(ctx, &entity.PORecord{
		Number: "PO-100", VendorName: "Acme Inc", TotalAmount: 10000, InvoicedAmount: 6000, Status: entity.POStatusOpen,
	}))
	po, err := lookup.FindPO(ctx, "po-100")
	require.NoError(t, err)
	require.NotNil(t, po)
	assert.Equal(t, 4000.0, po.Remaining())
	assert.True(t, po.CreatedAt.IsZero())

	require.NoError(t, invoices.Create(ctx, invoiceEntry("recent", "Acme Inc", "R-1", 100, testNow.AddDate(0, 0, -10))))
	require.NoError(t, invoices.Create(ctx, invoiceEntry("old", "acme inc", "O-1", 100, testNow.AddDate(0, 0, -120))))
	require.NoError(t, invoices.Create(ctx, invoiceEntry("other", "Globex", "R-1", 100, testNow)))

	recent, err := lookup.FindRecentInvoices(ctx, "ACME INC", 90)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "recent", recent[0].ID)

	byNumber, err := lookup.FindInvoicesByNumber(ctx, "Acme Inc", "o-1")
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, "old", byNumber[0].ID)
}

func TestLookupRepository_Unavailable(t *testing.T) {
	db := setupDB(t)
	lookup := NewLookupRepository(db, zap.NewNop())
	require.NoError(t, db.Close())

	_, err := lookup.FindVendor(context.Background(), "Acme Inc")
	assert.ErrorIs(t, err, port.ErrLookupUnavailable)
}
