// Package memory is a process-local implementation of every persistence port,
// used by the "memory" storage driver and by service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

type txKey struct{}

// Store holds all data in maps. Transactions are serialized and roll back
// by restoring a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	now  func() time.Time
	data dataset
}

type dataset struct {
	invoices    map[string]entity.InvoiceEntry
	validations map[string]entity.ValidationResult
	approvals   map[string]entity.ApprovalRequest
	audit       []entity.AuditRecord
	nextAuditID int64
	vendors     map[string]entity.VendorRecord
	pos         map[string]entity.PORecord
}

// Option configures the store
type Option func(*Store)

// WithClock sets the time source used for history windows
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		now: time.Now,
		data: dataset{
			invoices:    make(map[string]entity.InvoiceEntry),
			validations: make(map[string]entity.ValidationResult),
			approvals:   make(map[string]entity.ApprovalRequest),
			vendors:     make(map[string]entity.VendorRecord),
			pos:         make(map[string]entity.PORecord),
			nextAuditID: 1,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ port.TransactionManager = (*Store)(nil)

// WithTransaction runs fn with exclusive write access. A nested call joins
// the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write applies fn under the data lock, taking the transaction lock first
// when ctx is not already inside a transaction
func (s *Store) write(ctx context.Context, fn func(d *dataset) error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) read(fn func(d *dataset)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// Invoices returns the invoice repository view of the store
func (s *Store) Invoices() *InvoiceRepository { return &InvoiceRepository{s: s} }

// Validations returns the validation repository view of the store
func (s *Store) Validations() *ValidationRepository { return &ValidationRepository{s: s} }

// Approvals returns the approval repository view of the store
func (s *Store) Approvals() *ApprovalRepository { return &ApprovalRepository{s: s} }

// Audit returns the audit repository view of the store
func (s *Store) Audit() *AuditRepository { return &AuditRepository{s: s} }

// Lookup returns the master data and history view of the store
func (s *Store) Lookup() *LookupRepository { return &LookupRepository{s: s} }

func (d dataset) clone() dataset {
	out := dataset{
		invoices:    make(map[string]entity.InvoiceEntry, len(d.invoices)),
		validations: make(map[string]entity.ValidationResult, len(d.validations)),
		approvals:   make(map[string]entity.ApprovalRequest, len(d.approvals)),
		audit:       append([]entity.AuditRecord(nil), d.audit...),
		nextAuditID: d.nextAuditID,
		vendors:     make(map[string]entity.VendorRecord, len(d.vendors)),
		pos:         make(map[string]entity.PORecord, len(d.pos)),
	}
	for k, v := range d.invoices {
		out.invoices[k] = v
	}
	for k, v := range d.validations {
		out.validations[k] = v
	}
	for k, v := range d.approvals {
		out.approvals[k] = v
	}
	for k, v := range d.vendors {
		out.vendors[k] = v
	}
	for k, v := range d.pos {
		out.pos[k] = v
	}
	return out
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var priorityRank = map[entity.Priority]int{
	entity.PriorityCritical: 0,
	entity.PriorityHigh:     1,
	entity.PriorityNormal:   2,
}

// sortQueue orders requests by priority, then deadline, then creation
func sortQueue(reqs []*entity.ApprovalRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if priorityRank[a.Priority] != priorityRank[b.Priority] {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		switch {
		case a.SLADeadline != nil && b.SLADeadline != nil && !a.SLADeadline.Equal(*b.SLADeadline):
			return a.SLADeadline.Before(*b.SLADeadline)
		case a.SLADeadline != nil && b.SLADeadline == nil:
			return true
		case a.SLADeadline == nil && b.SLADeadline != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
