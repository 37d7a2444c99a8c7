// Package directory resolves approvers for routing levels
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// Static is an approver directory backed by configuration. Entries can be
// replaced at runtime, for example after loading seed data.
type Static struct {
	mu        sync.RWMutex
	approvers map[entity.ApprovalLevel]string
}

// NewStatic builds a directory from level name to approver id
func NewStatic(approvers map[string]string) *Static {
	s := &Static{approvers: make(map[entity.ApprovalLevel]string, len(approvers))}
	s.Merge(approvers)
	return s
}

// Merge adds or replaces entries; blank approvers are ignored
func (s *Static) Merge(approvers map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for level, approver := range approvers {
		if approver = strings.TrimSpace(approver); approver != "" {
			s.approvers[entity.ApprovalLevel(strings.ToLower(strings.TrimSpace(level)))] = approver
		}
	}
}

// ApproverFor implements port.ApproverDirectory
func (s *Static) ApproverFor(ctx context.Context, level entity.ApprovalLevel) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approver, ok := s.approvers[level]
	if !ok {
		return "", fmt.Errorf("no approver configured for level %s", level)
	}
	return approver, nil
}

var _ port.ApproverDirectory = (*Static)(nil)
