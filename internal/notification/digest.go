package notification

import (
	"sort"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// AssigneeDigest summarises the pending requests waiting on one approver
type AssigneeDigest struct {
	AssignedTo       string          `json:"assigned_to"`
	Count            int             `json:"count"`
	Overdue          int             `json:"overdue"`
	TotalAmount      float64         `json:"total_amount"`
	HighestPriority  entity.Priority `json:"highest_priority"`
	EarliestDeadline *time.Time      `json:"earliest_deadline,omitempty"`
	InvoiceIDs       []string        `json:"invoice_ids"`
}

var priorityRank = map[entity.Priority]int{
	entity.PriorityNormal:   0,
	entity.PriorityHigh:     1,
	entity.PriorityCritical: 2,
}

// Aggregate groups pending requests by assignee.
// Priority: critical > high > normal. Non-pending requests are skipped.
func Aggregate(requests []*entity.ApprovalRequest, now time.Time) []AssigneeDigest {
	byAssignee := make(map[string]*AssigneeDigest)

	for _, req := range requests {
		if !req.IsPending() {
			continue
		}

		d, ok := byAssignee[req.AssignedTo]
		if !ok {
			d = &AssigneeDigest{AssignedTo: req.AssignedTo, HighestPriority: entity.PriorityNormal}
			byAssignee[req.AssignedTo] = d
		}

		d.Count++
		d.TotalAmount += req.Amount
		d.InvoiceIDs = append(d.InvoiceIDs, req.InvoiceID)
		if priorityRank[req.Priority] > priorityRank[d.HighestPriority] {
			d.HighestPriority = req.Priority
		}
		if req.Overdue(now) {
			d.Overdue++
		}
		if req.SLADeadline != nil && (d.EarliestDeadline == nil || req.SLADeadline.Before(*d.EarliestDeadline)) {
			deadline := *req.SLADeadline
			d.EarliestDeadline = &deadline
		}
	}

	out := make([]AssigneeDigest, 0, len(byAssignee))
	for _, d := range byAssignee {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if priorityRank[out[i].HighestPriority] != priorityRank[out[j].HighestPriority] {
			return priorityRank[out[i].HighestPriority] > priorityRank[out[j].HighestPriority]
		}
		return out[i].AssignedTo < out[j].AssignedTo
	})
	return out
}
