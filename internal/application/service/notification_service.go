package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/event"
)

// NotificationService tells approvers and teams about invoices that need them
type NotificationService interface {
	NotifyApprovalRequired(ctx context.Context, evt *event.Event) error
	NotifyDecision(ctx context.Context, evt *event.Event) error
	NotifySLABreach(ctx context.Context, evt *event.Event) error

	// Register subscribes the notification handlers on d
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notifier    port.Notifier
	escalations string
	logger      Logger
}

// NewNotificationService creates a new NotificationService. SLA breaches are
// copied to the escalations recipient.
func NewNotificationService(notifier port.Notifier, escalations string, logger Logger) NotificationService {
	if escalations == "" {
		escalations = entity.TeamAccountsPayable
	}
	return &notificationServiceImpl{
		notifier:    notifier,
		escalations: escalations,
		logger:      logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApprovalRequired, "notify-approver", s.NotifyApprovalRequired)
	d.SubscribeNamed(event.TypeApprovalDecided, "notify-decision", s.NotifyDecision)
	d.SubscribeNamed(event.TypeSLABreached, "notify-sla-breach", s.NotifySLABreach)
}

// NotifyApprovalRequired sends the pending request to its assignee
func (s *notificationServiceImpl) NotifyApprovalRequired(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString("assigned_to")
	if assignee == "" {
		return fmt.Errorf("approval.required event for %s has no assignee", evt.InvoiceID)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Invoice %s from %s for %.2f needs %s approval.\n",
		evt.InvoiceID, evt.GetPayloadString("vendor"), evt.GetPayloadFloat("amount"), evt.GetPayloadString("level"))
	fmt.Fprintf(&body, "Reason: %s\n", evt.GetPayloadString("reason"))
	if deadline := evt.GetPayloadString("sla_deadline"); deadline != "" {
		fmt.Fprintf(&body, "Please decide by %s.\n", deadline)
	}

	return s.send(ctx, port.Notification{
		Recipient: assignee,
		Subject:   fmt.Sprintf("Approval required: invoice %s", evt.InvoiceID),
		Body:      body.String(),
		InvoiceID: evt.InvoiceID,
		Priority:  entity.Priority(evt.GetPayloadString("priority")),
	})
}

// NotifyDecision tells accounts payable how a request was decided
func (s *notificationServiceImpl) NotifyDecision(ctx context.Context, evt *event.Event) error {
	action := evt.GetPayloadString("action")
	return s.send(ctx, port.Notification{
		Recipient: entity.TeamAccountsPayable,
		Subject:   fmt.Sprintf("Invoice %s %sd", evt.InvoiceID, action),
		Body: fmt.Sprintf("Invoice %s was %sd by %s at %s level.\n",
			evt.InvoiceID, action, evt.GetPayloadString("approver"), evt.GetPayloadString("level")),
		InvoiceID: evt.InvoiceID,
		Priority:  entity.PriorityNormal,
	})
}

// NotifySLABreach escalates an overdue request to its assignee and the escalation team
func (s *notificationServiceImpl) NotifySLABreach(ctx context.Context, evt *event.Event) error {
	body := fmt.Sprintf("Approval for invoice %s (%s level) passed its deadline %s and is still pending with %s.\n",
		evt.InvoiceID, evt.GetPayloadString("level"), evt.GetPayloadString("sla_deadline"), evt.GetPayloadString("assigned_to"))

	recipients := []string{evt.GetPayloadString("assigned_to"), s.escalations}
	for _, r := range recipients {
		if r == "" {
			continue
		}
		if err := s.send(ctx, port.Notification{
			Recipient: r,
			Subject:   fmt.Sprintf("SLA breached: invoice %s", evt.InvoiceID),
			Body:      body,
			InvoiceID: evt.InvoiceID,
			Priority:  entity.PriorityCritical,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *notificationServiceImpl) send(ctx context.Context, n port.Notification) error {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to send notification",
			"invoice_id", n.InvoiceID,
			"recipient", n.Recipient,
			"error", err,
		)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent",
		"invoice_id", n.InvoiceID,
		"recipient", n.Recipient,
		"subject", n.Subject,
	)
	return nil
}
