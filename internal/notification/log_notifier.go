// Package notification delivers approver notifications and summarises the
// pending queue per assignee
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
)

// LogNotifier writes notifications to the structured log. It is the default
// transport when no mail or chat integration is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(ctx context.Context, msg port.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Info("Notification",
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.String("invoice_id", msg.InvoiceID),
		zap.String("priority", string(msg.Priority)),
		zap.String("body", msg.Body))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
