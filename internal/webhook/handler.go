package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/service"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

const (
	challengeType      = "url_verification"
	eventTypeExtracted = "invoice.extracted"

	headerTimestamp = "X-Extraction-Timestamp"
	headerNonce     = "X-Extraction-Nonce"
	headerSignature = "X-Extraction-Signature"
)

// Processor runs an extracted invoice through validation and routing
type Processor interface {
	Process(ctx context.Context, invoice *entity.InvoiceRecord) (*entity.ProcessingOutcome, error)
}

// ExtractionEvent is the payload pushed when a document has been extracted
type ExtractionEvent struct {
	Header  EventHeader           `json:"header"`
	Invoice *entity.InvoiceRecord `json:"invoice"`
}

// EventHeader contains event metadata
type EventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
}

// Handler handles webhook requests
type Handler struct {
	verifier  *Verifier
	processor Processor
	logger    *zap.Logger

	// done is signalled after each asynchronous run, for tests
	done func(*entity.ProcessingOutcome, error)
}

// NewHandler creates a new webhook handler
func NewHandler(verifier *Verifier, processor Processor, logger *zap.Logger) *Handler {
	return &Handler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
}

// Handle verifies the request and processes the invoice in the background
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Type == challengeType {
		challenge, err := h.verifier.VerifyChallenge(body)
		if err != nil {
			h.logger.Error("Challenge verification failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Challenge verification failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	timestamp := c.GetHeader(headerTimestamp)
	nonce := c.GetHeader(headerNonce)
	if !h.verifier.VerifySignature(timestamp, nonce, c.GetHeader(headerSignature), body) {
		h.logger.Warn("Invalid webhook signature",
			zap.String("timestamp", timestamp),
			zap.String("nonce", nonce))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var evt ExtractionEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		h.logger.Error("Failed to parse event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	}

	if evt.Header.EventType != eventTypeExtracted {
		h.logger.Info("Ignoring webhook event", zap.String("event_type", evt.Header.EventType))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not supported"})
		return
	}
	if evt.Invoice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event has no invoice"})
		return
	}

	h.logger.Info("Received extraction event",
		zap.String("event_id", evt.Header.EventID),
		zap.String("invoice_number", evt.Invoice.InvoiceNumber))

	go h.process(context.WithoutCancel(c.Request.Context()), &evt)

	c.JSON(http.StatusOK, gin.H{"message": "Event received"})
}

func (h *Handler) process(ctx context.Context, evt *ExtractionEvent) {
	var (
		outcome *entity.ProcessingOutcome
		err     error
	)
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in webhook processing", zap.Any("panic", r))
		}
		if h.done != nil {
			h.done(outcome, err)
		}
	}()

	outcome, err = h.processor.Process(ctx, evt.Invoice)
	switch {
	case errors.Is(err, service.ErrAlreadyProcessed):
		h.logger.Info("Extraction event replayed for processed invoice",
			zap.String("event_id", evt.Header.EventID),
			zap.String("invoice_id", evt.Invoice.ID))
	case err != nil:
		h.logger.Error("Failed to process extracted invoice",
			zap.String("event_id", evt.Header.EventID),
			zap.Error(err))
	default:
		h.logger.Info("Extracted invoice processed",
			zap.String("event_id", evt.Header.EventID),
			zap.String("invoice_id", outcome.InvoiceID),
			zap.String("final_status", outcome.FinalStatus))
	}
}
