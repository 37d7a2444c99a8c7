package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle notification about one invoice
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	InvoiceID     string                 `json:"invoice_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event that starts its own correlation chain
func NewEvent(eventType Type, invoiceID string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		InvoiceID:     invoiceID,
		Payload:       copyPayload(payload, 0),
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, invoiceID string, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, invoiceID, payload)
	evt.CorrelationID = correlationID
	return evt
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := copyPayload(e.Payload, 1)
	payload[key] = value

	return &Event{
		ID:            e.ID,
		Type:          e.Type,
		InvoiceID:     e.InvoiceID,
		Payload:       payload,
		Timestamp:     e.Timestamp,
		CorrelationID: e.CorrelationID,
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if str, ok := e.Payload[key].(string); ok {
		return str
	}
	return ""
}

// GetPayloadFloat retrieves a numeric value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}

func copyPayload(src map[string]interface{}, extra int) map[string]interface{} {
	out := make(map[string]interface{}, len(src)+extra)
	for k, v := range src {
		out[k] = v
	}
	return out
}
