package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by the approval workflow
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequisitionID int64                  `json:"requisition_id"`
	ReferenceCode string                 `json:"reference_code"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// Payload keys shared by publishers and handlers
const (
	PayloadApproverEmails = "approver_emails"
	PayloadStepOrder      = "step_order"
	PayloadActor          = "actor"
	PayloadOrderNumber    = "order_number"
	PayloadError          = "error"
)

// NewEvent creates a domain event with a fresh ID, timestamp and correlation chain
func NewEvent(eventType Type, requisitionID int64, referenceCode string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return NewEventWithCorrelation(eventType, requisitionID, referenceCode, payload, id)
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, requisitionID int64, referenceCode string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequisitionID: requisitionID,
		ReferenceCode: referenceCode,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set; the receiver is not modified.
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadStrings retrieves a string slice from the payload
func (e *Event) GetPayloadStrings(key string) []string {
	switch v := e.Payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
