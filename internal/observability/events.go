package observability

import "time"

// EventEnvelope is the wire shape of a session lifecycle event on the
// message bus.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

// NewEnvelope stamps an envelope with the emission time.
func NewEnvelope(eventType, eventName string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		EventType: eventType,
		EventName: eventName,
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// EventHeaders builds the correlation headers attached to published events.
// Empty identifiers are omitted rather than sent blank.
func EventHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["x-trace-id"] = traceID
	}
	return headers
}
