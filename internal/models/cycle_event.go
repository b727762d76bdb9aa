package models

import "time"

// Cycle event types.
const (
	EventRendered      = "RENDERED"
	EventFetchFailed   = "FETCH_FAILED"
	EventFramingError  = "FRAMING_ERROR"
	EventSyntaxError   = "SYNTAX_ERROR"
	EventSchemaError   = "SCHEMA_ERROR"
	EventHardwareError = "HARDWARE_ERROR"
	EventPause         = "PAUSE"
	EventResume        = "RESUME"
	EventRefresh       = "REFRESH"
)

var eventTypes = []string{
	EventRendered,
	EventFetchFailed,
	EventFramingError,
	EventSyntaxError,
	EventSchemaError,
	EventHardwareError,
	EventPause,
	EventResume,
	EventRefresh,
}

// EventTypes lists every type the event log can hold.
func EventTypes() []string {
	return append([]string(nil), eventTypes...)
}

func KnownEventType(t string) bool {
	for _, e := range eventTypes {
		if e == t {
			return true
		}
	}
	return false
}

// CycleEvent is a single log entry.
type CycleEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
