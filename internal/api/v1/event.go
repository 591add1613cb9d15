package v1

import (
	"fmt"
	"time"
)

// LogEvent is a classified telemetry record.
// Tag selects the metrics that consume it; Fields carries the payload that
// dimension, condition link and value extraction read from.
type LogEvent struct {
	// ID is an optional client identifier, only used for logging.
	ID string `json:"id,omitempty"`

	// Tag is the atom/event name (e.g. "screen_brightness", "cpu_time").
	Tag string `json:"tag"`

	// TimestampNs is the wall-clock time of the record in Unix nanoseconds, the
	// same clock ingestion stamps and pulls use. Bucket boundaries are computed
	// from this value rather than from the time the event was received.
	TimestampNs int64 `json:"timestamp_ns"`

	// Fields is the decoded payload. JSON numbers arrive as json.Number.
	Fields map[string]interface{} `json:"fields"`
}

// NewLogEvent builds an event stamped at t.
func NewLogEvent(tag string, t time.Time, fields map[string]interface{}) *LogEvent {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &LogEvent{Tag: tag, TimestampNs: t.UnixNano(), Fields: fields}
}

// Validate ensures the event carries the attributes every consumer relies on.
func (e *LogEvent) Validate() error {
	if e.Tag == "" {
		return fmt.Errorf("tag is required")
	}
	if e.TimestampNs <= 0 {
		return fmt.Errorf("timestamp_ns must be positive")
	}
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	return nil
}

// Field returns the payload value for name.
func (e *LogEvent) Field(name string) (interface{}, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[name]
	return v, ok
}
