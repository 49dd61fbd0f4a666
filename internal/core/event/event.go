package event

import (
	"fmt"
	"time"
)

// Event is the atomic unit of the pipeline: one observed device or
// application activity. Events are value types; once emitted downstream
// nobody owns them and nobody mutates them.
type Event struct {
	// EventID is the unique immutable identifier for this event.
	// Duplicate ids are a logic error and are rejected by the store.
	EventID string `json:"event_id"`

	// SchemaVer versions the envelope shape itself.
	SchemaVer int `json:"schema_ver,omitempty"`

	// UserID identifies the owning user. Primary query dimension.
	UserID string `json:"user_id"`

	// DeviceID identifies the device that observed the activity.
	DeviceID string `json:"device_id"`

	// AppPkg is the package name of the app the event concerns, if any.
	AppPkg string `json:"app_pkg,omitempty"`

	// Component names the source that produced the event
	// (e.g. "notification_source", "media_source").
	Component string `json:"component,omitempty"`

	// EventType is the dotted taxonomy name (e.g. "media.start").
	EventType string `json:"event_type"`

	EventCategory string `json:"event_category,omitempty"`
	EventAction   string `json:"event_action,omitempty"`

	// SubjectEntity names what the event is about (a track, a conversation).
	SubjectEntity   string `json:"subject_entity,omitempty"`
	SubjectEntityID string `json:"subject_entity_id,omitempty"`

	// TsStart is when the activity began (client-side clock).
	TsStart time.Time `json:"ts_start"`

	// TsEnd is when the activity ended, when known.
	TsEnd *time.Time `json:"ts_end,omitempty"`

	// DurationMs is the activity duration. Derived from TsEnd - TsStart
	// at normalization time when absent.
	DurationMs *int64 `json:"duration_ms,omitempty"`

	// Timezone is the IANA zone name the event was observed in.
	Timezone string `json:"timezone,omitempty"`

	// IngestAt is when the pipeline accepted the event (pipeline clock).
	// Set at normalization time, not by the producer.
	IngestAt *time.Time `json:"ingest_at,omitempty"`

	// Attributes is the free-form descriptive payload (string -> JSON value).
	Attributes map[string]any `json:"attributes,omitempty"`

	// Metrics is the free-form numeric payload (string -> JSON number).
	Metrics map[string]any `json:"metrics,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// SessionID groups events belonging to one logical session.
	SessionID string `json:"session_id,omitempty"`

	// IntegritySig is an opaque content signature computed by the source.
	// The coalesce path falls back to it when a RawEvent carries no
	// explicit fingerprint.
	IntegritySig string `json:"integrity_sig,omitempty"`
}

// Validate ensures the event has all required envelope attributes and
// that its timestamps are coherent.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	if e.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	if e.TsStart.IsZero() {
		return fmt.Errorf("ts_start is required")
	}

	if e.TsEnd != nil && e.TsEnd.Before(e.TsStart) {
		return fmt.Errorf("ts_end must not precede ts_start")
	}

	if e.DurationMs != nil && *e.DurationMs < 0 {
		return fmt.Errorf("duration_ms must not be negative")
	}

	return nil
}

// Normalized returns a copy with IngestAt stamped (if absent) and
// DurationMs derived from TsEnd - TsStart (if absent and TsEnd is known).
func (e Event) Normalized(now time.Time) Event {
	if e.IngestAt == nil {
		t := now
		e.IngestAt = &t
	}
	if e.DurationMs == nil && e.TsEnd != nil {
		d := e.TsEnd.Sub(e.TsStart).Milliseconds()
		e.DurationMs = &d
	}
	return e
}

// AttrString returns the first non-blank string attribute among keys.
func (e *Event) AttrString(keys ...string) string {
	for _, k := range keys {
		if s, ok := e.Attributes[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// MetricInt64 reads a numeric metric as int64. JSON decoding yields
// float64 for numbers, but values set in-process may be typed already.
func (e *Event) MetricInt64(key string) (int64, bool) {
	return asInt64(e.Metrics[key])
}

// AttrInt64 reads a numeric attribute as int64.
func (e *Event) AttrInt64(key string) (int64, bool) {
	return asInt64(e.Attributes[key])
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}
