package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
)

// marshalEventJSON marshals an event's document-valued columns.
// Nil maps produce nil (SQL NULL) rather than a JSON "null" string.
func marshalEventJSON(e *event.Event) (attributes, metrics, tags []byte, err error) {
	if len(e.Attributes) > 0 {
		attributes, err = json.Marshal(e.Attributes)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal attributes: %w", err)
		}
	}
	if len(e.Metrics) > 0 {
		metrics, err = json.Marshal(e.Metrics)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal metrics: %w", err)
		}
	}
	if len(e.Tags) > 0 {
		tags, err = json.Marshal(e.Tags)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
	}
	return attributes, metrics, tags, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*event.Event, error) {
	var e event.Event
	var appPkg, component, category, action sql.NullString
	var subjectEntity, subjectEntityID, timezone, sessionID, integritySig sql.NullString
	var tsEnd, ingestAt sql.NullTime
	var durationMs sql.NullInt64
	var attributesJSON, metricsJSON, tagsJSON []byte

	err := row.Scan(
		&e.EventID,
		&e.UserID,
		&e.DeviceID,
		&appPkg,
		&component,
		&e.EventType,
		&category,
		&action,
		&subjectEntity,
		&subjectEntityID,
		&e.TsStart,
		&tsEnd,
		&durationMs,
		&timezone,
		&ingestAt,
		&attributesJSON,
		&metricsJSON,
		&tagsJSON,
		&sessionID,
		&integritySig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	e.AppPkg = appPkg.String
	e.Component = component.String
	e.EventCategory = category.String
	e.EventAction = action.String
	e.SubjectEntity = subjectEntity.String
	e.SubjectEntityID = subjectEntityID.String
	e.Timezone = timezone.String
	e.SessionID = sessionID.String
	e.IntegritySig = integritySig.String
	if tsEnd.Valid {
		t := tsEnd.Time
		e.TsEnd = &t
	}
	if ingestAt.Valid {
		t := ingestAt.Time
		e.IngestAt = &t
	}
	if durationMs.Valid {
		d := durationMs.Int64
		e.DurationMs = &d
	}

	if len(attributesJSON) > 0 {
		if err := json.Unmarshal(attributesJSON, &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &e.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return &e, nil
}

// nullableString converts "" to SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
