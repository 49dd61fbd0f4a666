package postgres

// SQL queries for event and coalesce-history storage.

const (
	// queryInsertEvent inserts an event keyed by event_id.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for
	// duplicates, which the adapter maps to storage.ErrDuplicate.
	queryInsertEvent = `
		INSERT INTO events (
			event_id, user_id, device_id, app_pkg, component,
			event_type, event_category, event_action,
			subject_entity, subject_entity_id,
			ts_start, ts_end, duration_ms, timezone, ingest_at,
			attributes, metrics, tags, session_id, integrity_sig
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING event_id
	`

	// queryListByTime fetches one user's events inside a ts_start
	// range, newest first. Used by the digest scheduler and the query
	// API.
	queryListByTime = `
		SELECT
			event_id, user_id, device_id, app_pkg, component,
			event_type, event_category, event_action,
			subject_entity, subject_entity_id,
			ts_start, ts_end, duration_ms, timezone, ingest_at,
			attributes, metrics, tags, session_id, integrity_sig
		FROM events
		WHERE user_id = $1
		  AND ts_start BETWEEN $2 AND $3
		ORDER BY ts_start DESC
		LIMIT $4
	`

	// queryLoadHistory returns the coalesce-history snapshot in its
	// persisted recency order (least recently updated first).
	queryLoadHistory = `
		SELECT key, fingerprint
		FROM coalesce_history
		ORDER BY position ASC
	`

	// History saves are full-snapshot overwrites: clear then re-insert
	// inside one transaction.
	queryClearHistory = `DELETE FROM coalesce_history`

	queryInsertHistory = `
		INSERT INTO coalesce_history (position, key, fingerprint)
		VALUES ($1, $2, $3)
	`
)
