package storage

import (
	"context"
	"errors"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
)

// ErrDuplicate is returned when an event with the same event_id already
// exists. Duplicate ids are a logic error upstream, not a condition to
// silently ignore.
var ErrDuplicate = errors.New("event already exists")

// EventStore defines the contract the pipeline needs from event
// persistence: insert and time-range query. The query surface beyond
// this belongs to the surrounding application.
type EventStore interface {
	// Insert persists one event. Returns ErrDuplicate on an event_id
	// conflict.
	Insert(ctx context.Context, e *event.Event) error

	// ListByTime fetches a user's events with from <= ts_start <= to,
	// newest first, capped at limit.
	ListByTime(ctx context.Context, userID string, from, to time.Time, limit int) ([]*event.Event, error)
}
