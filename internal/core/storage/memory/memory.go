// Package memory provides an in-memory EventStore for tests and for
// running the pipeline without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
	"github.com/swooby/alfredd/internal/core/storage"
)

// Store is a thread-safe in-memory storage.EventStore.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*event.Event
	events []*event.Event
}

func NewStore() *Store {
	return &Store{byID: make(map[string]*event.Event)}
}

func (s *Store) Insert(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[e.EventID]; exists {
		return storage.ErrDuplicate
	}
	copied := *e
	s.byID[e.EventID] = &copied
	s.events = append(s.events, &copied)
	return nil
}

func (s *Store) ListByTime(_ context.Context, userID string, from, to time.Time, limit int) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*event.Event
	for _, e := range s.events {
		if e.UserID != userID {
			continue
		}
		if e.TsStart.Before(from) || e.TsStart.After(to) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TsStart.After(out[j].TsStart)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
