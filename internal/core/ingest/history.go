package ingest

import (
	"container/list"
	"context"
)

// HistoryEntry is one persisted (coalesce key, last emitted fingerprint)
// pair.
type HistoryEntry struct {
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
}

// HistoryStore persists the relationship between a coalesce key and the
// last fingerprint emitted for it, so known-noisy subjects stay
// suppressed immediately after a process restart.
//
// Save has full-snapshot overwrite semantics, not incremental. Both
// methods order entries from least recently updated to most recently
// updated. Implementations must tolerate a Load at startup racing a
// first Save.
type HistoryStore interface {
	Load(ctx context.Context) ([]HistoryEntry, error)
	Save(ctx context.Context, entries []HistoryEntry) error
}

// InMemoryHistoryStore is the no-op store for environments without
// durable storage. Nothing survives a restart.
type InMemoryHistoryStore struct{}

func (InMemoryHistoryStore) Load(context.Context) ([]HistoryEntry, error) { return nil, nil }

func (InMemoryHistoryStore) Save(context.Context, []HistoryEntry) error { return nil }

// coalesceHistory is the in-memory key -> last-fingerprint map, ordered
// least recently updated first so capacity eviction discards the
// stalest subject.
type coalesceHistory struct {
	capacity int
	order    *list.List               // front = least recently updated
	entries  map[string]*list.Element // value: *HistoryEntry
}

func newCoalesceHistory(capacity int) *coalesceHistory {
	return &coalesceHistory{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (h *coalesceHistory) len() int {
	return h.order.Len()
}

// get returns the last emitted fingerprint for key ("" when unknown)
// and refreshes the key's recency.
func (h *coalesceHistory) get(key string) string {
	elem, ok := h.entries[key]
	if !ok {
		return ""
	}
	h.order.MoveToBack(elem)
	return elem.Value.(*HistoryEntry).Fingerprint
}

// record stores fingerprint as the latest emission for key. Returns
// true when the stored value actually changed (callers persist only on
// change).
func (h *coalesceHistory) record(key, fingerprint string) bool {
	if elem, ok := h.entries[key]; ok {
		entry := elem.Value.(*HistoryEntry)
		h.order.MoveToBack(elem)
		if entry.Fingerprint == fingerprint {
			return false
		}
		entry.Fingerprint = fingerprint
		return true
	}

	elem := h.order.PushBack(&HistoryEntry{Key: key, Fingerprint: fingerprint})
	h.entries[key] = elem
	if h.order.Len() > h.capacity {
		oldest := h.order.Front()
		h.order.Remove(oldest)
		delete(h.entries, oldest.Value.(*HistoryEntry).Key)
	}
	return true
}

// snapshot copies the history, least recently updated first.
func (h *coalesceHistory) snapshot() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.order.Len())
	for elem := h.order.Front(); elem != nil; elem = elem.Next() {
		out = append(out, *elem.Value.(*HistoryEntry))
	}
	return out
}
