package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
)

const (
	// DefaultDedupeWindow is how long an emitted fingerprint suppresses
	// identical followers.
	DefaultDedupeWindow = 2000 * time.Millisecond

	// DefaultDebounceTick is the period at which pending coalesced
	// entries are flushed for evaluation.
	DefaultDebounceTick = 200 * time.Millisecond

	coalesceHistoryCapacity = 512

	ingressBufferSize = 1024
	egressBufferSize  = 256
)

// RawEvent is an event plus its filtering identities. Transient; never
// persisted directly.
type RawEvent struct {
	Event event.Event `json:"event"`

	// Fingerprint identifies "the same logical content" for dedup.
	Fingerprint string `json:"fingerprint,omitempty"`

	// CoalesceKey identifies "the same logical subject" for debounce
	// grouping.
	CoalesceKey string `json:"coalesce_key,omitempty"`
}

// coalesceFingerprint is the identity checked against the coalesce
// history: the explicit fingerprint, falling back to the event's
// integrity signature.
func (r RawEvent) coalesceFingerprint() string {
	if r.Fingerprint != "" {
		return r.Fingerprint
	}
	return r.Event.IntegritySig
}

// Options configures an Engine. The zero value gets defaults applied.
type Options struct {
	DedupeWindow time.Duration
	DebounceTick time.Duration

	// History persists the coalesce-key -> last-fingerprint mapping
	// across restarts. Defaults to the no-op in-memory store.
	History HistoryStore

	// Now is injectable for tests.
	Now func() time.Time
}

func (o Options) normalized() Options {
	if o.DedupeWindow <= 0 {
		o.DedupeWindow = DefaultDedupeWindow
	}
	if o.DebounceTick <= 0 {
		o.DebounceTick = DefaultDebounceTick
	}
	if o.History == nil {
		o.History = InMemoryHistoryStore{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type fingerprintEntry struct {
	at          time.Time
	fingerprint string
}

// Engine is the streaming dedup/debounce stage. Raw events go in via
// Submit; deduplicated, debounced, normalized events come out on every
// subscriber channel.
//
// All mutable filtering state (the dedup window, the pending coalesce
// map, the coalesce history) is owned by the single run goroutine,
// which multiplexes the ingress channel and the debounce ticker.
type Engine struct {
	opts Options

	in   chan RawEvent
	subs *broadcaster

	// Owned by the Start goroutine.
	recent  []fingerprintEntry
	pending map[string]RawEvent
	history *coalesceHistory

	stats Stats
}

// New creates an Engine. Call Start to begin processing.
func New(opts Options) *Engine {
	return &Engine{
		opts:    opts.normalized(),
		in:      make(chan RawEvent, ingressBufferSize),
		subs:    newBroadcaster(egressBufferSize),
		pending: make(map[string]RawEvent),
		history: newCoalesceHistory(coalesceHistoryCapacity),
	}
}

// Submit enqueues a raw event. Non-blocking: when the ingress buffer is
// full the event is dropped rather than stalling the producer, which
// runs on latency-sensitive callback paths.
func (e *Engine) Submit(raw RawEvent) {
	select {
	case e.in <- raw:
	default:
		slog.Debug("[Ingest] Ingress buffer full, dropping event",
			"event_id", raw.Event.EventID,
			"coalesce_key", raw.CoalesceKey)
	}
}

// Subscribe attaches a new output channel. Subscribers see every event
// emitted after they attach; there is no replay. The returned cancel
// func detaches and closes the channel.
func (e *Engine) Subscribe() (<-chan event.Event, func()) {
	return e.subs.subscribe()
}

// Stats returns the engine's filter counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// Start loads the persisted coalesce history and runs the two
// processing loops (event-reactive and debounce tick) until ctx is
// cancelled. Blocks; run it on its own goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.loadHistory(ctx)

	ticker := time.NewTicker(e.opts.DebounceTick)
	defer ticker.Stop()

	slog.Info("[Ingest] Engine started",
		"dedupe_window", e.opts.DedupeWindow,
		"debounce_tick", e.opts.DebounceTick,
		"history_size", e.history.len())

	for {
		select {
		case raw := <-e.in:
			e.handle(raw, e.opts.Now())
		case <-ticker.C:
			e.drainPending(e.opts.Now())
		case <-ctx.Done():
			slog.Info("[Ingest] Engine stopping (context cancelled)",
				"stats", e.stats.Snapshot())
			e.subs.closeAll()
			return nil
		}
	}
}

func (e *Engine) loadHistory(ctx context.Context) {
	persisted, err := e.opts.History.Load(ctx)
	if err != nil {
		// Best-effort durability: unreadable history is empty history.
		slog.Warn("[Ingest] Failed to load coalesce history, starting empty", "error", err)
		return
	}
	if len(persisted) > coalesceHistoryCapacity {
		persisted = persisted[len(persisted)-coalesceHistoryCapacity:]
	}
	for _, entry := range persisted {
		e.history.record(entry.Key, entry.Fingerprint)
	}
	slog.Info("[Ingest] Loaded coalesce history", "entries", e.history.len())
}

// handle is the event-reactive loop body. Events carrying a coalesce
// key are parked (last writer wins) until the next debounce tick;
// everything else goes straight through the dedup/emit path.
func (e *Engine) handle(raw RawEvent, now time.Time) {
	if raw.CoalesceKey != "" {
		if _, overwrote := e.pending[raw.CoalesceKey]; overwrote {
			slog.Debug("[Ingest] Debounce replaced pending entry",
				"coalesce_key", raw.CoalesceKey,
				"history_size", e.history.len())
		}
		e.pending[raw.CoalesceKey] = raw
		return
	}
	e.emitIfNotDuplicate(raw, now)
}

// drainPending is the tick loop body: the whole pending map is flushed
// and each survivor runs through the dedup/emit path.
func (e *Engine) drainPending(now time.Time) {
	if len(e.pending) == 0 {
		return
	}
	snapshot := e.pending
	e.pending = make(map[string]RawEvent)
	for _, raw := range snapshot {
		e.emitIfNotDuplicate(raw, now)
	}
}

func (e *Engine) emitIfNotDuplicate(raw RawEvent, now time.Time) {
	if raw.CoalesceKey != "" {
		if cfp := raw.coalesceFingerprint(); cfp != "" && e.history.get(raw.CoalesceKey) == cfp {
			e.stats.coalesceDropped()
			slog.Debug("[Ingest] Coalesce history suppressed event",
				"coalesce_key", raw.CoalesceKey,
				"fingerprint", cfp)
			return
		}
	}

	if fp := raw.Fingerprint; fp != "" {
		cutoff := now.Add(-e.opts.DedupeWindow)
		idx := 0
		for idx < len(e.recent) && e.recent[idx].at.Before(cutoff) {
			idx++
		}
		e.recent = e.recent[idx:]
		for _, entry := range e.recent {
			if entry.fingerprint == fp {
				e.stats.fingerprintDropped()
				slog.Debug("[Ingest] Dedup suppressed event", "fingerprint", fp)
				return
			}
		}
		e.recent = append(e.recent, fingerprintEntry{at: now, fingerprint: fp})
	}

	normalized := raw.Event.Normalized(now)
	e.stats.emitted()
	e.subs.publish(normalized)

	if raw.CoalesceKey != "" {
		if cfp := raw.coalesceFingerprint(); cfp != "" {
			if e.history.record(raw.CoalesceKey, cfp) {
				e.schedulePersist()
			}
		}
	}
}

// schedulePersist writes the history snapshot back to the store off the
// hot path. Failures are swallowed: an event already emitted is never
// retried or rolled back because a persist failed.
func (e *Engine) schedulePersist() {
	snapshot := e.history.snapshot()
	go func() {
		if err := e.opts.History.Save(context.Background(), snapshot); err != nil {
			slog.Warn("[Ingest] Failed to persist coalesce history",
				"entries", len(snapshot),
				"error", err)
		}
	}()
}
