package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swooby/alfredd/internal/core/event"
)

// recordingHistoryStore is a HistoryStore double that serves a seeded
// snapshot and records every Save call.
type recordingHistoryStore struct {
	mu      sync.Mutex
	initial []HistoryEntry
	saved   [][]HistoryEntry
}

func (s *recordingHistoryStore) Load(ctx context.Context) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.initial...), nil
}

func (s *recordingHistoryStore) Save(ctx context.Context, entries []HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, append([]HistoryEntry(nil), entries...))
	return nil
}

func (s *recordingHistoryStore) lastSaved() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

func rawEvent(id, fingerprint, coalesceKey string) RawEvent {
	return RawEvent{
		Event: event.Event{
			EventID:   id,
			UserID:    "u_local",
			DeviceID:  "device-1",
			EventType: event.TypeNotificationPost,
			TsStart:   time.Now(),
		},
		Fingerprint: fingerprint,
		CoalesceKey: coalesceKey,
	}
}

// startEngine runs the engine until the test finishes and returns a
// subscriber channel attached before any submits.
func startEngine(t *testing.T, opts Options) (*Engine, <-chan event.Event) {
	t.Helper()

	engine := New(opts)
	out, unsubscribe := engine.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		unsubscribe()
	})
	return engine, out
}

func receiveOne(t *testing.T, out <-chan event.Event, timeout time.Duration) event.Event {
	t.Helper()
	select {
	case e, ok := <-out:
		require.True(t, ok, "subscriber channel closed unexpectedly")
		return e
	case <-time.After(timeout):
		t.Fatal("timed out waiting for an emitted event")
		return event.Event{}
	}
}

func requireSilence(t *testing.T, out <-chan event.Event, window time.Duration) {
	t.Helper()
	select {
	case e := <-out:
		t.Fatalf("expected no emission, got event %q", e.EventID)
	case <-time.After(window):
	}
}

func TestDedupSuppressesWithinWindow(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: 250 * time.Millisecond,
		DebounceTick: 10 * time.Millisecond,
	})

	engine.Submit(rawEvent("e1", "fp-a", ""))
	engine.Submit(rawEvent("e2", "fp-a", ""))

	first := receiveOne(t, out, time.Second)
	require.Equal(t, "e1", first.EventID)
	requireSilence(t, out, 100*time.Millisecond)

	stats := engine.Stats()
	require.Equal(t, int64(1), stats.Emitted)
	require.Equal(t, int64(1), stats.FingerprintDrops)
}

func TestDedupAllowsAfterWindowExpires(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: 50 * time.Millisecond,
		DebounceTick: 10 * time.Millisecond,
	})

	engine.Submit(rawEvent("e1", "fp-a", ""))
	require.Equal(t, "e1", receiveOne(t, out, time.Second).EventID)

	time.Sleep(80 * time.Millisecond)

	engine.Submit(rawEvent("e2", "fp-a", ""))
	require.Equal(t, "e2", receiveOne(t, out, time.Second).EventID)
}

func TestDistinctFingerprintsBothEmit(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: time.Second,
		DebounceTick: 10 * time.Millisecond,
	})

	engine.Submit(rawEvent("e1", "fp-a", ""))
	engine.Submit(rawEvent("e2", "fp-b", ""))

	require.Equal(t, "e1", receiveOne(t, out, time.Second).EventID)
	require.Equal(t, "e2", receiveOne(t, out, time.Second).EventID)
}

func TestCoalesceLastWriterWins(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: time.Second,
		DebounceTick: 30 * time.Millisecond,
	})

	engine.Submit(rawEvent("e1", "fp-a", "track:1"))
	engine.Submit(rawEvent("e2", "fp-b", "track:1"))

	emitted := receiveOne(t, out, time.Second)
	require.Equal(t, "e2", emitted.EventID, "latest pending entry must win")
	requireSilence(t, out, 100*time.Millisecond)
}

func TestCoalesceHistorySuppressesAcrossRestart(t *testing.T) {
	store := &recordingHistoryStore{
		initial: []HistoryEntry{{Key: "track:1", Fingerprint: "fp-old"}},
	}
	engine, out := startEngine(t, Options{
		DedupeWindow: time.Second,
		DebounceTick: 10 * time.Millisecond,
		History:      store,
	})

	// Same key, same fingerprint as the persisted snapshot: suppressed
	// even though this process never emitted it.
	engine.Submit(rawEvent("e1", "fp-old", "track:1"))
	requireSilence(t, out, 100*time.Millisecond)

	// Content changed: emits and the write-behind snapshot records the
	// new pairing.
	engine.Submit(rawEvent("e2", "fp-new", "track:1"))
	require.Equal(t, "e2", receiveOne(t, out, time.Second).EventID)

	require.Eventually(t, func() bool {
		for _, entry := range store.lastSaved() {
			if entry.Key == "track:1" && entry.Fingerprint == "fp-new" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	stats := engine.Stats()
	require.Equal(t, int64(1), stats.Emitted)
	require.Equal(t, int64(1), stats.CoalesceDrops)
}

func TestCoalesceFingerprintFallsBackToIntegritySig(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: time.Second,
		DebounceTick: 10 * time.Millisecond,
	})

	raw := rawEvent("e1", "", "notif:chat")
	raw.Event.IntegritySig = "sig-1"
	engine.Submit(raw)
	require.Equal(t, "e1", receiveOne(t, out, time.Second).EventID)

	// Identical signature on the same key: suppressed by history.
	again := rawEvent("e2", "", "notif:chat")
	again.Event.IntegritySig = "sig-1"
	engine.Submit(again)
	requireSilence(t, out, 100*time.Millisecond)
}

func TestEmittedEventIsNormalized(t *testing.T) {
	engine, out := startEngine(t, Options{
		DedupeWindow: time.Second,
		DebounceTick: 10 * time.Millisecond,
	})

	raw := rawEvent("e1", "", "")
	end := raw.Event.TsStart.Add(42 * time.Second)
	raw.Event.TsEnd = &end
	engine.Submit(raw)

	emitted := receiveOne(t, out, time.Second)
	require.NotNil(t, emitted.IngestAt)
	require.NotNil(t, emitted.DurationMs)
	require.Equal(t, int64(42_000), *emitted.DurationMs)
}

func TestSubscriberChannelsCloseOnStop(t *testing.T) {
	engine := New(Options{DebounceTick: 10 * time.Millisecond})
	out, _ := engine.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Start(ctx)
	}()
	cancel()
	<-done

	_, ok := <-out
	require.False(t, ok, "subscriber channel must be closed after stop")
}
