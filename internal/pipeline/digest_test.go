package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swooby/alfredd/internal/core/event"
	"github.com/swooby/alfredd/internal/core/storage/memory"
	"github.com/swooby/alfredd/internal/core/summary"
)

func TestDigestRunOnceSpeaksWindowRollup(t *testing.T) {
	now := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	speaker := &recordingSpeaker{}

	insert := func(id, eventType string, at time.Time, metrics map[string]any) {
		require.NoError(t, store.Insert(context.Background(), &event.Event{
			EventID:   id,
			UserID:    "u_local",
			DeviceID:  "device-1",
			EventType: eventType,
			TsStart:   at,
			Metrics:   metrics,
		}))
	}

	insert("evt-1", event.TypeNotificationPost, now.Add(-10*time.Minute), nil)
	insert("evt-2", event.TypeNotificationPost, now.Add(-20*time.Minute), nil)
	insert("evt-3", event.TypeMediaStop, now.Add(-30*time.Minute), map[string]any{"played_ms": float64(240_000)})
	insert("evt-4", event.TypeDisplayOn, now.Add(-40*time.Minute), nil)
	// Outside the trailing hour: ignored.
	insert("evt-5", event.TypeNotificationPost, now.Add(-2*time.Hour), nil)

	s := NewDigestScheduler(time.Hour, "Last hour", "u_local", store, summary.NewTemplatedGenerator(), speaker)
	s.now = func() time.Time { return now }

	s.runOnce(context.Background())

	require.Equal(t, []string{
		"Last hour Notifications: 2. Music time: 4 min. Screen ons: 1.",
	}, speaker.utterances())
}

func TestDigestRunOnceEmptyWindow(t *testing.T) {
	speaker := &recordingSpeaker{}
	s := NewDigestScheduler(time.Hour, "Last hour", "u_local", memory.NewStore(), summary.NewTemplatedGenerator(), speaker)
	s.now = func() time.Time { return time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC) }

	s.runOnce(context.Background())

	require.Equal(t, []string{"Last hour Nothing notable."}, speaker.utterances())
}

func TestDigestStartSpeaksFinalDigestOnShutdown(t *testing.T) {
	speaker := &recordingSpeaker{}
	s := NewDigestScheduler(time.Hour, "Last hour", "u_local", memory.NewStore(), summary.NewTemplatedGenerator(), speaker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Start(ctx)
	}()
	cancel()
	<-done

	require.Equal(t, []string{"Last hour Nothing notable."}, speaker.utterances(),
		"shutdown must flush one final digest")
}
