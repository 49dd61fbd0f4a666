package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swooby/alfredd/internal/core/event"
)

func baseEvent(eventType, appPkg string) *event.Event {
	return &event.Event{
		EventID:   "evt-1",
		UserID:    "u_local",
		DeviceID:  "device-1",
		AppPkg:    appPkg,
		EventType: eventType,
		TsStart:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

type stubTemplate struct {
	priority int
	text     string
}

func (s stubTemplate) Priority() int { return s.priority }

func (s stubTemplate) LivePhrase(*event.Event) *Live {
	if s.text == "" {
		return nil
	}
	return &Live{Priority: s.priority, Text: s.text}
}

func TestLivePhraseHighestPriorityWins(t *testing.T) {
	g := NewTemplatedGenerator(
		stubTemplate{priority: 1, text: "low"},
		stubTemplate{priority: 10, text: "high"},
	)

	phrase := g.LivePhrase(baseEvent(event.TypeMediaStart, ""))
	require.NotNil(t, phrase)
	require.Equal(t, "high", phrase.Text)
}

func TestLivePhraseEqualPriorityKeepsRegistrationOrder(t *testing.T) {
	g := NewTemplatedGenerator(
		stubTemplate{priority: 7, text: "first"},
		stubTemplate{priority: 7, text: "second"},
	)

	phrase := g.LivePhrase(baseEvent(event.TypeMediaStart, ""))
	require.NotNil(t, phrase)
	require.Equal(t, "first", phrase.Text)
}

func TestLivePhraseFallsThroughNonMatches(t *testing.T) {
	g := NewTemplatedGenerator(
		stubTemplate{priority: 10}, // never matches
		stubTemplate{priority: 1, text: "fallback"},
	)

	phrase := g.LivePhrase(baseEvent(event.TypeMediaStart, ""))
	require.NotNil(t, phrase)
	require.Equal(t, "fallback", phrase.Text)
}

func TestLivePhraseNoMatchIsSilence(t *testing.T) {
	g := NewTemplatedGenerator()
	require.Nil(t, g.LivePhrase(baseEvent("custom.unknown", "")))
}

func TestSpotifyOutranksGenericMedia(t *testing.T) {
	g := NewTemplatedGenerator()

	e := baseEvent(event.TypeMediaStart, "com.spotify.music")
	e.Attributes = map[string]any{"title": "Time", "artist": "Pink Floyd"}
	phrase := g.LivePhrase(e)
	require.NotNil(t, phrase)
	require.Equal(t, "Spotify: Time by Pink Floyd.", phrase.Text)

	e.AppPkg = "com.example.player"
	phrase = g.LivePhrase(e)
	require.NotNil(t, phrase)
	require.Equal(t, "Now playing: Time by Pink Floyd.", phrase.Text)
}

func TestSpotifyFallsBackForNonStartEvents(t *testing.T) {
	g := NewTemplatedGenerator()

	e := baseEvent(event.TypeMediaStop, "com.spotify.music")
	e.Attributes = map[string]any{"title": "Time"}
	e.Metrics = map[string]any{"played_ms": float64(95_000)}

	phrase := g.LivePhrase(e)
	require.NotNil(t, phrase)
	require.Equal(t, "Finished Time after 95 seconds.", phrase.Text)
}

func TestGenericMediaStopWithoutMetrics(t *testing.T) {
	g := NewTemplatedGenerator()

	phrase := g.LivePhrase(baseEvent(event.TypeMediaStop, "com.example.player"))
	require.NotNil(t, phrase)
	require.Equal(t, "Playback stopped.", phrase.Text)
}

func TestNotificationPhrases(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		pkg   string
		want  string
	}{
		{
			name: "title and body",
			pkg:  "com.example.chat",
			attrs: map[string]any{
				"subject": map[string]any{"title": "Alice", "text": "See you at 6"},
				"actor":   map[string]any{"appLabel": "Chat"},
			},
			want: "Notification from Chat: Alice — See you at 6.",
		},
		{
			name: "title only",
			pkg:  "com.example.chat",
			attrs: map[string]any{
				"subject": map[string]any{"title": "Reminder"},
			},
			want: "Notification from com.example.chat: Reminder.",
		},
		{
			name: "body from subject lines",
			pkg:  "com.example.chat",
			attrs: map[string]any{
				"subjectLines": []any{"", "First line"},
			},
			want: "New notification from com.example.chat: First line.",
		},
		{
			name:  "nothing usable",
			attrs: nil,
			want:  "New notification.",
		},
		{
			name: "summary text fallback",
			pkg:  "com.example.mail",
			attrs: map[string]any{
				"subject": map[string]any{"conversationTitle": "Inbox", "summaryText": "3 new messages"},
			},
			want: "Notification from com.example.mail: Inbox — 3 new messages.",
		},
	}

	g := NewTemplatedGenerator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := baseEvent(event.TypeNotificationPost, tc.pkg)
			e.Attributes = tc.attrs
			phrase := g.LivePhrase(e)
			require.NotNil(t, phrase)
			require.Equal(t, tc.want, phrase.Text)
		})
	}
}

func TestDeviceStatePhrases(t *testing.T) {
	g := NewTemplatedGenerator()

	tests := []struct {
		name    string
		mutate  func(e *event.Event)
		typ     string
		want    string
		silence bool
	}{
		{name: "screen on", typ: event.TypeDisplayOn, mutate: func(e *event.Event) {}, want: "Screen on."},
		{
			name: "screen on with previous span",
			typ:  event.TypeDisplayOn,
			mutate: func(e *event.Event) {
				e.Metrics = map[string]any{"previous_state_duration_ms": float64(125_000)}
			},
			want: "Screen on. Was off for 2 minutes 5 seconds.",
		},
		{name: "unlock", typ: event.TypeDeviceUnlock, mutate: func(e *event.Event) {}, want: "Device unlocked."},
		{name: "boot", typ: event.TypeDeviceBoot, mutate: func(e *event.Event) {}, want: "Device booted."},
		{
			name: "power connected",
			typ:  event.TypePowerConnected,
			mutate: func(e *event.Event) {
				e.Attributes = map[string]any{"plugType": "usb", "batteryPercent": float64(42)}
			},
			want: "Power connected via USB power at 42 percent.",
		},
		{
			name: "power disconnected",
			typ:  event.TypePowerDisconnect,
			mutate: func(e *event.Event) {
				e.Attributes = map[string]any{"batteryPercent": float64(80)}
			},
			want: "Power disconnected at 80 percent.",
		},
		{
			name: "charging status full",
			typ:  event.TypePowerCharging,
			mutate: func(e *event.Event) {
				e.Attributes = map[string]any{"chargingStatus": "full", "batteryPercent": float64(100)}
			},
			want: "Battery fully charged at 100 percent.",
		},
		{
			name: "charging status unknown is silent",
			typ:  event.TypePowerCharging,
			mutate: func(e *event.Event) {
				e.Attributes = map[string]any{"chargingStatus": "unknown"}
			},
			silence: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := baseEvent(tc.typ, "")
			tc.mutate(e)
			phrase := g.LivePhrase(e)
			if tc.silence {
				require.Nil(t, phrase)
				return
			}
			require.NotNil(t, phrase)
			require.Equal(t, tc.want, phrase.Text)
		})
	}
}

func TestDurationPhrase(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{ms: 0, want: ""},
		{ms: 500, want: "under a second"},
		{ms: 45_000, want: "45 seconds"},
		{ms: 60_000, want: "1 minute"},
		{ms: 125_000, want: "2 minutes 5 seconds"},
		{ms: 7_500_000, want: "2 hours 5 minutes"},
		{ms: 3_600_000, want: "1 hour"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, durationPhrase(tc.ms), "ms=%d", tc.ms)
	}
}
