package summary

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/swooby/alfredd/internal/core/event"
)

const digestPriority = 3

// buildDigest computes the digest aggregates over the given events and
// renders one line per non-zero aggregate, in a fixed category order.
// Decimal accumulators keep the sums exact regardless of how metric
// values arrived (JSON floats, in-process ints).
func buildDigest(title string, events []*event.Event) Digest {
	notifications := decimal.Zero
	musicMs := decimal.Zero
	screenOns := decimal.Zero

	one := decimal.NewFromInt(1)
	for _, e := range events {
		switch e.EventType {
		case event.TypeNotificationPost:
			notifications = notifications.Add(one)
		case event.TypeMediaStop:
			if ms, ok := playedMs(e); ok {
				musicMs = musicMs.Add(decimal.NewFromInt(ms))
			}
		case event.TypeDisplayOn:
			screenOns = screenOns.Add(one)
		}
	}

	musicSec := musicMs.Div(decimal.NewFromInt(1000)).IntPart()

	var lines []string
	if notifications.IsPositive() {
		lines = append(lines, fmt.Sprintf("Notifications: %d.", notifications.IntPart()))
	}
	if musicSec > 0 {
		lines = append(lines, fmt.Sprintf("Music time: %d min.", musicSec/60))
	}
	if screenOns.IsPositive() {
		lines = append(lines, fmt.Sprintf("Screen ons: %d.", screenOns.IntPart()))
	}
	if len(lines) == 0 {
		lines = append(lines, "Nothing notable.")
	}

	return Digest{Priority: digestPriority, Title: title, Lines: lines}
}

// playedMs is the playback span of a media.stop event: the played_ms
// metric when present, the derived duration otherwise.
func playedMs(e *event.Event) (int64, bool) {
	if ms, ok := e.MetricInt64("played_ms"); ok {
		return ms, true
	}
	if e.DurationMs != nil {
		return *e.DurationMs, true
	}
	return 0, false
}
