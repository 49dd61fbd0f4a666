package summary

import (
	"fmt"
	"strings"

	"github.com/swooby/alfredd/internal/core/event"
)

// GenericMediaTemplate speaks playback starts and stops for any media
// app.
type GenericMediaTemplate struct{}

func (GenericMediaTemplate) Priority() int { return 10 }

func (GenericMediaTemplate) LivePhrase(e *event.Event) *Live {
	if !strings.HasPrefix(e.EventType, "media.") {
		return nil
	}
	title := e.AttrString("title")
	artist := e.AttrString("artist")

	switch e.EventType {
	case event.TypeMediaStart:
		var b strings.Builder
		b.WriteString("Now playing")
		if title != "" {
			b.WriteString(": ")
			b.WriteString(title)
		}
		if artist != "" {
			fmt.Fprintf(&b, " by %s", artist)
		}
		b.WriteString(".")
		return &Live{Priority: 10, Text: b.String()}
	case event.TypeMediaStop:
		played, ok := e.MetricInt64("played_ms")
		if !ok && e.DurationMs != nil {
			played, ok = *e.DurationMs, true
		}
		if title != "" && ok {
			return &Live{Priority: 9, Text: fmt.Sprintf("Finished %s after %d seconds.", title, played/1000)}
		}
		return &Live{Priority: 9, Text: "Playback stopped."}
	default:
		return nil
	}
}

// SpotifyTemplate outranks the generic media template for Spotify's
// package so its playback starts get a branded phrase.
type SpotifyTemplate struct{}

func (SpotifyTemplate) Priority() int { return 20 }

func (SpotifyTemplate) LivePhrase(e *event.Event) *Live {
	if e.AppPkg != "com.spotify.music" {
		return nil
	}
	if e.EventType != event.TypeMediaStart {
		return nil
	}
	title := e.AttrString("title")
	if title == "" {
		title = "a track"
	}
	artist := e.AttrString("artist")
	if artist == "" {
		return &Live{Priority: 20, Text: fmt.Sprintf("Spotify: %s.", title)}
	}
	return &Live{Priority: 20, Text: fmt.Sprintf("Spotify: %s by %s.", title, artist)}
}

// NotificationTemplate narrates posted notifications from the subject
// payload, with progressively weaker fallbacks.
type NotificationTemplate struct{}

func (NotificationTemplate) Priority() int { return 5 }

func (NotificationTemplate) LivePhrase(e *event.Event) *Live {
	if e.EventType != event.TypeNotificationPost {
		return nil
	}

	subject, _ := e.Attributes["subject"].(map[string]any)
	subjectLines, _ := e.Attributes["subjectLines"].([]any)
	actor, _ := e.Attributes["actor"].(map[string]any)

	title := firstNonBlank(subject, "title", "conversationTitle", "template")
	if title == "" {
		title = e.SubjectEntity
	}
	body := firstNonBlank(subject, "text", "summaryText", "subText", "infoText")
	if body == "" {
		body = firstString(subjectLines)
	}
	appLabel := firstNonBlank(actor, "appLabel")
	if appLabel == "" {
		appLabel = e.AppPkg
	}
	if appLabel == "" {
		appLabel = "an app"
	}

	var spoken string
	switch {
	case title != "" && body != "":
		spoken = fmt.Sprintf("Notification from %s: %s — %s", appLabel, title, body)
	case title != "":
		spoken = fmt.Sprintf("Notification from %s: %s", appLabel, title)
	case body != "":
		spoken = fmt.Sprintf("New notification from %s: %s", appLabel, body)
	default:
		spoken = "New notification"
	}
	return &Live{Priority: 5, Text: ensureSentence(spoken)}
}

// DeviceStateTemplate narrates display, lock, boot, and power events.
type DeviceStateTemplate struct{}

func (DeviceStateTemplate) Priority() int { return 5 }

func (DeviceStateTemplate) LivePhrase(e *event.Event) *Live {
	switch e.EventType {
	case event.TypeDisplayOn:
		return &Live{Priority: 5, Text: screenPhrase("on", "off", e)}
	case event.TypeDisplayOff:
		return &Live{Priority: 5, Text: screenPhrase("off", "on", e)}
	case event.TypeDeviceUnlock:
		return &Live{Priority: 5, Text: "Device unlocked."}
	case event.TypeDeviceBoot:
		return &Live{Priority: 5, Text: "Device booted."}
	case event.TypeDeviceShutdown:
		return &Live{Priority: 5, Text: "Device shutting down."}
	case event.TypePowerConnected:
		return &Live{Priority: 5, Text: ensureSentence(powerConnectedPhrase(e))}
	case event.TypePowerDisconnect:
		return &Live{Priority: 5, Text: ensureSentence(powerDisconnectedPhrase(e))}
	case event.TypePowerCharging:
		if s := powerStatusPhrase(e); s != "" {
			return &Live{Priority: 5, Text: ensureSentence(s)}
		}
		return nil
	default:
		return nil
	}
}

func screenPhrase(currentState, previousState string, e *event.Event) string {
	if ms, ok := e.MetricInt64("previous_state_duration_ms"); ok && ms > 0 {
		if d := durationPhrase(ms); d != "" {
			return fmt.Sprintf("Screen %s. Was %s for %s.", currentState, previousState, d)
		}
	}
	return fmt.Sprintf("Screen %s.", currentState)
}

func powerConnectedPhrase(e *event.Event) string {
	plug := plugTypePhrase(e.AttrString("plugType"))
	status := chargingStatusPhrase(e.AttrString("chargingStatus"))
	pct, hasPct := e.AttrInt64("batteryPercent")

	var b strings.Builder
	b.WriteString("Power connected")
	if plug != "" {
		fmt.Fprintf(&b, " via %s", plug)
	}
	if hasPct {
		fmt.Fprintf(&b, " at %d percent", pct)
	}
	if status != "" && status != "charging" {
		fmt.Fprintf(&b, " (%s)", status)
	}
	b.WriteString(".")
	return b.String()
}

func powerDisconnectedPhrase(e *event.Event) string {
	plug := plugTypePhrase(e.AttrString("plugType"))
	pct, hasPct := e.AttrInt64("batteryPercent")

	var b strings.Builder
	b.WriteString("Power disconnected")
	if plug != "" && plug != "power" {
		fmt.Fprintf(&b, " from %s", plug)
	}
	if hasPct {
		fmt.Fprintf(&b, " at %d percent", pct)
	}
	b.WriteString(".")
	return b.String()
}

func powerStatusPhrase(e *event.Event) string {
	status := chargingStatusPhrase(e.AttrString("chargingStatus"))
	if status == "" {
		return ""
	}
	pct, hasPct := e.AttrInt64("batteryPercent")
	plug := plugTypePhrase(e.AttrString("plugType"))

	var b strings.Builder
	fmt.Fprintf(&b, "Battery %s", status)
	if hasPct {
		fmt.Fprintf(&b, " at %d percent", pct)
	}
	if plug != "" {
		fmt.Fprintf(&b, " via %s", plug)
	}
	b.WriteString(".")
	return b.String()
}

func plugTypePhrase(plug string) string {
	switch strings.ToLower(plug) {
	case "ac":
		return "AC power"
	case "usb":
		return "USB power"
	case "wireless":
		return "wireless charging"
	case "car":
		return "car dock"
	case "other":
		return "external power"
	case "none":
		return "battery"
	default:
		return ""
	}
}

func chargingStatusPhrase(status string) string {
	switch strings.ToLower(status) {
	case "charging":
		return "charging"
	case "full":
		return "fully charged"
	case "not_charging":
		return "not charging"
	case "discharging":
		return "discharging"
	case "unknown", "":
		return ""
	default:
		return status
	}
}

// durationPhrase renders a millisecond span the way it should be
// spoken: "2 hours 5 minutes", "45 seconds".
func durationPhrase(ms int64) string {
	if ms <= 0 {
		return ""
	}
	totalSec := ms / 1000
	if totalSec == 0 {
		return "under a second"
	}
	hours := totalSec / 3600
	minutes := (totalSec % 3600) / 60
	seconds := totalSec % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 && hours == 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func firstNonBlank(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstString(values []any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func ensureSentence(s string) string {
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" {
		return s
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return trimmed
	default:
		return trimmed + "."
	}
}
