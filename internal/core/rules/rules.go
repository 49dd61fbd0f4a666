package rules

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
)

// Config is one policy snapshot consumed by Decide. Snapshots are value
// types; the settings source replaces them wholesale on change.
type Config struct {
	// EnabledTypes gates events by type. An entry matches an event type
	// exactly or as a prefix; both semantics are active at once (an
	// entry "media" enables "media.start").
	EnabledTypes []string `yaml:"enabled_types" json:"enabled_types"`

	// DisabledApps suppresses everything from the named packages.
	DisabledApps []string `yaml:"disabled_apps" json:"disabled_apps"`

	// QuietHours suppresses speech during the configured local-time
	// window. Nil disables the gate.
	QuietHours *QuietHours `yaml:"quiet_hours" json:"quiet_hours,omitempty"`

	// SpeakWhenScreenOffOnly suppresses speech while the device is
	// interactive.
	SpeakWhenScreenOffOnly bool `yaml:"speak_when_screen_off_only" json:"speak_when_screen_off_only"`

	// RateLimits caps emission frequency per type prefix.
	RateLimits []RateLimit `yaml:"rate_limits" json:"rate_limits"`
}

// RateLimit allows at most MaxEvents events whose type starts with
// KeyPrefix inside any rolling window of PerSeconds seconds.
type RateLimit struct {
	KeyPrefix  string `yaml:"type_prefix" json:"type_prefix"`
	PerSeconds int    `yaml:"per_seconds" json:"per_seconds"`
	MaxEvents  int    `yaml:"max_events" json:"max_events"`
}

// DefaultConfig mirrors the out-of-the-box policy: the common event
// types enabled, media starts and notification posts rate limited.
func DefaultConfig() Config {
	return Config{
		EnabledTypes: []string{
			event.TypeMediaStart,
			event.TypeMediaStop,
			event.TypeNotificationPost,
			event.TypeDisplayOn,
			event.TypeDisplayOff,
			event.TypeDeviceUnlock,
		},
		RateLimits: []RateLimit{
			{KeyPrefix: event.TypeMediaStart, PerSeconds: 30, MaxEvents: 4},
			{KeyPrefix: event.TypeNotificationPost, PerSeconds: 10, MaxEvents: 6},
		},
	}
}

// DeviceState is the ephemeral device snapshot presented at decision
// time. Interactive and AudioActive are tri-state: nil means unknown
// and never trips a gate.
type DeviceState struct {
	Interactive *bool
	AudioActive *bool
	TZ          *time.Location
}

// DecisionKind tags a Decision variant.
type DecisionKind int

const (
	DecisionSpeak DecisionKind = iota
	DecisionSkip
	DecisionDefer
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionSpeak:
		return "speak"
	case DecisionSkip:
		return "skip"
	case DecisionDefer:
		return "defer"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// Machine-readable decision reasons, for diagnostics.
const (
	ReasonOK           = "ok"
	ReasonTypeDisabled = "type_disabled"
	ReasonAppDisabled  = "app_disabled"
	ReasonQuietHours   = "quiet_hours"
	ReasonScreenOn     = "screen_on"
)

// Decision is the outcome of one Decide call: exactly one kind plus a
// machine-readable reason tag.
type Decision struct {
	Kind   DecisionKind
	Reason string
}

func Speak() Decision              { return Decision{Kind: DecisionSpeak, Reason: ReasonOK} }
func Skip(reason string) Decision  { return Decision{Kind: DecisionSkip, Reason: reason} }
func Defer(reason string) Decision { return Decision{Kind: DecisionDefer, Reason: reason} }

// Engine applies the decision policy to normalized events. Pure except
// for the per-prefix rate-limit counters, which live for the engine
// instance's lifetime. Safe for concurrent Decide calls.
type Engine struct {
	mu       sync.Mutex
	counters map[string][]time.Time

	// now is injectable for tests.
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		counters: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Decide evaluates the gates in order; the first that fires
// short-circuits. Rate limiting runs last and appends the event's
// timestamp to every matching prefix counter that still has room.
func (en *Engine) Decide(e *event.Event, state DeviceState, cfg Config) Decision {
	if !typeEnabled(e.EventType, cfg.EnabledTypes) {
		return Skip(ReasonTypeDisabled)
	}

	if e.AppPkg != "" && contains(cfg.DisabledApps, e.AppPkg) {
		return Skip(ReasonAppDisabled)
	}

	if cfg.QuietHours != nil {
		tz := state.TZ
		if tz == nil {
			tz = time.Local
		}
		if cfg.QuietHours.Contains(DayClockOf(e.TsStart.In(tz))) {
			return Skip(ReasonQuietHours)
		}
	}

	if cfg.SpeakWhenScreenOffOnly && state.Interactive != nil && *state.Interactive {
		return Skip(ReasonScreenOn)
	}

	now := en.now()
	en.mu.Lock()
	defer en.mu.Unlock()
	for _, rl := range cfg.RateLimits {
		if !strings.HasPrefix(e.EventType, rl.KeyPrefix) {
			continue
		}
		window := time.Duration(rl.PerSeconds) * time.Second
		kept := en.counters[rl.KeyPrefix][:0]
		for _, ts := range en.counters[rl.KeyPrefix] {
			if now.Sub(ts) <= window {
				kept = append(kept, ts)
			}
		}
		if len(kept) >= rl.MaxEvents {
			en.counters[rl.KeyPrefix] = kept
			return Skip(fmt.Sprintf("rate_limited:%s", rl.KeyPrefix))
		}
		en.counters[rl.KeyPrefix] = append(kept, now)
	}

	return Speak()
}

// typeEnabled implements the dual exact-or-prefix gate: an enabled
// entry matches the event type verbatim or as a leading prefix.
func typeEnabled(eventType string, enabled []string) bool {
	for _, t := range enabled {
		if eventType == t || strings.HasPrefix(eventType, t) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
