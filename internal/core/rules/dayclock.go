package rules

import (
	"fmt"
	"time"
)

// DayClock is a local time of day in minutes since midnight.
// Serialized as "HH:MM" in policy files.
type DayClock int

// ParseDayClock parses "HH:MM" (24-hour).
func ParseDayClock(s string) (DayClock, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return DayClock(hour*60 + minute), nil
}

// DayClockOf extracts the time of day from a wall-clock instant.
func DayClockOf(t time.Time) DayClock {
	return DayClock(t.Hour()*60 + t.Minute())
}

func (c DayClock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// UnmarshalText lets DayClock ride in YAML/JSON policy documents.
func (c *DayClock) UnmarshalText(text []byte) error {
	parsed, err := ParseDayClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (c DayClock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// QuietHours is a configured local-time interval during which
// speak-worthy events are suppressed. Start > End wraps past midnight.
type QuietHours struct {
	Start DayClock `yaml:"start" json:"start"`
	End   DayClock `yaml:"end" json:"end"`
}

// Contains reports whether c falls inside the quiet interval. The
// interval is half-open: [Start, End), or [Start, 24:00) ∪ [00:00, End)
// when it wraps past midnight.
func (q QuietHours) Contains(c DayClock) bool {
	if q.Start <= q.End {
		return c >= q.Start && c < q.End
	}
	return c >= q.Start || c < q.End
}
