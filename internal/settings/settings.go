// Package settings provides the continuously-observed rules policy:
// a YAML file loaded at startup and re-loaded on change, exposed as
// immutable rules.Config snapshots.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/knadh/koanf/providers/file"
	"gopkg.in/yaml.v3"

	"github.com/swooby/alfredd/internal/core/rules"
)

// rawPolicy is the on-disk YAML shape. Parsed into rules.Config after
// validation; clock fields use the "HH:MM" text form.
type rawPolicy struct {
	EnabledTypes []string `yaml:"enabled_types"`
	DisabledApps []string `yaml:"disabled_apps"`
	QuietHours   *struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"quiet_hours"`
	SpeakWhenScreenOffOnly bool `yaml:"speak_when_screen_off_only"`
	RateLimits             []struct {
		TypePrefix string `yaml:"type_prefix"`
		PerSeconds int    `yaml:"per_seconds"`
		MaxEvents  int    `yaml:"max_events"`
	} `yaml:"rate_limits"`
}

// Source owns the latest policy snapshot. Current never blocks; Watch
// pushes replaced snapshots to the Changes channel (best-effort, the
// orchestrator only ever needs the latest).
type Source struct {
	path string

	mu      sync.RWMutex
	current rules.Config

	changes chan rules.Config
	watched *file.File
}

// NewSource creates a Source over the policy file at path. A missing
// path means "defaults only" (no file watching).
func NewSource(path string) *Source {
	return &Source{
		path:    path,
		current: rules.DefaultConfig(),
		changes: make(chan rules.Config, 1),
	}
}

// Load reads the policy file. A missing file leaves the defaults in
// place; a malformed file is an error (a policy typo should not
// silently disable gates).
func (s *Source) Load() error {
	if s.path == "" {
		slog.Info("[Settings] No policy file configured, using defaults")
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("[Settings] Policy file not found, using defaults", "path", s.path)
			return nil
		}
		return fmt.Errorf("failed to read rules policy: %w", err)
	}

	cfg, err := parsePolicy(raw)
	if err != nil {
		return fmt.Errorf("failed to parse rules policy %s: %w", s.path, err)
	}

	s.replace(cfg)
	slog.Info("[Settings] Loaded rules policy",
		"path", s.path,
		"enabled_types", len(cfg.EnabledTypes),
		"rate_limits", len(cfg.RateLimits),
		"quiet_hours", cfg.QuietHours != nil)
	return nil
}

// Watch reloads the policy whenever the file changes. Reload failures
// keep the previous snapshot; the pipeline never runs without a policy.
func (s *Source) Watch() error {
	if s.path == "" {
		return nil
	}

	s.watched = file.Provider(s.path)
	err := s.watched.Watch(func(_ interface{}, err error) {
		if err != nil {
			slog.Warn("[Settings] Policy watch error", "error", err)
			return
		}
		if loadErr := s.Load(); loadErr != nil {
			slog.Warn("[Settings] Policy reload failed, keeping previous snapshot",
				"path", s.path,
				"error", loadErr)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch rules policy: %w", err)
	}

	slog.Info("[Settings] Watching rules policy", "path", s.path)
	return nil
}

// Unwatch stops file watching.
func (s *Source) Unwatch() {
	if s.watched != nil {
		if err := s.watched.Unwatch(); err != nil {
			slog.Warn("[Settings] Failed to stop policy watch", "error", err)
		}
	}
}

// Current returns the latest policy snapshot.
func (s *Source) Current() rules.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changes delivers replaced snapshots. Buffered with capacity one:
// slow consumers observe only the most recent replacement.
func (s *Source) Changes() <-chan rules.Config {
	return s.changes
}

func (s *Source) replace(cfg rules.Config) {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	select {
	case s.changes <- cfg:
	default:
		// Drop the stale pending snapshot and queue the fresh one.
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- cfg:
		default:
		}
	}
}

func parsePolicy(raw []byte) (rules.Config, error) {
	var doc rawPolicy
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return rules.Config{}, fmt.Errorf("invalid YAML: %w", err)
	}

	cfg := rules.DefaultConfig()
	if doc.EnabledTypes != nil {
		cfg.EnabledTypes = doc.EnabledTypes
	}
	cfg.DisabledApps = doc.DisabledApps
	cfg.SpeakWhenScreenOffOnly = doc.SpeakWhenScreenOffOnly

	if doc.QuietHours != nil {
		start, err := rules.ParseDayClock(doc.QuietHours.Start)
		if err != nil {
			return rules.Config{}, fmt.Errorf("quiet_hours.start: %w", err)
		}
		end, err := rules.ParseDayClock(doc.QuietHours.End)
		if err != nil {
			return rules.Config{}, fmt.Errorf("quiet_hours.end: %w", err)
		}
		cfg.QuietHours = &rules.QuietHours{Start: start, End: end}
	} else {
		cfg.QuietHours = nil
	}

	if doc.RateLimits != nil {
		cfg.RateLimits = cfg.RateLimits[:0]
		for i, rl := range doc.RateLimits {
			if rl.TypePrefix == "" {
				return rules.Config{}, fmt.Errorf("rate_limits[%d]: type_prefix is required", i)
			}
			if rl.PerSeconds <= 0 {
				return rules.Config{}, fmt.Errorf("rate_limits[%d]: per_seconds must be positive", i)
			}
			if rl.MaxEvents <= 0 {
				return rules.Config{}, fmt.Errorf("rate_limits[%d]: max_events must be positive", i)
			}
			cfg.RateLimits = append(cfg.RateLimits, rules.RateLimit{
				KeyPrefix:  rl.TypePrefix,
				PerSeconds: rl.PerSeconds,
				MaxEvents:  rl.MaxEvents,
			})
		}
	}

	return cfg, nil
}
