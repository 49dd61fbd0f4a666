package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for alfredd.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Rules    RulesConfig    `koanf:"rules"`
	Digest   DigestConfig   `koanf:"digest"`
	Pipeline PipelineConfig `koanf:"pipeline"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// IngestConfig holds the dedup/debounce engine settings.
type IngestConfig struct {
	DedupeWindow string `koanf:"dedupe_window"` // parsed as time.Duration in main
	DebounceTick string `koanf:"debounce_tick"`

	// HistoryBackend selects coalesce-history persistence:
	// "postgres", "file", or "memory".
	HistoryBackend string `koanf:"history_backend"`
	HistoryPath    string `koanf:"history_path"` // for the file backend
}

// RulesConfig points at the watched policy file.
type RulesConfig struct {
	PolicyPath string `koanf:"policy_path"`
	Watch      bool   `koanf:"watch"`
}

// DigestConfig holds the periodic digest settings.
type DigestConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Interval string `koanf:"interval"` // parsed as time.Duration in main
	Title    string `koanf:"title"`
}

// PipelineConfig identifies the local user/device the pipeline serves.
type PipelineConfig struct {
	UserID   string `koanf:"user_id"`
	DeviceID string `koanf:"device_id"`
}

// Load loads the configuration from the given file path and environment
// variables. ALFREDD_SERVER__PORT=9090 overrides server.port.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"ingest.dedupe_window":    "2s",
		"ingest.debounce_tick":    "200ms",
		"ingest.history_backend":  "postgres",
		"ingest.history_path":     "coalesce_history.json",
		"rules.policy_path":       "rules.yaml",
		"rules.watch":             true,
		"digest.enabled":          true,
		"digest.interval":         "1h",
		"digest.title":            "Last hour",
		"pipeline.user_id":        "u_local",
		"pipeline.device_id":      "local",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	if err := k.Load(env.Provider("ALFREDD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ALFREDD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
