package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileHistoryStore persists the coalesce history as one JSON snapshot
// file. Suited to single-node deployments without a database.
type FileHistoryStore struct {
	path string
}

func NewFileHistoryStore(path string) *FileHistoryStore {
	return &FileHistoryStore{path: path}
}

// Load reads the snapshot. A missing or unparseable file is empty
// history, never a fatal error.
func (s *FileHistoryStore) Load(_ context.Context) ([]HistoryEntry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read coalesce history: %w", err)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("[History] Malformed coalesce history file, treating as empty",
			"path", s.path,
			"error", err)
		return nil, nil
	}

	out := entries[:0]
	for _, entry := range entries {
		if entry.Key == "" || entry.Fingerprint == "" {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Save overwrites the snapshot. An empty snapshot removes the file.
// Writes go through a temp file plus rename so a crash mid-write leaves
// the previous snapshot intact.
func (s *FileHistoryStore) Save(_ context.Context, entries []HistoryEntry) error {
	normalized := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Key == "" || entry.Fingerprint == "" {
			continue
		}
		normalized = append(normalized, entry)
	}

	if len(normalized) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove coalesce history: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to marshal coalesce history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write coalesce history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace coalesce history: %w", err)
	}
	return nil
}
