package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// LogState persists the admin log-broadcast flag across restarts as a small
// JSON document. Any failure to read it falls back to enabled.
type LogState struct {
	mu   sync.Mutex
	path string
}

type logStateDoc struct {
	Enabled bool `json:"enabled"`
}

// OpenLogState prepares the flag store at path without touching the file.
func OpenLogState(path string) *LogState {
	return &LogState{path: path}
}

// Enabled reports the persisted flag, defaulting to true when the file is
// missing or unreadable.
func (l *LogState) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return true
	}
	// A document without the key keeps the enabled default.
	doc := logStateDoc{Enabled: true}
	if err := json.Unmarshal(data, &doc); err != nil {
		return true
	}
	return doc.Enabled
}

// SetEnabled rewrites the flag file.
func (l *LogState) SetEnabled(enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(logStateDoc{Enabled: enabled})
	if err != nil {
		return fmt.Errorf("encode log state: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write log state: %w", err)
	}
	return nil
}
