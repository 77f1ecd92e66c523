package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// IncidentLogEntry is one line of the append-only incident journal.
type IncidentLogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	IncidentID   string    `json:"incident_id"`
	GuildID      uint64    `json:"guild_id"`
	UserID       uint64    `json:"user_id,omitempty"`
	IncidentType string    `json:"incident_type"`
	Severity     float64   `json:"severity"`
	ThreatLevel  string    `json:"threat_level"`
	Action       string    `json:"action,omitempty"`
	Description  string    `json:"description"`
}

// IncidentLogger appends incidents as JSON lines, independent of the database.
type IncidentLogger struct {
	mu   sync.Mutex
	file *os.File
}

func NewIncidentLogger(path string) (*IncidentLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create incident log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open incident log: %w", err)
	}

	return &IncidentLogger{file: file}, nil
}

func (il *IncidentLogger) Log(entry *IncidentLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode incident: %w", err)
	}
	data = append(data, '\n')

	il.mu.Lock()
	defer il.mu.Unlock()
	_, err = il.file.Write(data)
	return err
}

func (il *IncidentLogger) Close() error {
	il.mu.Lock()
	defer il.mu.Unlock()
	return il.file.Close()
}
