// Package manifest reads and writes the batch manifest (jobs.json): the
// persisted mapping from human-readable job keys to computation IDs,
// submission parameters, and last known status.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry is the record for one submitted job. ComputationID is empty only
// when the submission itself failed.
type Entry struct {
	ComputationID string         `json:"computation_id,omitempty"`
	RunSettings   map[string]any `json:"run_settings,omitempty"`
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// Manifest is a batch of jobs keyed by unique job key.
type Manifest struct {
	BatchID     string           `json:"batch_id,omitempty"`
	SubmittedAt string           `json:"batch_submission_time_utc,omitempty"`
	Jobs        map[string]Entry `json:"jobs"`
}

// New returns an empty manifest stamped with a fresh batch ID and the
// current UTC time.
func New() *Manifest {
	return &Manifest{
		BatchID:     uuid.NewString(),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
		Jobs:        make(map[string]Entry),
	}
}

// Load reads a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Jobs == nil {
		m.Jobs = make(map[string]Entry)
	}
	return &m, nil
}

// Save writes the manifest to path via a temporary file and rename, so a
// crash mid-write never leaves a truncated manifest behind.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Add records a job under key. Keys must be unique within a manifest.
func (m *Manifest) Add(key string, e Entry) error {
	if _, ok := m.Jobs[key]; ok {
		return fmt.Errorf("manifest: duplicate job key %q", key)
	}
	m.Jobs[key] = e
	return nil
}

// Keys returns the job keys in sorted order, so every pass over a batch is
// deterministic.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Jobs))
	for k := range m.Jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetStatus updates the recorded status (and optional error) of one job.
func (m *Manifest) SetStatus(key, status, errMsg string) {
	e, ok := m.Jobs[key]
	if !ok {
		return
	}
	e.Status = status
	e.Error = errMsg
	m.Jobs[key] = e
}
