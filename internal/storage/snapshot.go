package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldrover/rovermon/pkg/models"
)

// SnapshotManager persists the latest telemetry snapshot so the status
// command and the dashboard can read it without talking to the agent.
type SnapshotManager interface {
	Write(snapshot models.Snapshot) error
	Read() (*models.Snapshot, error)
}

type fileSnapshotManager struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotManager creates a SnapshotManager writing to the given path.
func NewSnapshotManager(path string) SnapshotManager {
	return &fileSnapshotManager{path: path}
}

// Write marshals the snapshot and replaces the file atomically via a
// temp-file rename, so readers never observe a partial write.
func (m *fileSnapshotManager) Write(snapshot models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot file: %w", err)
	}
	return nil
}

// Read loads the latest snapshot. It returns nil with no error when no
// snapshot has been written yet.
func (m *fileSnapshotManager) Read() (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snapshot, nil
}
