package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// DefaultRetention is the number of checkpoints kept per operation before
// the oldest are pruned.
const DefaultRetention = 10

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

const checkpointPrefix = "checkpoint_"

// Manager persists and prunes checkpoints for stream operations, one
// subdirectory per operation ID.
type Manager struct {
	baseDir   string
	retention int
}

// NewManager creates a Manager rooted at baseDir. retention <= 0 falls
// back to DefaultRetention.
func NewManager(baseDir string, retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Manager{baseDir: baseDir, retention: retention}
}

func (m *Manager) operationDir(operationID string) string {
	return filepath.Join(m.baseDir, operationID)
}

func (m *Manager) checkpointPath(operationID, checkpointID string) string {
	return filepath.Join(m.operationDir(operationID), checkpointPrefix+checkpointID+".json")
}

// Save writes cp for operationID, assigning a checkpoint ID and creation
// timestamp when absent, then prunes older checkpoints beyond retention.
func (m *Manager) Save(operationID string, cp Checkpoint) (Checkpoint, error) {
	if cp.CheckpointID == "" {
		cp.CheckpointID = uuid.NewString()
	}

	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	dir := m.operationDir(operationID)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return Checkpoint{}, fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return Checkpoint{}, fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := atomic.WriteFile(m.checkpointPath(operationID, cp.CheckpointID), bytes.NewReader(data)); err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint: %w", err)
	}

	if err := m.prune(operationID); err != nil {
		return Checkpoint{}, fmt.Errorf("prune checkpoints: %w", err)
	}

	return cp, nil
}

// prune keeps only the retention most recent checkpoints for operationID.
func (m *Manager) prune(operationID string) error {
	checkpoints, err := m.List(operationID)
	if err != nil {
		return err
	}

	if len(checkpoints) <= m.retention {
		return nil
	}

	stale := checkpoints[:len(checkpoints)-m.retention]
	for _, cp := range stale {
		if err := os.Remove(m.checkpointPath(operationID, cp.CheckpointID)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// Load reads a specific checkpoint by ID.
func (m *Manager) Load(operationID, checkpointID string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath(operationID, checkpointID))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	return &cp, nil
}

// Latest returns the most recently created checkpoint for operationID, or
// nil if none exist.
func (m *Manager) Latest(operationID string) (*Checkpoint, error) {
	checkpoints, err := m.List(operationID)
	if err != nil {
		return nil, err
	}

	if len(checkpoints) == 0 {
		return nil, nil
	}

	return &checkpoints[len(checkpoints)-1], nil
}

// List returns all checkpoints for operationID sorted ascending by
// CreatedAt.
func (m *Manager) List(operationID string) ([]Checkpoint, error) {
	dir := m.operationDir(operationID)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	checkpoints := make([]Checkpoint, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, checkpointPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			continue
		}

		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}

		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.Before(checkpoints[j].CreatedAt)
	})

	return checkpoints, nil
}

// Clear removes every checkpoint for operationID.
func (m *Manager) Clear(operationID string) error {
	if err := os.RemoveAll(m.operationDir(operationID)); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}

	return nil
}
