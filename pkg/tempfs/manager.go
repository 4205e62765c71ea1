// Package tempfs owns a private scratch directory for engines that need
// short-lived files and directories: per-operation grouping, age-based
// sweeping, and best-effort cleanup that never fails the caller.
package tempfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default sweep policy, per spec.
const (
	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = 10 * time.Minute

	// DefaultMaxAge is the age threshold for automatic sweeps.
	DefaultMaxAge = 2 * time.Hour
)

const dirPerm = 0o750

// ErrNotTemp is returned when an operation is attempted on a path the
// manager does not own.
var ErrNotTemp = errors.New("tempfs: path is not managed by this manager")

// Record describes one entry tracked by the manager.
type Record struct {
	Path        string
	OperationID string
	CreatedAt   time.Time
	IsDir       bool
}

// Stats summarizes the manager's current index.
type Stats struct {
	Count     int
	TotalSize int64
	ByOp      map[string]int
}

// Manager creates, tracks, and reclaims temporary files and directories
// under a single root directory. All methods are safe for concurrent use.
type Manager struct {
	root   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Record

	sweepOnce sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a Manager rooted at baseDir/app/Streaming, creating the
// directory if it does not exist. app is typically the host binary name.
func New(baseDir, app string, logger *slog.Logger) (*Manager, error) {
	root := filepath.Join(baseDir, app, "Streaming")

	err := os.MkdirAll(root, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("tempfs: create root: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		root:    root,
		logger:  logger,
		entries: make(map[string]Record),
	}, nil
}

// Root returns the manager's scratch directory.
func (m *Manager) Root() string {
	return m.root
}

// randomComponent returns a 128-bit random token suitable for a file name.
func randomComponent() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func buildName(prefix, ext string) string {
	if prefix == "" {
		prefix = "tmp"
	}

	name := prefix + "_" + randomComponent()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}

	return name
}

// PathFor returns the path a subsequent CreateFile/CreateDir call with the
// same prefix/ext would be likely to use, without creating anything or
// registering it in the index. Collisions are not possible in practice
// because of the random component, but this path is informational only
// until Register or a Create call is made.
func (m *Manager) PathFor(prefix, ext string) string {
	return filepath.Join(m.root, buildName(prefix, ext))
}

// CreateFile creates an empty file under the scratch root and registers it.
func (m *Manager) CreateFile(prefix, ext, operationID string) (string, error) {
	path := filepath.Join(m.root, buildName(prefix, ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("tempfs: create file: %w", err)
	}

	closeErr := f.Close()
	if closeErr != nil {
		return "", fmt.Errorf("tempfs: close file: %w", closeErr)
	}

	m.register(path, operationID, false)

	return path, nil
}

// CreateDir creates an empty directory under the scratch root and registers it.
func (m *Manager) CreateDir(prefix, operationID string) (string, error) {
	path := filepath.Join(m.root, buildName(prefix, ""))

	err := os.Mkdir(path, dirPerm)
	if err != nil {
		return "", fmt.Errorf("tempfs: create dir: %w", err)
	}

	m.register(path, operationID, true)

	return path, nil
}

// Register adds an already-existing path to the index, so that Delete,
// ListFor, and the sweeper can manage it. The path must already exist.
func (m *Manager) Register(path, operationID string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("tempfs: register: %w", err)
	}

	m.register(path, operationID, info.IsDir())

	return nil
}

func (m *Manager) register(path, operationID string, isDir bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[path] = Record{
		Path:        path,
		OperationID: operationID,
		CreatedAt:   time.Now(),
		IsDir:       isDir,
	}
}

// ListFor returns the paths registered against the given operation ID.
func (m *Manager) ListFor(operationID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string

	for path, rec := range m.entries {
		if rec.OperationID == operationID {
			paths = append(paths, path)
		}
	}

	return paths
}

// IsTemp reports whether path is both prefix-contained by the manager's
// root and present in the index.
func (m *Manager) IsTemp(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	rootAbs, err := filepath.Abs(m.root)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}

	m.mu.RLock()
	_, ok := m.entries[path]
	m.mu.RUnlock()

	return ok
}

// Delete removes a single path. Missing files are a silent success;
// any other deletion error is logged and counted, never returned to a
// caller that only wants best-effort cleanup -- so Delete itself still
// surfaces the error, but Cleanup* callers should not treat it as fatal.
func (m *Manager) Delete(path string) error {
	err := remove(path)

	m.mu.Lock()
	delete(m.entries, path)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("tempfs: delete failed", "path", path, "error", err)

		return fmt.Errorf("tempfs: delete: %w", err)
	}

	return nil
}

func remove(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// CleanupOp deletes every path registered against operationID and returns
// how many were removed. Deletion errors are logged but never fail the
// whole cleanup.
func (m *Manager) CleanupOp(operationID string) int {
	removed := 0

	for _, path := range m.ListFor(operationID) {
		err := m.Delete(path)
		if err != nil {
			continue
		}

		removed++
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for path, rec := range m.entries {
		if rec.OperationID == operationID {
			delete(m.entries, path)
			removed++
		}
	}

	return removed
}

// CleanupOlderThan deletes every entry whose age exceeds maxAge. Passing
// zero forces deletion of everything, matching the "force ZERO at
// shutdown" caller contract.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.RLock()

	var stale []string

	for path, rec := range m.entries {
		if rec.CreatedAt.Before(cutoff) || maxAge == 0 {
			stale = append(stale, path)
		}
	}

	m.mu.RUnlock()

	removed := 0

	for _, path := range stale {
		err := m.Delete(path)
		if err == nil {
			removed++
		}
	}

	return removed
}

// Stats returns a point-in-time snapshot of the manager's index.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{ByOp: make(map[string]int)}

	for path, rec := range m.entries {
		stats.Count++
		stats.ByOp[rec.OperationID]++

		size, err := fileSize(path)
		if err == nil {
			stats.TotalSize += size
		}
	}

	return stats
}

// TotalSize returns the combined size in bytes of every tracked, non-directory entry.
func (m *Manager) TotalSize() int64 {
	return m.Stats().TotalSize
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("tempfs: stat: %w", err)
	}

	if info.IsDir() {
		return 0, nil
	}

	return info.Size(), nil
}

// StartSweeper launches the background age-based sweeper. Calling it more
// than once has no effect beyond the first call. Stop must be called to
// release the goroutine.
func (m *Manager) StartSweeper(interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	m.sweepOnce.Do(func() {
		m.stopSweep = make(chan struct{})
		m.sweepDone = make(chan struct{})

		go m.sweepLoop(interval, maxAge)
	})
}

func (m *Manager) sweepLoop(interval, maxAge time.Duration) {
	defer close(m.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			removed := m.CleanupOlderThan(maxAge)
			if removed > 0 {
				m.logger.Debug("tempfs: swept stale entries", "removed", removed)
			}
		}
	}
}

// StopSweeper stops the background sweeper started by StartSweeper, if any.
func (m *Manager) StopSweeper() {
	if m.stopSweep == nil {
		return
	}

	select {
	case <-m.stopSweep:
		// already stopped.
	default:
		close(m.stopSweep)
		<-m.sweepDone
	}
}
