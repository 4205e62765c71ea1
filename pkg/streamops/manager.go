// Package streamops wraps pkg/streamproc with a lifecycle, a global
// concurrency cap, and automatic cleanup — the stream-job counterpart to
// pkg/rollback's session bookkeeping.
package streamops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codesmith-dev/codesmith/pkg/checkpoint"
	"github.com/codesmith-dev/codesmith/pkg/tempfs"
)

// DefaultCleanupInterval is how often the background sweeper runs.
const DefaultCleanupInterval = 10 * time.Minute

// DefaultCleanupHorizon is how old a terminal (failed/cancelled)
// operation must be before the sweeper reclaims it.
const DefaultCleanupHorizon = 2 * time.Hour

// ErrNotFound is returned by operations on an unknown operation ID.
var ErrNotFound = errors.New("streamops: operation not found")

// Manager tracks stream operations through their lifecycle and bounds
// global concurrency to the configured processor count.
type Manager struct {
	mu  sync.RWMutex
	ops map[string]*Operation

	sem    *semaphore.Weighted
	tmp    *tempfs.Manager
	logger *slog.Logger

	sweepOnce sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewManager creates a Manager whose global concurrency cap equals
// processorCount. tmp may be nil if operations never record temp files.
func NewManager(processorCount int, tmp *tempfs.Manager, logger *slog.Logger) *Manager {
	if processorCount <= 0 {
		processorCount = runtime.GOMAXPROCS(0)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		ops:    make(map[string]*Operation),
		sem:    semaphore.NewWeighted(int64(processorCount)),
		tmp:    tmp,
		logger: logger,
	}
}

// Create registers a new operation in the "created" state. request is an
// opaque payload (typically a streamproc.Request) kept for resubmission
// and progress correlation.
func (m *Manager) Create(operationID, name string, request any) *Operation {
	op := &Operation{
		OperationID: operationID,
		Name:        name,
		Request:     request,
		Status:      StatusCreated,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.ops[operationID] = op
	m.mu.Unlock()

	return op.snapshot()
}

func (m *Manager) locked(operationID string) (*Operation, error) {
	op, ok := m.ops[operationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, operationID)
	}

	return op, nil
}

// Start acquires a global concurrency permit and transitions the
// operation to "running", returning a context that is cancelled when
// Cancel is later called against this operation ID.
func (m *Manager) Start(ctx context.Context, operationID string) (context.Context, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("streamops: acquire concurrency permit: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.locked(operationID)
	if err != nil {
		m.sem.Release(1)

		return nil, err
	}

	if err := op.transition(StatusRunning); err != nil {
		m.sem.Release(1)

		return nil, err
	}

	now := time.Now()
	op.StartedAt = &now

	runCtx, cancel := context.WithCancel(ctx)
	op.cancel = cancel

	return runCtx, nil
}

// Pause freezes dispatch of new chunks while preserving in-memory state
// and the last checkpoint.
func (m *Manager) Pause(operationID string) error {
	return m.applyTransition(operationID, StatusPaused)
}

// Resume transitions a paused operation back toward "running" via
// "resumed", per the state machine.
func (m *Manager) Resume(operationID string) error {
	if err := m.applyTransition(operationID, StatusResumed); err != nil {
		return err
	}

	return m.applyTransition(operationID, StatusRunning)
}

func (m *Manager) applyTransition(operationID string, next Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.locked(operationID)
	if err != nil {
		return err
	}

	return op.transition(next)
}

// Cancel sets the operation's cancellation handle. The running pipeline
// observes this at its next cooperative suspension point; the caller must
// then report the outcome via Complete/Fail/MarkCancelled.
func (m *Manager) Cancel(operationID string) error {
	m.mu.RLock()
	op, err := m.locked(operationID)
	m.mu.RUnlock()

	if err != nil {
		return err
	}

	if op.cancel != nil {
		op.cancel()
	}

	return nil
}

// MarkCancelled transitions a running/paused operation to "cancelled"
// once its pipeline has observed the cancellation signal, and releases
// its concurrency permit.
func (m *Manager) MarkCancelled(operationID string) error {
	return m.finish(operationID, StatusCancelled)
}

// Complete transitions a running operation to "completed" and releases
// its concurrency permit.
func (m *Manager) Complete(operationID string) error {
	return m.finish(operationID, StatusCompleted)
}

// Fail transitions a running operation to "failed" and releases its
// concurrency permit.
func (m *Manager) Fail(operationID string) error {
	return m.finish(operationID, StatusFailed)
}

func (m *Manager) finish(operationID string, terminal Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.locked(operationID)
	if err != nil {
		return err
	}

	if err := op.transition(terminal); err != nil {
		return err
	}

	now := time.Now()
	op.CompletedAt = &now

	m.sem.Release(1)

	return nil
}

// Checkpoint records cp as the operation's most recent checkpoint,
// regardless of current status.
func (m *Manager) Checkpoint(operationID string, cp *checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.locked(operationID)
	if err != nil {
		return err
	}

	now := time.Now()
	op.LastCheckpoint = cp
	op.LastCheckpointAt = &now

	return nil
}

// RecordTempFile associates a temp path with an operation, so it is
// reclaimed on cleanup.
func (m *Manager) RecordTempFile(operationID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.locked(operationID)
	if err != nil {
		return err
	}

	op.TempFiles = append(op.TempFiles, path)

	if m.tmp != nil {
		return m.tmp.Register(path, operationID)
	}

	return nil
}

// Get returns a snapshot of one operation.
func (m *Manager) Get(operationID string) (*Operation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.ops[operationID]
	if !ok {
		return nil, false
	}

	return op.snapshot(), true
}

// List returns a monotonic snapshot of every tracked operation.
func (m *Manager) List() []*Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Operation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op.snapshot())
	}

	return out
}

// Cleanup removes terminal (failed/cancelled) operations older than
// horizon, reclaiming their recorded temp files. Completed operations are
// not swept: they are expected to be explicitly released by the caller
// once their result has been consumed.
func (m *Manager) Cleanup(horizon time.Duration) int {
	cutoff := time.Now().Add(-horizon)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for id, op := range m.ops {
		if op.Status != StatusFailed && op.Status != StatusCancelled {
			continue
		}

		if op.CompletedAt == nil || op.CompletedAt.After(cutoff) {
			continue
		}

		if m.tmp != nil {
			m.tmp.CleanupOp(id)
		}

		delete(m.ops, id)
		removed++
	}

	return removed
}

// StartCleanupSweeper launches the background sweeper. Calling it more
// than once has no effect beyond the first call.
func (m *Manager) StartCleanupSweeper(interval, horizon time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	if horizon <= 0 {
		horizon = DefaultCleanupHorizon
	}

	m.sweepOnce.Do(func() {
		m.stopSweep = make(chan struct{})
		m.sweepDone = make(chan struct{})

		go m.sweepLoop(interval, horizon)
	})
}

func (m *Manager) sweepLoop(interval, horizon time.Duration) {
	defer close(m.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			removed := m.Cleanup(horizon)
			if removed > 0 {
				m.logger.Debug("streamops: swept terminal operations", "removed", removed)
			}
		}
	}
}

// StopCleanupSweeper stops the background sweeper started by
// StartCleanupSweeper, if any.
func (m *Manager) StopCleanupSweeper() {
	if m.stopSweep == nil {
		return
	}

	select {
	case <-m.stopSweep:
	default:
		close(m.stopSweep)
		<-m.sweepDone
	}
}
