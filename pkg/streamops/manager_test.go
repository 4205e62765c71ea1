package streamops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_CreatedRunningCompleted(t *testing.T) {
	t.Parallel()

	m := NewManager(2, nil, nil)
	m.Create("op1", "test", nil)

	runCtx, err := m.Start(context.Background(), "op1")
	require.NoError(t, err)
	require.NotNil(t, runCtx)

	op, ok := m.Get("op1")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, op.Status)
	assert.NotNil(t, op.StartedAt)

	require.NoError(t, m.Complete("op1"))

	op, _ = m.Get("op1")
	assert.Equal(t, StatusCompleted, op.Status)
	assert.NotNil(t, op.CompletedAt)
}

func TestLifecycle_PauseResume(t *testing.T) {
	t.Parallel()

	m := NewManager(1, nil, nil)
	m.Create("op1", "test", nil)

	_, err := m.Start(context.Background(), "op1")
	require.NoError(t, err)

	require.NoError(t, m.Pause("op1"))

	op, _ := m.Get("op1")
	assert.Equal(t, StatusPaused, op.Status)

	require.NoError(t, m.Resume("op1"))

	op, _ = m.Get("op1")
	assert.Equal(t, StatusRunning, op.Status)
}

func TestCancel_TransitionsAtNextCheckpoint(t *testing.T) {
	t.Parallel()

	m := NewManager(1, nil, nil)
	m.Create("op1", "test", nil)

	runCtx, err := m.Start(context.Background(), "op1")
	require.NoError(t, err)

	require.NoError(t, m.Cancel("op1"))
	assert.Error(t, runCtx.Err())

	require.NoError(t, m.MarkCancelled("op1"))

	op, _ := m.Get("op1")
	assert.Equal(t, StatusCancelled, op.Status)
}

func TestInvalidTransition_Rejected(t *testing.T) {
	t.Parallel()

	m := NewManager(1, nil, nil)
	m.Create("op1", "test", nil)

	err := m.Pause("op1")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrencyCap_BlocksUntilPermitFrees(t *testing.T) {
	t.Parallel()

	m := NewManager(1, nil, nil)
	m.Create("op1", "a", nil)
	m.Create("op2", "b", nil)

	_, err := m.Start(context.Background(), "op1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = m.Start(ctx, "op2")
	require.Error(t, err)

	require.NoError(t, m.Complete("op1"))

	_, err = m.Start(context.Background(), "op2")
	require.NoError(t, err)
}

func TestCleanup_RemovesOldTerminalOperationsOnly(t *testing.T) {
	t.Parallel()

	m := NewManager(2, nil, nil)

	m.Create("failed-old", "a", nil)
	_, _ = m.Start(context.Background(), "failed-old")
	require.NoError(t, m.Fail("failed-old"))

	m.mu.Lock()
	past := time.Now().Add(-3 * time.Hour)
	m.ops["failed-old"].CompletedAt = &past
	m.mu.Unlock()

	m.Create("completed-recent", "b", nil)
	_, _ = m.Start(context.Background(), "completed-recent")
	require.NoError(t, m.Complete("completed-recent"))

	removed := m.Cleanup(2 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := m.Get("failed-old")
	assert.False(t, ok)

	_, ok = m.Get("completed-recent")
	assert.True(t, ok)
}

func TestList_ReturnsSnapshot(t *testing.T) {
	t.Parallel()

	m := NewManager(2, nil, nil)
	m.Create("op1", "a", nil)
	m.Create("op2", "b", nil)

	ops := m.List()
	assert.Len(t, ops, 2)
}
