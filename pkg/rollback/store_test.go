package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()

	s, err := New(t.TempDir(), retention, 2, nil)
	require.NoError(t, err)

	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestCreate_SnapshotSoundness(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "hello world")

	s := newTestStore(t, time.Hour)

	res, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)
	require.Len(t, res.Session.Files, 1)
	assert.Empty(t, res.Errors)

	snap := res.Session.Files[0]
	sum, err := hashFile(snap.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, snap.OriginalChecksum, sum)
	assert.Equal(t, snap.BackupChecksum, sum)
}

func TestCreate_MissingFileIsSkipped(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Hour)

	res, err := s.Create(context.Background(), "op1", "bulk_replace", []string{"/no/such/file.txt"})
	require.NoError(t, err)
	assert.Empty(t, res.Session.Files)
	assert.Equal(t, []string{"/no/such/file.txt"}, res.Skipped)
}

func TestRollback_RestoreFaithfulness(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "original content")

	s := newTestStore(t, time.Hour)

	res, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	writeFile(t, a, "mutated content")

	restoreRes, err := s.Rollback(context.Background(), res.Session.RollbackID)
	require.NoError(t, err)
	assert.True(t, restoreRes.Success)

	data, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "original content", string(data))
}

func TestVerify_DetectsCorruption(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "some content here")

	s := newTestStore(t, time.Hour)

	res, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(res.Session.Files[0].BackupPath, []byte("x"), 0o600))

	verify, err := s.Verify(res.Session.RollbackID)
	require.NoError(t, err)
	assert.False(t, verify.Success)
	assert.Equal(t, 1, verify.Corrupted)
	assert.Equal(t, 0, verify.Verified)
}

func TestCleanupExpired_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "x")

	s := newTestStore(t, 0)

	_, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	removed1 := s.CleanupExpired()
	removed2 := s.CleanupExpired()

	assert.Equal(t, 1, removed1)
	assert.Equal(t, 0, removed2)
	assert.Empty(t, s.List())
}

func TestExportImport_PreservesMetadataExceptID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "exported content")

	s := newTestStore(t, time.Hour)

	res, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, s.Export(res.Session.RollbackID, exportPath))

	imported, err := s.Import(exportPath)
	require.NoError(t, err)

	assert.NotEqual(t, res.Session.RollbackID, imported.RollbackID)
	assert.Equal(t, res.Session.OperationID, imported.OperationID)
	require.Len(t, imported.Files, 1)
	assert.Equal(t, res.Session.Files[0].BackupPath, imported.Files[0].BackupPath)
	assert.Equal(t, res.Session.Files[0].OriginalChecksum, imported.Files[0].OriginalChecksum)
}

func TestList_ExcludesExpired(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "x")

	s := newTestStore(t, time.Hour)

	_, err := s.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	assert.Len(t, s.List(), 1)

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.ExpiresAt = time.Now().Add(-time.Minute)
	}
	s.mu.Unlock()

	assert.Empty(t, s.List())
	assert.Len(t, s.History(), 1)
}

func TestStartup_LoadsRestorableSessions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "x")

	s1, err := New(root, time.Hour, 2, nil)
	require.NoError(t, err)

	_, err = s1.Create(context.Background(), "op1", "bulk_replace", []string{a})
	require.NoError(t, err)

	s2, err := New(root, time.Hour, 2, nil)
	require.NoError(t, err)

	assert.Len(t, s2.List(), 1)
}
