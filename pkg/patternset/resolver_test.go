package patternset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestResolve_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	writeFile(t, f, "hi")

	r := New(nil)
	res := r.Resolve([]string{f}, Options{})

	assert.Equal(t, []string{f}, res.Files)
}

func TestResolve_Directory_Recursive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "1")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "2")

	r := New(nil)
	res := r.Resolve([]string{dir}, Options{})

	assert.Len(t, res.Files, 2)
}

func TestResolve_Glob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "1")
	writeFile(t, filepath.Join(dir, "b.go"), "2")
	writeFile(t, filepath.Join(dir, "c.txt"), "3")

	r := New(nil)
	res := r.Resolve([]string{filepath.Join(dir, "*.go")}, Options{})

	assert.Len(t, res.Files, 2)
}

func TestResolve_Dedup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	writeFile(t, f, "1")

	r := New(nil)
	res := r.Resolve([]string{f, f, dir}, Options{})

	assert.Len(t, res.Files, 1)
}

func TestResolve_ExcludeHidden(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "visible.txt"), "1")
	writeFile(t, filepath.Join(dir, ".hidden"), "2")

	r := New(nil)
	res := r.Resolve([]string{dir}, Options{ExcludeHidden: true})

	assert.Len(t, res.Files, 1)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "hidden", res.Skipped[0].Reason)
}

func TestResolve_ExcludePatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "1")
	writeFile(t, filepath.Join(dir, "a_test.go"), "2")

	r := New(nil)
	res := r.Resolve([]string{dir}, Options{ExcludePatterns: []string{"*_test.go"}})

	assert.Len(t, res.Files, 1)
}

func TestResolve_MaxFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	big := filepath.Join(dir, "big.txt")
	writeFile(t, small, "x")
	writeFile(t, big, "xxxxxxxxxxxxxxxxxxxx")

	r := New(nil)
	res := r.Resolve([]string{dir}, Options{MaxFileSize: 5})

	assert.Equal(t, []string{small}, res.Files)
}

func TestResolve_MissingEntryLoggedAndSkipped(t *testing.T) {
	t.Parallel()

	r := New(nil)
	res := r.Resolve([]string{"/no/such/path/***"}, Options{})

	assert.Empty(t, res.Files)
}
