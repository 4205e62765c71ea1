package bulkedit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statFile(t *testing.T, dir, name, content string) os.FileInfo {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)

	return info
}

func TestCondition_Contains(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "has needle inside")

	ok, err := Condition{Kind: Contains, Text: "needle"}.Evaluate([]byte("has needle inside"), filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCondition_Matches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "version 1.2.3")

	ok, err := Condition{Kind: Matches, Pattern: `\d+\.\d+\.\d+`}.Evaluate([]byte("version 1.2.3"), filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCondition_Extension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.go", "package main")

	ok, err := Condition{Kind: Extension, Text: ".go"}.Evaluate(nil, filepath.Join(dir, "a.go"), info)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCondition_Negate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "no match")

	ok, err := Condition{Kind: Contains, Text: "zzz", Negate: true}.Evaluate([]byte("no match"), filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCondition_SizeRange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "12345")

	ok, err := Condition{Kind: SizeRange, MinSize: 1, MaxSize: 10}.Evaluate(nil, filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Condition{Kind: SizeRange, MinSize: 10, MaxSize: 20}.Evaluate(nil, filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCondition_ModifiedAfter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "x")

	ok, err := Condition{Kind: ModifiedAfter, After: time.Now().Add(-time.Hour)}.Evaluate(nil, filepath.Join(dir, "a.txt"), info)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCondition_InvalidRegex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := statFile(t, dir, "a.txt", "x")

	_, err := Condition{Kind: Matches, Pattern: "(unclosed"}.Evaluate([]byte("x"), filepath.Join(dir, "a.txt"), info)
	require.Error(t, err)
}
