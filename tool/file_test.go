package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/adolfousier/opencrab"
)

func invoke(t *testing.T, reg Registration, args any) (ai.ToolResult, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)

	r := NewRegistry().Add(reg)
	result, _, err := r.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      reg.Tool.Name,
		Arguments: string(raw),
	})
	return result, err
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	result, err := invoke(t, ReadFileTool(WithBasePath(dir)), map[string]string{
		"path": "hello.txt",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hello world", result.Content)
}

func TestReadFileToolEscapesBase(t *testing.T) {
	dir := t.TempDir()

	result, err := invoke(t, ReadFileTool(WithBasePath(dir)), map[string]string{
		"path": "../../etc/passwd",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "outside base path")
}

func TestReadFileToolSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	result, err := invoke(t, ReadFileTool(WithBasePath(dir), WithMaxFileSize(10)), map[string]string{
		"path": "big.txt",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "exceeds maximum")
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()

	result, err := invoke(t, WriteFileTool(WithBasePath(dir)), map[string]string{
		"path":    "sub/out.txt",
		"content": "data",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestWriteFileToolAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0o644))

	result, err := invoke(t, WriteFileTool(WithBasePath(dir)), map[string]any{
		"path":    "log.txt",
		"content": "two\n",
		"append":  true,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestWriteFileToolExtensionCheck(t *testing.T) {
	dir := t.TempDir()

	result, err := invoke(t, WriteFileTool(WithBasePath(dir), WithAllowedExtensions(".md")), map[string]string{
		"path":    "script.sh",
		"content": "#!/bin/sh",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "not allowed")
}

func TestListDirTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	result, err := invoke(t, ListDirTool(WithBasePath(dir)), map[string]string{
		"path": ".",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "a.txt\nb.txt\nsub/", result.Content)
}

func TestFileToolCapabilities(t *testing.T) {
	assert.False(t, ReadFileTool().Tool.Dangerous())
	assert.False(t, ListDirTool().Tool.Dangerous())
	assert.True(t, WriteFileTool().Tool.Dangerous())
	assert.True(t, HTTPRequestTool().Tool.Dangerous())
	assert.True(t, RunCommandTool().Tool.Dangerous())
}

func TestRunCommandToolDenied(t *testing.T) {
	result, err := invoke(t, RunCommandTool(WithDeniedCommands("rm")), map[string]string{
		"command": "rm -rf /tmp/x",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "denied")
}

func TestRunCommandTool(t *testing.T) {
	result, err := invoke(t, RunCommandTool(), map[string]string{
		"command": "echo hello",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hello\n", result.Content)
}

func TestSearchFilesTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("func not go\n"), 0o644))

	result, err := invoke(t, SearchFilesTool(WithSearchPath(dir)), map[string]string{
		"pattern": `func \w+\(`,
		"glob":    "*.go",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "a.go:2")
	assert.NotContains(t, result.Content, "b.txt")
}

func TestSearchFilesToolNoMatches(t *testing.T) {
	dir := t.TempDir()

	result, err := invoke(t, SearchFilesTool(WithSearchPath(dir)), map[string]string{
		"pattern": "nothing",
	})
	require.NoError(t, err)
	assert.Equal(t, "no matches", result.Content)
}

func TestSearchFilesToolBadPattern(t *testing.T) {
	result, err := invoke(t, SearchFilesTool(), map[string]string{
		"pattern": "[unclosed",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid pattern")
}
