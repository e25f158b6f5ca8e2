package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultFillsAllFields(t *testing.T) {
	cfg := Default()
	require.NotEmpty(t, cfg.HTTPAddr)
	require.NotEmpty(t, cfg.LogLevel)
	require.NotEmpty(t, cfg.DisasmSyntax)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "godbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	require.Equal(t, "intel", cfg.DisasmSyntax)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "godbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidDisasmSyntax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "godbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disasm_syntax: risc\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
