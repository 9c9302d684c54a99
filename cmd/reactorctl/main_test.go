package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunValidateAcceptsWellFormedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fast_forward: true\nkeep_alive: false\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl", "validate", "--config", path}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "valid")
}

func TestRunValidateRejectsMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fast_forward: true\nbogus_field: 1\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl", "validate", "--config", path}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "invalid runtime config")
}

func TestRunRunExecutesPingpongExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fast_forward: true\nkeep_alive: false\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl", "run", "--config", path, "--rounds", "3"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "run complete")
}

func TestRunWithNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "Usage")
}

func TestRunWithUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl", "bogus"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "unknown command")
}
