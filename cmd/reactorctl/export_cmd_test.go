package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunExportRequiresAllFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"reactorctl", "export", "--db", "replay.sqlite"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "required")
}
