package integration_tests

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stepgridgo/internal/cli"
)

// Test for: displays help
func TestCLI_DisplaysHelp_WhenNoCommandIsProvided(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Capture everything the CLI prints.
	outW := &bytes.Buffer{}

	// --- Act ---
	err := cli.Execute(context.Background(), outW, []string{})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, outW.String(), "Usage:")
	for _, command := range []string{"run", "validate", "history"} {
		require.Contains(t, outW.String(), command)
	}
}

// Test for: each command documents its own flags
func TestCLI_DisplaysCommandHelp(t *testing.T) {
	t.Parallel()

	outW := &bytes.Buffer{}

	err := cli.Execute(context.Background(), outW, []string{"history", "--help"})

	require.NoError(t, err)
	require.Contains(t, outW.String(), "--limit")
	require.Contains(t, outW.String(), "--history", "persistent flags are inherited")
}
