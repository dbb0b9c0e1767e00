package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	out, err := execute(newVersionCmd(), "version")
	require.NoError(t, err)

	// Test binaries carry build info without a main module version.
	if out == "version: unknown\n" {
		return
	}

	assert.Contains(t, out, "templar version")
	assert.Contains(t, out, "go version")
}
