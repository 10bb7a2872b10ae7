package cli

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestCommandError(t *testing.T) {
	t.Run("implements error interface", func(t *testing.T) {
		err := NewCommandError(ExitFailure)
		assert.Error(t, err)
		assert.Equal(t, "command failed", err.Error())
	})

	t.Run("returns exit code", func(t *testing.T) {
		err := NewCommandError(42)
		assert.Equal(t, err.ExitCode(), 42)
	})

	t.Run("declined overwrite", func(t *testing.T) {
		err := NewCommandError(ExitDeclined)
		assert.Equal(t, "command declined", err.Error())
		assert.Equal(t, 2, err.ExitCode())
	})

	t.Run("supports type assertion", func(t *testing.T) {
		var err error = NewCommandError(1)
		cmdErr, ok := err.(*CommandError)
		assert.True(t, ok)
		assert.Equal(t, cmdErr.ExitCode(), 1)
	})
}
