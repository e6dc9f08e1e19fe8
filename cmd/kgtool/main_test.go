// File: cmd/kgtool/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kgtool/cmd"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRun_ExitCodes(t *testing.T) {
	defer resetMocks()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", fmt.Errorf("generation stopped: %w", context.Canceled), 0},
		{"failure", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(context.Context) error { return tt.err }
			assert.Equal(t, tt.want, run(context.Background()))
		})
	}
}

func TestRunMain_ReleasesSignalContext(t *testing.T) {
	defer resetMocks()

	var seen context.Context
	execute = func(ctx context.Context) error {
		seen = ctx
		return errors.New("boom")
	}

	assert.Equal(t, 1, runMain())
	require.NotNil(t, seen)
	assert.ErrorIs(t, seen.Err(), context.Canceled, "stop must run before the exit code is returned")
}

func TestHandlePanic(t *testing.T) {
	t.Run("writes the panic log and exits 1", func(t *testing.T) {
		defer resetMocks()
		var written string
		var path string
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path = name
			written = string(data)
			return nil
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("edge generator exploded")
		}()

		assert.Equal(t, 1, exitCode)
		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, written, "panic: edge generator exploded")
		assert.Contains(t, written, "goroutine")
	})

	t.Run("still exits when the log cannot be written", func(t *testing.T) {
		defer resetMocks()
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 1, exitCode)
	})

	t.Run("does nothing without a panic", func(t *testing.T) {
		defer resetMocks()
		called := false
		osExit = func(int) { called = true }

		require.NotPanics(t, func() {
			defer handlePanic()
		})
		assert.False(t, called)
	})
}
