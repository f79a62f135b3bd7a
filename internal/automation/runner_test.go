// internal/automation/runner_test.go
package automation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chimeradev/chimera-navigator/internal/automation"
)

func TestExecuteCapturesOutput(t *testing.T) {
	runner := automation.NewRunner()

	result, err := runner.Execute(context.Background(), "echo hello pipeline")
	assert.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "hello pipeline\n", result.Output)
	assert.Empty(t, result.Error)
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	runner := automation.NewRunner()

	result, err := runner.Execute(context.Background(), "echo broken >&2; exit 3")
	assert.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "broken\n", result.Error)
}

func TestExecuteTimeout(t *testing.T) {
	runner := &automation.Runner{Timeout: 100 * time.Millisecond}

	result, err := runner.Execute(context.Background(), "sleep 5")
	assert.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.Error)
}

func TestExecuteEmptyCommand(t *testing.T) {
	runner := automation.NewRunner()

	_, err := runner.Execute(context.Background(), "")
	assert.Error(t, err)
}
