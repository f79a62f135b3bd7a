// internal/automation/runner.go
package automation

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/chimeradev/chimera-navigator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

const defaultTimeout = 5 * time.Minute

// Result is the captured outcome of one external pipeline invocation. The
// subprocess is an opaque collaborator: only its exit code and streams are
// visible.
type Result struct {
	Succeeded bool   `json:"succeeded"`
	Output    string `json:"output"`
	Error     string `json:"error"`
}

// Runner shells out to the external transformation pipeline.
type Runner struct {
	Timeout time.Duration
}

func NewRunner() *Runner {
	return &Runner{Timeout: defaultTimeout}
}

// Execute runs a single command line through the shell, capturing stdout and
// stderr. A non-zero exit code is folded into Succeeded=false rather than an
// error; an error return means the command could not be run at all.
func (r *Runner) Execute(ctx context.Context, command string) (*Result, error) {
	if command == "" {
		return nil, errors.New("empty automation command")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	customLog.Printf("Automation: executing pipeline command: %s", command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Succeeded: err == nil,
		Output:    stdout.String(),
		Error:     stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Pipeline ran and failed; report it through the result.
			if result.Error == "" {
				result.Error = err.Error()
			}
			customLog.Warnf("Automation: pipeline command failed: %v", err)
			return result, nil
		}
		customLog.Warnf("Automation: pipeline command could not be started: %v", err)
		return nil, err
	}

	customLog.Printf("Automation: pipeline command completed successfully")
	return result, nil
}
