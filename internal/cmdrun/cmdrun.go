package cmdrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

const waitDelay = time.Second

// ErrExitCode is returned (wrapped) when the command exits with a non-zero code.
var ErrExitCode = errors.New("non-zero exit code")

// Result is the outcome of a finished command.
type Result struct {
	Output   []byte
	ExitCode int
}

// Run runs an arbitrary command in workDir and returns its combined output.
// env is appended to the environment of the current process.
// Returns an error wrapping ErrExitCode together with the result
// if the command exited with a non-zero exit code.
// Any other error is returned as is with an empty result.
func Run(
	ctx context.Context, workDir string, env []string, cmd string, args ...string,
) (Result, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = workDir
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}
	// Don't wait for orphaned child processes holding on to the output pipe.
	c.WaitDelay = waitDelay
	out, err := c.CombinedOutput()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return Result{}, ctx.Err() // Killed due to cancellation.
		}
		r := Result{Output: out, ExitCode: exitErr.ExitCode()}
		return r, fmt.Errorf("%w: %d", ErrExitCode, r.ExitCode)
	} else if err != nil {
		return Result{}, err
	}
	return Result{Output: out}, nil
}

// Sh runs an arbitrary shell script and behaves similar to Run.
func Sh(ctx context.Context, workDir string, env []string, sh string) (Result, error) {
	if runtime.GOOS == "windows" {
		return Run(ctx, workDir, env, "cmd", "/c", sh)
	}
	return Run(ctx, workDir, env, "sh", "-c", sh)
}
