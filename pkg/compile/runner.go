// Package compile produces ``.lock`` and ``.unlock`` files from ``.in``
// requirement files.
//
// Locking shells out to an external dependency resolver (pip-compile)
// once per requirement stem, with a per-file timeout; a failed or timed
// out compile is recorded and the remaining files still compile.
// Unlocking is purely local: the include graph is flattened into
// ``.unlock`` files without touching any resolver.
package compile

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result captures one resolver invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// TimedOut is set when the invocation was killed by its deadline.
	TimedOut bool
}

// Run executes a command with a deadline, capturing output. A non-zero
// exit or timeout is reported in the Result, not as an error; the error
// return is for failures to start the process at all.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if res.TimedOut {
			res.ExitCode = -1
			return res, nil
		}
		return res, err
	}
	return res, nil
}
