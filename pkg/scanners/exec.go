package scanners

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
const waitDelay = 5 * time.Second

// toolOutput is what a finished tool process left behind.
type toolOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// unusable reports a non-zero exit with nothing on stdout.
func (o toolOutput) unusable() bool {
	return o.ExitCode != 0 && len(bytes.TrimSpace(o.Stdout)) == 0
}

func (o toolOutput) executionError() error {
	msg := strings.TrimSpace(string(o.Stderr))
	if msg == "" {
		msg = "no output"
	}
	return fmt.Errorf("%w: exit status %d: %s", ErrExecution, o.ExitCode, msg)
}

// runTool runs bin with args under its own deadline and captures both streams.
// A non-zero exit is reported through ExitCode, not as an error; errors are reserved for
// a missing binary, a failed launch and a timeout.
func runTool(ctx context.Context, timeout time.Duration, bin string, args ...string) (toolOutput, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return toolOutput{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, bin, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := toolOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w: %s did not finish within %s", ErrTimeout, bin, timeout)
	}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrExecution, bin, ctx.Err())
		}
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, exec.ErrNotFound) {
		return out, fmt.Errorf("%w: %s: %v", ErrUnavailable, bin, err)
	}
	return out, fmt.Errorf("%w: %s: %v", ErrExecution, bin, err)
}
