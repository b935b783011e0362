package step

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
)

// ErrUnresolvedReference is recorded when a RunStep action reaches the
// executor without having been rewritten to a shell command.
var ErrUnresolvedReference = errors.New("unresolved step reference")

// ShellExecutor runs shell actions, applies filters, checks the expectation
// and retries according to the step's policy.
type ShellExecutor struct {
	// Shell is the interpreter invoked as `Shell -c <command>`.
	Shell string
	// Dir is the working directory of every command. Empty means the
	// current directory.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// NewShellExecutor returns an executor using /bin/sh.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{Shell: "/bin/sh"}
}

// Execute never returns a Go error: every failure is carried by the Outcome.
// Duration covers all attempts including the delays between them.
func (e *ShellExecutor) Execute(ctx context.Context, run RunType, expect ExpectType, filters []FilterType, retry RetryPolicy) Outcome {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	if run.Kind != RunShell {
		return Outcome{Err: fmt.Errorf("%w: %s", ErrUnresolvedReference, run.Value), Duration: time.Since(start)}
	}

	var (
		output string
		err    error
	)
	attempts := retry.MaxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err = e.attempt(ctx, run.Value, expect, filters)
		if err == nil {
			break
		}
		logger.Debug("Step attempt failed.", "attempt", attempt, "of", attempts, "error", err)
		if attempt == attempts {
			break
		}
		if werr := retry.wait(ctx); werr != nil {
			err = fmt.Errorf("retry aborted: %w (last error: %v)", werr, err)
			break
		}
	}

	return Outcome{Output: output, Err: err, Duration: time.Since(start)}
}

// attempt runs the command once and validates its filtered output.
func (e *ShellExecutor) attempt(ctx context.Context, command string, expect ExpectType, filters []FilterType) (string, error) {
	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = e.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.String(), fmt.Errorf("command failed: %w: %s", err, msg)
		}
		return stdout.String(), fmt.Errorf("command failed: %w", err)
	}

	output, err := ApplyFilters(ctx, stdout.String(), filters)
	if err != nil {
		return stdout.String(), err
	}
	if err := expect.Check(ctx, output); err != nil {
		return output, err
	}
	return output, nil
}
