// Package builder runs the upstream build script (and other external tools
// such as signtool) as subprocesses, streaming their output.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command represents a subprocess to run.
type Command struct {
	Binary           string
	Arguments        []string
	WorkingDirectory string
	// Environment entries (KEY=VALUE) layered over the inherited process env.
	Environment []string
	// Timeout kills the process after the given duration; zero means none.
	Timeout time.Duration
	// Redact lists argument values replaced with *** in logs and errors.
	Redact []string
}

// CommandString returns the command line for display, with redacted values masked.
func (c Command) CommandString() string {
	parts := make([]string, 0, len(c.Arguments)+1)
	parts = append(parts, c.Binary)
	for _, arg := range c.Arguments {
		for _, secret := range c.Redact {
			if secret != "" && arg == secret {
				arg = "***"
			}
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// ExecutionResult describes a finished (or failed to finish) subprocess.
type ExecutionResult struct {
	Success    bool
	ExitCode   int
	Output     string // last lines of combined stdout/stderr
	Lines      int    // total lines streamed
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Killed     bool
	KillReason string
	Command    *Command
}

// Executor runs commands synchronously.
type Executor interface {
	// Execute runs cmd to completion. A non-zero exit yields a
	// *BuildFailedError alongside the populated result.
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// BuildFailedError reports a subprocess that exited non-zero.
type BuildFailedError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}
