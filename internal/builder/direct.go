package builder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ideforge/internal/logging"
)

// DefaultTailLines is how many trailing output lines a result keeps.
const DefaultTailLines = 60

// DefaultWaitDelay bounds how long output is still read after the process
// exits or is killed. Grandchildren that inherited the pipes cannot hold the
// run open past it.
const DefaultWaitDelay = 5 * time.Second

// DirectExecutor executes commands directly on the host using os/exec,
// copying each output line to Out as it arrives.
type DirectExecutor struct {
	Out       io.Writer
	TailLines int
	WaitDelay time.Duration
}

// NewDirectExecutor creates an executor streaming to out (nil discards).
func NewDirectExecutor(out io.Writer) *DirectExecutor {
	if out == nil {
		out = io.Discard
	}
	return &DirectExecutor{Out: out, TailLines: DefaultTailLines, WaitDelay: DefaultWaitDelay}
}

// Execute runs cmd in its own process group and waits for it. Cancelling ctx
// or hitting the timeout kills the whole group.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timer := logging.StartTimer(logging.CategoryBuilder, cmd.Binary)
	defer timer.Stop()
	logging.Builder("running %s (dir=%s)", cmd.CommandString(), cmd.WorkingDirectory)

	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	env, replaced := mergeEnv(os.Environ(), cmd.Environment)
	for _, name := range replaced {
		logging.BuilderDebug("overriding inherited %s", name)
	}

	c := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	c.Dir = cmd.WorkingDirectory
	c.Env = env
	setupProcessGroup(c)
	c.Cancel = func() error { return killProcessGroup(c) }
	c.WaitDelay = e.WaitDelay
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}

	result := &ExecutionResult{ExitCode: -1, Command: &cmd}

	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	c.Stdout, c.Stderr = stdoutW, stderrW

	out := e.Out
	if out == nil {
		out = io.Discard
	}
	sink := &lineSink{w: out, tail: newTail(e.TailLines)}

	result.StartedAt = time.Now()
	if err := c.Start(); err != nil {
		result.FinishedAt = time.Now()
		stdoutW.Close()
		stderrW.Close()
		return result, fmt.Errorf("failed to start %s: %w", cmd.Binary, err)
	}

	var g errgroup.Group
	g.Go(func() error { defer stdout.Close(); return sink.pump(stdout) })
	g.Go(func() error { defer stderr.Close(); return sink.pump(stderr) })
	waitErr := c.Wait()
	stdoutW.Close()
	stderrW.Close()
	pumpErr := g.Wait()

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Output = sink.tail.String()
	result.Lines = sink.tail.total

	if pumpErr != nil {
		logging.BuilderDebug("output stream error: %v", pumpErr)
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logging.BuilderWarn("%s exited but a child kept its output open; stopped reading after %s", cmd.Binary, c.WaitDelay)
		waitErr = nil
	}

	if waitErr != nil {
		if ctxErr := execCtx.Err(); ctxErr != nil {
			result.Killed = true
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				result.KillReason = fmt.Sprintf("timeout after %s", cmd.Timeout)
			} else {
				result.KillReason = "context canceled"
			}
			logging.BuilderError("%s killed: %s", cmd.Binary, result.KillReason)
			return result, fmt.Errorf("%s interrupted: %w", cmd.Binary, ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			logging.BuilderError("%s exited with code %d after %s", cmd.Binary, result.ExitCode, result.Duration)
			return result, &BuildFailedError{
				Command:  cmd.CommandString(),
				ExitCode: result.ExitCode,
				Output:   result.Output,
			}
		}
		return result, fmt.Errorf("%s failed: %w", cmd.Binary, waitErr)
	}

	result.Success = true
	result.ExitCode = 0
	logging.Builder("%s completed in %s (%d lines of output)", cmd.Binary, result.Duration, result.Lines)
	return result, nil
}

// lineSink serializes lines from both pipes onto one writer and keeps a tail.
type lineSink struct {
	mu   sync.Mutex
	w    io.Writer
	tail *tail
}

func (s *lineSink) pump(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.write(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *lineSink) write(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line)
	s.tail.add(strings.TrimRight(line, "\r\n"))
}

// tail is a fixed-size ring of the most recent lines.
type tail struct {
	lines []string
	next  int
	full  bool
	total int
}

func newTail(n int) *tail {
	if n <= 0 {
		n = DefaultTailLines
	}
	return &tail{lines: make([]string, n)}
}

func (t *tail) add(line string) {
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
	t.total++
}

func (t *tail) String() string {
	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}
