package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ideforge/internal/platform"
)

// ScriptOptions describes one invocation of the upstream build script.
type ScriptOptions struct {
	Platform platform.Platform
	BuildDir string
	// Script is relative to BuildDir unless absolute.
	Script  string
	Env     map[string]string
	Timeout time.Duration
}

// ScriptCommand translates opts into the platform-specific command line.
func ScriptCommand(opts ScriptOptions) (Command, error) {
	if opts.BuildDir == "" {
		return Command{}, fmt.Errorf("build directory is required")
	}
	script := opts.Script
	if script == "" {
		script = filepath.Join("script", "build")
	}
	if !filepath.IsAbs(script) {
		script = filepath.Join(opts.BuildDir, filepath.FromSlash(script))
	}

	bin, args, err := opts.Platform.BuilderCommand(script)
	if err != nil {
		return Command{}, err
	}
	return Command{
		Binary:           bin,
		Arguments:        args,
		WorkingDirectory: opts.BuildDir,
		Environment:      EnvFromMap(opts.Env),
		Timeout:          opts.Timeout,
	}, nil
}

// RunScript runs the build script in the build directory and waits for it.
func RunScript(ctx context.Context, exec Executor, opts ScriptOptions) (*ExecutionResult, error) {
	cmd, err := ScriptCommand(opts)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, cmd)
}
