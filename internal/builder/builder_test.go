package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ideforge/internal/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestDirectExecutor_StreamsOutput(t *testing.T) {
	skipWithoutShell(t)

	var out bytes.Buffer
	e := NewDirectExecutor(&out)
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo one; echo two 1>&2; printf three"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 3, res.Lines)
	assert.Contains(t, out.String(), "one\n")
	assert.Contains(t, out.String(), "two\n")
	assert.Contains(t, out.String(), "three\n")
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)

	e := NewDirectExecutor(nil)
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo boom; exit 3"},
	})
	require.Error(t, err)

	var bf *BuildFailedError
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, 3, bf.ExitCode)
	assert.Equal(t, "boom", bf.Output)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
}

func TestDirectExecutor_TailKeepsLastLines(t *testing.T) {
	skipWithoutShell(t)

	e := &DirectExecutor{TailLines: 2}
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "for i in 1 2 3 4 5; do echo line$i; done"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Lines)
	assert.Equal(t, "line4\nline5", res.Output)
}

func TestDirectExecutor_WorkingDirectoryAndEnv(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	var out bytes.Buffer
	e := NewDirectExecutor(&out)
	_, err := e.Execute(context.Background(), Command{
		Binary:           "sh",
		Arguments:        []string{"-c", "pwd; echo $FORGE_TEST_VALUE"},
		WorkingDirectory: dir,
		Environment:      []string{"FORGE_TEST_VALUE=hello"},
	})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, resolved, got)
	assert.Equal(t, "hello", lines[1])
}

func TestDirectExecutor_Timeout(t *testing.T) {
	skipWithoutShell(t)

	e := NewDirectExecutor(nil)
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "exec sleep 5"},
		Timeout:   100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, res.Killed)
	assert.Contains(t, res.KillReason, "timeout")
}

func TestDirectExecutor_Canceled(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	e := NewDirectExecutor(nil)
	res, err := e.Execute(ctx, Command{Binary: "sh", Arguments: []string{"-c", "exec sleep 5"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Killed)
}

func TestDirectExecutor_TimeoutKillsChildProcesses(t *testing.T) {
	skipWithoutShell(t)

	e := NewDirectExecutor(nil)
	start := time.Now()
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "sleep 8 & sleep 8"},
		Timeout:   300 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, res.Killed)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDirectExecutor_CancelKillsChildProcesses(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	e := NewDirectExecutor(nil)
	start := time.Now()
	_, err := e.Execute(ctx, Command{Binary: "sh", Arguments: []string{"-c", "sh -c 'sleep 8' & wait"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDirectExecutor_BackgroundChildDoesNotHoldRun(t *testing.T) {
	skipWithoutShell(t)

	var out bytes.Buffer
	e := NewDirectExecutor(&out)
	e.WaitDelay = 200 * time.Millisecond
	start := time.Now()
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "sleep 3 & echo built"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, out.String(), "built")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDirectExecutor_MissingBinary(t *testing.T) {
	e := NewDirectExecutor(nil)
	_, err := e.Execute(context.Background(), Command{Binary: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")

	_, err = e.Execute(context.Background(), Command{})
	require.Error(t, err)
}

func TestCommandString_Redacts(t *testing.T) {
	cmd := Command{
		Binary:    "signtool.exe",
		Arguments: []string{"sign", "/p", "s3cret", "installer.exe"},
		Redact:    []string{"s3cret"},
	}
	assert.Equal(t, "signtool.exe sign /p *** installer.exe", cmd.CommandString())
}

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2"}
	merged := MergeEnv(base, "B=3", "C=4", "malformed")
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, merged)
	assert.Equal(t, []string{"A=1", "B=2"}, base)
}

func TestMergeEnv_ReportsReplacedNames(t *testing.T) {
	merged, replaced := mergeEnv([]string{"PATH=/bin", "HOME=/root"}, []string{"NODE_ENV=production", "HOME=/tmp", "NODE_ENV=development"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/tmp", "NODE_ENV=development"}, merged)
	assert.Equal(t, []string{"HOME"}, replaced)
}

func TestEnvFromMap(t *testing.T) {
	assert.Equal(t, []string{"A=1", "Z=2"}, EnvFromMap(map[string]string{"Z": "2", "A": "1"}))
	assert.Empty(t, EnvFromMap(nil))
}

func TestScriptCommand(t *testing.T) {
	buildDir := filepath.Join("ws", "build")

	cmd, err := ScriptCommand(ScriptOptions{Platform: platform.Linux, BuildDir: buildDir, Script: "script/build"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(buildDir, "script", "build"), cmd.Binary)
	assert.Equal(t, []string{"--create-rpm-package", "--create-debian-package"}, cmd.Arguments)
	assert.Equal(t, buildDir, cmd.WorkingDirectory)

	cmd, err = ScriptCommand(ScriptOptions{Platform: platform.Windows, BuildDir: buildDir, Env: map[string]string{"CI": "true"}})
	require.NoError(t, err)
	assert.Equal(t, "cmd", cmd.Binary)
	assert.Equal(t, []string{"/s", "/c", filepath.Join(buildDir, "script", "build"), "--create-windows-installer"}, cmd.Arguments)
	assert.Equal(t, []string{"CI=true"}, cmd.Environment)

	_, err = ScriptCommand(ScriptOptions{Platform: "plan9", BuildDir: buildDir})
	assert.Error(t, err)
	_, err = ScriptCommand(ScriptOptions{Platform: platform.Linux})
	assert.Error(t, err)
}

func TestRunScript(t *testing.T) {
	skipWithoutShell(t)

	buildDir := t.TempDir()
	scriptDir := filepath.Join(buildDir, "script")
	require.NoError(t, os.MkdirAll(scriptDir, 0o755))
	script := "#!/bin/sh\necho \"args: $*\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(scriptDir, "build"), []byte(script), 0o755))

	var out bytes.Buffer
	res, err := RunScript(context.Background(), NewDirectExecutor(&out), ScriptOptions{
		Platform: platform.Linux,
		BuildDir: buildDir,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "args: --create-rpm-package --create-debian-package\n", out.String())
}
