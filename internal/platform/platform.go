// Package platform maps a target operating system to the parts of the
// pipeline that differ per OS: builder flags, the shell wrapper used to
// launch the build script and the finalize step that runs afterwards.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is a build target.
type Platform string

const (
	Windows Platform = "windows"
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
)

// FinalizeKind selects the post-build step.
type FinalizeKind string

const (
	FinalizeNone       FinalizeKind = "none"
	FinalizeRenameSign FinalizeKind = "rename-sign"
)

// Profile is the per-platform build behaviour.
type Profile struct {
	BuilderArgs []string
	ShellWrap   bool
	Finalize    FinalizeKind
}

var profiles = map[Platform]Profile{
	Windows: {
		BuilderArgs: []string{"--create-windows-installer"},
		ShellWrap:   true,
		Finalize:    FinalizeRenameSign,
	},
	MacOS: {
		BuilderArgs: []string{"--compress-artifacts", "--code-sign"},
		Finalize:    FinalizeNone,
	},
	Linux: {
		BuilderArgs: []string{"--create-rpm-package", "--create-debian-package"},
		Finalize:    FinalizeNone,
	},
}

// All returns the supported platforms in a stable order.
func All() []Platform {
	return []Platform{Windows, MacOS, Linux}
}

// Current returns the platform the process runs on.
func Current() Platform {
	return Platform(runtime.GOOS)
}

// Parse accepts the Go GOOS names plus the Node-style aliases used by
// release scripts (win32, macos, osx).
func Parse(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win32", "win":
		return Windows, nil
	case "darwin", "macos", "mac", "osx":
		return MacOS, nil
	case "linux":
		return Linux, nil
	}
	return "", fmt.Errorf("unsupported platform %q (valid: windows, darwin, linux)", s)
}

// Profile returns the build profile for p.
func (p Platform) Profile() (Profile, error) {
	prof, ok := profiles[p]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported platform %q", string(p))
	}
	return prof, nil
}

// BuilderCommand returns the binary and arguments used to launch script
// for p. On Windows the script goes through cmd so that .cmd shims resolve.
func (p Platform) BuilderCommand(script string) (string, []string, error) {
	prof, err := p.Profile()
	if err != nil {
		return "", nil, err
	}
	args := append([]string(nil), prof.BuilderArgs...)
	if prof.ShellWrap {
		return "cmd", append([]string{"/s", "/c", script}, args...), nil
	}
	return script, args, nil
}

func (p Platform) String() string { return string(p) }
