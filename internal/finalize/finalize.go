// Package finalize runs the platform-specific steps after the upstream
// build: on Windows the generated installer is renamed to the branded name
// and, when signing material is available, signed.
package finalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ideforge/internal/builder"
	"ideforge/internal/config"
	"ideforge/internal/fsutil"
	"ideforge/internal/logging"
	"ideforge/internal/platform"
)

// Finalizer performs the post-build step for one platform. Errors returned
// are informational; the pipeline logs them and still reports success.
type Finalizer interface {
	Finalize(ctx context.Context, bc *config.BuildConfiguration) error
}

// RenameError reports a failed installer rename.
type RenameError struct {
	From string
	To   string
	Err  error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("failed to rename installer %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RenameError) Unwrap() error { return e.Err }

// For returns the finalizer for p.
func For(p platform.Platform, exec builder.Executor, win config.WindowsConfig) (Finalizer, error) {
	prof, err := p.Profile()
	if err != nil {
		return nil, err
	}
	switch prof.Finalize {
	case platform.FinalizeRenameSign:
		return NewWindows(exec, win), nil
	default:
		return Noop{}, nil
	}
}

// Noop is the finalizer for platforms whose build output needs no changes.
type Noop struct{}

func (Noop) Finalize(ctx context.Context, bc *config.BuildConfiguration) error {
	logging.Finalize("nothing to finalize on %s", bc.Platform)
	return nil
}

// Windows renames and signs the Squirrel installer.
type Windows struct {
	exec     builder.Executor
	outDir   string
	signtool string
}

// NewWindows creates a Windows finalizer. outDir and signtool are relative
// to the build directory unless absolute.
func NewWindows(exec builder.Executor, win config.WindowsConfig) *Windows {
	outDir := win.OutDir
	if outDir == "" {
		outDir = "out"
	}
	return &Windows{exec: exec, outDir: outDir, signtool: win.Signtool}
}

// InstallerPath is where the branded installer lives after the rename.
func (w *Windows) InstallerPath(bc *config.BuildConfiguration) string {
	return filepath.Join(w.resolve(bc, w.outDir), bc.WindowsInstallerName)
}

// Finalize renames then signs. Each failure is logged; the first one is
// returned for callers that want to report it.
func (w *Windows) Finalize(ctx context.Context, bc *config.BuildConfiguration) error {
	var first error
	if err := w.RenameInstaller(bc); err != nil {
		logging.FinalizeError("error while renaming: %v", err)
		first = err
	}
	if err := w.SignInstaller(ctx, bc); err != nil {
		logging.FinalizeError("error while signing: %v", err)
		if first == nil {
			first = err
		}
	}
	return first
}

// RenameInstaller moves out/<generated> to out/<branded>.
func (w *Windows) RenameInstaller(bc *config.BuildConfiguration) error {
	out := w.resolve(bc, w.outDir)
	from := filepath.Join(out, bc.GeneratedInstallerName)
	to := filepath.Join(out, bc.WindowsInstallerName)

	if from == to {
		return nil
	}
	if err := os.Rename(from, to); err != nil {
		return &RenameError{From: from, To: to, Err: err}
	}
	logging.Finalize("renamed %s to %s", bc.GeneratedInstallerName, bc.WindowsInstallerName)
	return nil
}

// SignInstaller signs the branded installer with signtool. Missing
// credentials or a missing installer skip signing with a diagnostic.
func (w *Windows) SignInstaller(ctx context.Context, bc *config.BuildConfiguration) error {
	creds := bc.Signing
	if !creds.Complete() {
		logging.FinalizeWarn("unable to sign installer, must provide certificate path and password environment variables")
		return nil
	}

	installer := w.InstallerPath(bc)
	if !fsutil.Exists(installer) {
		logging.FinalizeWarn("skipping signing, installer not found: %s", installer)
		return nil
	}
	if w.exec == nil {
		return fmt.Errorf("no executor configured for signtool")
	}
	if w.signtool == "" {
		return fmt.Errorf("signtool path not configured")
	}

	cmd := builder.Command{
		Binary:           w.resolve(bc, w.signtool),
		Arguments:        []string{"sign", "/a", "/f", creds.CertPath, "/p", creds.Password, installer},
		WorkingDirectory: bc.BuildDir,
		Redact:           []string{creds.Password},
	}
	if _, err := w.exec.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("signtool failed: %w", err)
	}
	logging.Finalize("signed %s", installer)
	return nil
}

func (w *Windows) resolve(bc *config.BuildConfiguration, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return bc.BuildPath(p)
}
