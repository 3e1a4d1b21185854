package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"ideforge/internal/assets"
	"ideforge/internal/builder"
	"ideforge/internal/config"
	"ideforge/internal/diff"
	"ideforge/internal/fsutil"
	"ideforge/internal/logging"
	"ideforge/internal/manifest"
)

// Task names as exposed on the command line.
const (
	TaskSetup             = "setup"
	TaskReset             = "reset"
	TaskDownload          = "download-atom"
	TaskInjectPackages    = "inject-packages"
	TaskReplaceFiles      = "replace-files"
	TaskAlterFiles        = "alter-files"
	TaskUpdatePackageJSON = "update-package-json"
	TaskPrepBuild         = "prep-build"
	TaskBuildAtom         = "build-atom"
	TaskRenameInstaller   = "rename-installer"
	TaskSignInstaller     = "sign-installer"
	TaskCleanup           = "cleanup"
)

// buildManifest is the upstream manifest inside the build tree.
const buildManifest = "package.json"

// keepFile survives a reset of the build directory.
const keepFile = ".gitkeep"

// Task is a named, independently runnable step.
type Task struct {
	Name        string
	Description string
	Run         func(context.Context) error
}

// Tasks returns every single-step task keyed by name. The full build is
// Build, which returns a Run instead.
func (p *Pipeline) Tasks() map[string]Task {
	list := []Task{
		{TaskSetup, "Copy the example environment file into place", p.Setup},
		{TaskReset, "Empty the build directory", p.Reset},
		{TaskDownload, "Download and extract the upstream source archive", p.DownloadAtom},
		{TaskInjectPackages, "Swap bundled packages in the build manifest", p.InjectPackages},
		{TaskReplaceFiles, "Copy branding assets into the build tree", p.ReplaceFiles},
		{TaskAlterFiles, "Apply the branding text substitutions", p.AlterFiles},
		{TaskUpdatePackageJSON, "Write product name and version into the build manifest", p.UpdatePackageJSON},
		{TaskPrepBuild, "Run all patch tasks in order", p.PrepBuild},
		{TaskBuildAtom, "Run the upstream build script", p.BuildAtom},
		{TaskRenameInstaller, "Rename the generated Windows installer", p.RenameInstaller},
		{TaskSignInstaller, "Sign the Windows installer", p.SignInstaller},
		{TaskCleanup, "Run the platform finalize step", p.Cleanup},
	}
	out := make(map[string]Task, len(list))
	for _, t := range list {
		out[t.Name] = t
	}
	return out
}

// TaskNames lists the task names in sorted order.
func (p *Pipeline) TaskNames() []string {
	var names []string
	for name := range p.Tasks() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTask runs one named task with a banner.
func (p *Pipeline) RunTask(ctx context.Context, name string) error {
	t, ok := p.Tasks()[name]
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	p.banner(t.Name)
	return t.Run(ctx)
}

// Setup copies the example env file to the env file in the workspace.
func (p *Pipeline) Setup(ctx context.Context) error {
	return SetupEnv(p.cfg, p.bc.Workspace)
}

// SetupEnv copies the example env file over the env file in workspace. It
// needs no build configuration, so it works before the manifest exists.
func SetupEnv(cfg *config.Config, workspace string) error {
	src := cfg.Path(workspace, cfg.Setup.EnvExample)
	dst := cfg.Path(workspace, cfg.Setup.EnvFile)
	if _, err := fsutil.CopyFile(src, dst); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	logging.Pipeline("copied %s to %s", cfg.Setup.EnvExample, cfg.Setup.EnvFile)
	return nil
}

// Reset empties the build directory except for its keep file.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := fsutil.ResetDir(p.bc.BuildDir, keepFile); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logging.Pipeline("reset %s", p.bc.BuildDir)
	return nil
}

// DownloadAtom fetches and extracts the upstream archive into the build directory.
func (p *Pipeline) DownloadAtom(ctx context.Context) error {
	logging.Pipeline("downloading upstream %s from %s", p.bc.UpstreamVersion, p.bc.ArchiveURL)
	return p.fetcher.Fetch(ctx, p.bc.ArchiveURL, p.bc.BuildDir)
}

// InjectPackages removes the configured bundled packages from the build
// manifest and adds this product's packages.
func (p *Pipeline) InjectPackages(ctx context.Context) error {
	return manifest.Patch(p.bc.BuildPath(buildManifest), p.cfg.Packages.Remove, p.bc.Inject)
}

// ReplaceFiles copies the branding assets over the build tree.
func (p *Pipeline) ReplaceFiles(ctx context.Context) error {
	_, err := assets.Replace(p.bc.Workspace, p.bc.BuildDir, p.cfg.Assets)
	return err
}

// AlterFiles applies the branding substitutions for the target platform.
func (p *Pipeline) AlterFiles(ctx context.Context) error {
	_, err := p.rules.Apply(p.bc.BuildDir, p.bc.Platform)
	return err
}

// UpdatePackageJSON stamps the product identity onto the build manifest.
func (p *Pipeline) UpdatePackageJSON(ctx context.Context) error {
	path := p.bc.BuildPath(buildManifest)
	doc, err := manifest.Load(path)
	if err != nil {
		return err
	}
	fields := []struct {
		key, value string
	}{
		{"name", p.bc.ExecutableName},
		{"productName", p.bc.ProductName},
		{"version", p.bc.Version},
		{"description", p.bc.Description},
	}
	for _, f := range fields {
		if err := doc.Set(f.key, f.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", f.key, err)
		}
	}
	if err := doc.Save(path); err != nil {
		return err
	}
	logging.Manifest("build manifest now %s %s", p.bc.ExecutableName, p.bc.Version)
	return nil
}

// PrepBuild runs the four patch tasks in order, stopping at the first error.
func (p *Pipeline) PrepBuild(ctx context.Context) error {
	for _, fn := range []func(context.Context) error{
		p.InjectPackages,
		p.ReplaceFiles,
		p.AlterFiles,
		p.UpdatePackageJSON,
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BuildAtom runs the upstream build script with the platform's flags.
func (p *Pipeline) BuildAtom(ctx context.Context) error {
	_, err := builder.RunScript(ctx, p.exec, builder.ScriptOptions{
		Platform: p.bc.Platform,
		BuildDir: p.bc.BuildDir,
		Script:   p.cfg.Builder.Script,
		Env:      p.cfg.Builder.Env,
		Timeout:  p.cfg.GetBuilderTimeout(),
	})
	return err
}

// RenameInstaller renames the generated Windows installer. A missing
// installer is logged and not treated as a failure.
func (p *Pipeline) RenameInstaller(ctx context.Context) error {
	if err := p.windows.RenameInstaller(p.bc); err != nil {
		logging.FinalizeError("error while renaming: %v", err)
	}
	return nil
}

// SignInstaller signs the branded Windows installer when credentials are set.
func (p *Pipeline) SignInstaller(ctx context.Context) error {
	if err := p.windows.SignInstaller(ctx, p.bc); err != nil {
		logging.FinalizeError("error while signing: %v", err)
	}
	return nil
}

// Cleanup runs the platform finalizer. Its errors are logged only.
func (p *Pipeline) Cleanup(ctx context.Context) error {
	if err := p.finalizer.Finalize(ctx, p.bc); err != nil {
		logging.FinalizeWarn("finalize finished with errors: %v", err)
	}
	return nil
}

// PreviewAlterFiles writes the unified diff AlterFiles would produce to w
// and returns the number of files that would change.
func (p *Pipeline) PreviewAlterFiles(w io.Writer) (int, error) {
	previews, err := p.rules.Preview(p.bc.BuildDir, p.bc.Platform)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, fp := range previews {
		for _, rep := range fp.Reports {
			for _, miss := range rep.Missed {
				fmt.Fprintf(w, "# %s: pattern not found: %s\n", fp.Path, miss)
			}
		}
		d := diff.Compute(fp.Path, fp.Before, fp.After, diff.DefaultContext)
		if d.Empty() {
			continue
		}
		changed++
		fmt.Fprint(w, d.Unified())
	}
	return changed, nil
}
