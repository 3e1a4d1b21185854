package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"ideforge/internal/branding"
	"ideforge/internal/manifest"
	"ideforge/internal/platform"
)

// BuildConfiguration is everything one pipeline run derives from the
// config, the local package manifest and the environment.
type BuildConfiguration struct {
	Workspace string
	BuildDir  string
	Platform  platform.Platform

	ProductName            string
	ExecutableName         string
	WindowsInstallerName   string
	GeneratedInstallerName string
	Beta                   bool

	PackageName string
	Version     string
	Description string

	UpstreamVersion string
	ArchiveURL      string

	// Packages injected into the build manifest, in order: the tool's own
	// package followed by its bundled packageDependencies and any extras.
	Inject []manifest.Dependency

	Signing  SigningCredentials
	Branding branding.Values
}

// Resolve computes the BuildConfiguration for workspace. target overrides
// the configured platform when non-empty.
func Resolve(cfg *Config, workspace string, target platform.Platform) (*BuildConfiguration, error) {
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	p, err := resolvePlatform(cfg, target)
	if err != nil {
		return nil, err
	}

	pkg, err := manifest.Load(cfg.Path(ws, cfg.PackageManifest))
	if err != nil {
		return nil, fmt.Errorf("failed to load package manifest: %w", err)
	}

	bc := &BuildConfiguration{
		Workspace: ws,
		BuildDir:  cfg.Path(ws, cfg.BuildDir),
		Platform:  p,
		Signing:   cfg.Signing.Credentials(),
	}
	bc.PackageName, _ = pkg.GetString("name")
	bc.Version, _ = pkg.GetString("version")
	bc.Description, _ = pkg.GetString("description")

	bc.Beta = IsBeta(bc.Version)
	bc.ProductName = cfg.Product.ProductName(bc.Version)
	bc.ExecutableName = ExecutableName(bc.ProductName)
	bc.WindowsInstallerName = WindowsInstallerName(bc.ProductName)
	bc.GeneratedInstallerName = cfg.Windows.GeneratedInstaller
	if bc.GeneratedInstallerName == "" {
		bc.GeneratedInstallerName = GeneratedInstallerName(bc.ProductName)
	}

	bc.UpstreamVersion = cfg.Upstream.Version
	if bc.UpstreamVersion == "" {
		bc.UpstreamVersion, _ = pkg.GetString("atomVersion")
	}
	if strings.Contains(cfg.Upstream.ArchiveURL, "{version}") && bc.UpstreamVersion == "" {
		return nil, fmt.Errorf("upstream version unknown: set upstream.version or atomVersion in %s", cfg.PackageManifest)
	}
	bc.ArchiveURL = strings.ReplaceAll(cfg.Upstream.ArchiveURL, "{version}", bc.UpstreamVersion)

	if bc.PackageName != "" && bc.Version != "" {
		bc.Inject = append(bc.Inject, manifest.Dependency{Name: bc.PackageName, Version: bc.Version})
	}
	bundled, err := pkg.Dependencies()
	if err != nil {
		return nil, fmt.Errorf("failed to read packageDependencies: %w", err)
	}
	bc.Inject = append(bc.Inject, bundled...)
	bc.Inject = append(bc.Inject, cfg.Packages.Extra...)

	bc.Branding = branding.Values{
		ProductName:    bc.ProductName,
		ExecutableName: bc.ExecutableName,
		URLScheme:      cfg.Product.URLScheme,
		CommandPrefix:  cfg.Product.CommandPrefix,
		IconURL:        cfg.Product.IconURL,
		UITheme:        cfg.Product.UITheme,
		SyntaxTheme:    cfg.Product.SyntaxTheme,
	}
	return bc, nil
}

func resolvePlatform(cfg *Config, target platform.Platform) (platform.Platform, error) {
	if target != "" {
		return platform.Parse(string(target))
	}
	if cfg.Platform != "" {
		return platform.Parse(cfg.Platform)
	}
	return platform.Parse(string(platform.Current()))
}

// Path resolves a config path against the workspace.
func (c *Config) Path(workspace, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, filepath.FromSlash(p))
}

// BuildPath joins a slash-separated path onto the build directory.
func (bc *BuildConfiguration) BuildPath(rel string) string {
	return filepath.Join(bc.BuildDir, filepath.FromSlash(rel))
}
