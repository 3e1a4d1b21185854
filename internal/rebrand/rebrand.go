// Package rebrand turns the tool's own workspace into its test twin: the
// package manifest, the config's product name and the menu labels are
// rewritten under the second product name. It never runs as part of a build.
package rebrand

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ideforge/internal/config"
	"ideforge/internal/logging"
	"ideforge/internal/manifest"
	"ideforge/internal/patch"
)

// ErrAlreadyApplied is returned when the manifest already carries the target name.
var ErrAlreadyApplied = errors.New("rebrand already applied")

// Options locates the files to rewrite.
type Options struct {
	ManifestPath string
	ConfigPath   string
	MenuPath     string
	Settings     config.RebrandConfig
}

// Result lists what was rewritten.
type Result struct {
	Manifest bool
	Config   bool
	Menu     *patch.Report
}

// Apply performs the rebrand. The manifest must exist. The config's
// product.name is set to ProductTo, creating the config from the defaults when
// it is missing. A missing menu file is logged and skipped.
func Apply(opts Options) (*Result, error) {
	s := opts.Settings
	if s.TargetName == "" {
		return nil, fmt.Errorf("rebrand target name is required")
	}

	doc, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	if name, _ := doc.GetString("name"); name == s.TargetName {
		logging.RebrandWarn("%s is already named %s, nothing to do", opts.ManifestPath, s.TargetName)
		return nil, ErrAlreadyApplied
	}

	if err := rewriteManifest(doc, s); err != nil {
		return nil, err
	}
	if err := doc.Save(opts.ManifestPath); err != nil {
		return nil, err
	}
	logging.Rebrand("rewrote %s as %s", opts.ManifestPath, s.TargetName)
	res := &Result{Manifest: true}

	if opts.ConfigPath != "" && s.ProductTo != "" {
		changed, err := config.SetProductName(opts.ConfigPath, s.ProductTo)
		if err != nil {
			return res, err
		}
		if changed {
			logging.Rebrand("set product.name in %s to %s", opts.ConfigPath, s.ProductTo)
		}
		res.Config = changed
	}

	if opts.MenuPath != "" && s.ProductFrom != "" {
		rule := patch.Rule{Match: regexp.QuoteMeta(s.ProductFrom), Replace: s.MenuTo, Regex: true, Global: true}
		rep, err := rewriteText(opts.MenuPath, rule)
		if err != nil {
			return res, err
		}
		res.Menu = rep
	}
	return res, nil
}

func rewriteManifest(doc *manifest.Document, s config.RebrandConfig) error {
	if err := doc.Set("name", s.TargetName); err != nil {
		return err
	}
	if s.Description != "" {
		if err := doc.Set("description", s.Description); err != nil {
			return err
		}
	}
	if err := doc.AddDependencies(s.AddPackages...); err != nil {
		return err
	}
	if err := doc.RemoveDependencies(s.RemovePackages...); err != nil {
		return err
	}
	if s.RepositoryFrom == "" {
		return nil
	}

	// repository is either a URL string or {"type": ..., "url": ...}.
	if repo, ok := doc.GetString("repository"); ok {
		return doc.Set("repository", strings.Replace(repo, s.RepositoryFrom, s.RepositoryTo, 1))
	}
	if !doc.Has("repository") {
		return nil
	}
	repo, err := doc.Object("repository")
	if err != nil {
		return fmt.Errorf("unexpected repository field: %w", err)
	}
	if url, ok := repo.GetString("url"); ok {
		if err := repo.Set("url", strings.Replace(url, s.RepositoryFrom, s.RepositoryTo, 1)); err != nil {
			return err
		}
		return doc.Set("repository", repo)
	}
	return nil
}

func rewriteText(path string, rule patch.Rule) (*patch.Report, error) {
	rep, err := patch.ApplyFile(path, []patch.Rule{rule})
	if err != nil {
		var nf *patch.FileNotFoundError
		if errors.As(err, &nf) {
			logging.RebrandWarn("%s not found, skipping", path)
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}
