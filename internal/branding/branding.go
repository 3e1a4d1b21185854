// Package branding holds the substitution table that turns the upstream
// editor sources into the branded product. The table ships embedded and can
// be replaced by a file named in forge.yaml.
package branding

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"ideforge/internal/logging"
	"ideforge/internal/patch"
	"ideforge/internal/platform"
)

//go:embed rules.yaml
var defaultRules []byte

// Values are the names substituted into rule replacements.
type Values struct {
	ProductName    string
	ExecutableName string
	URLScheme      string
	CommandPrefix  string
	IconURL        string
	UITheme        string
	SyntaxTheme    string
}

// RuleSet is an ordered list of per-file rule groups. The same path may
// appear more than once; groups run in listed order.
type RuleSet struct {
	Files []patch.FileRules `yaml:"files"`
}

// Default returns the embedded rule set.
func Default() (*RuleSet, error) {
	return Parse(defaultRules)
}

// Load reads a rule set from path, or the embedded default when path is empty.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read branding rules: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML rule set.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse branding rules: %w", err)
	}
	for i, f := range rs.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("files[%d]: empty path", i)
		}
		if err := patch.Validate(f.Rules); err != nil {
			return nil, fmt.Errorf("files[%d] (%s): %w", i, f.Path, err)
		}
	}
	return &rs, nil
}

// Render returns a copy of rs with every replacement executed as a
// text/template against v.
func (rs *RuleSet) Render(v Values) (*RuleSet, error) {
	out := &RuleSet{Files: make([]patch.FileRules, len(rs.Files))}
	for i, f := range rs.Files {
		rendered := f
		rendered.Rules = make([]patch.Rule, len(f.Rules))
		for j, r := range f.Rules {
			repl, err := render(r.Replace, v)
			if err != nil {
				return nil, fmt.Errorf("%s rule %d: %w", f.Path, j, err)
			}
			r.Replace = repl
			rendered.Rules[j] = r
		}
		out.Files[i] = rendered
	}
	return out, nil
}

func render(text string, v Values) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("replace").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Apply runs every file group against the tree at root, skipping groups
// disabled for target. The first failing file aborts the run.
func (rs *RuleSet) Apply(root string, target platform.Platform) ([]patch.Report, error) {
	reports := make([]patch.Report, 0, len(rs.Files))
	for _, f := range rs.Files {
		if f.Skips(string(target)) {
			logging.PatchDebug("skipping %s on %s", f.Path, target)
			continue
		}
		rep, err := patch.ApplyFile(filepath.Join(root, filepath.FromSlash(f.Path)), f.Rules)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}

	applied, missed := 0, 0
	for _, r := range reports {
		applied += r.Applied
		missed += len(r.Missed)
	}
	logging.Patch("altered %d files: %d rules applied, %d missed", len(reports), applied, missed)
	return reports, nil
}

// Paths lists the distinct files the rule set touches, in first-seen order.
func (rs *RuleSet) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range rs.Files {
		if !seen[f.Path] {
			seen[f.Path] = true
			out = append(out, f.Path)
		}
	}
	return out
}

// FilePreview is the pending change to one file.
type FilePreview struct {
	Path    string
	Before  string
	After   string
	Reports []patch.Report
}

// Preview computes what Apply would write without touching the tree.
// Groups for the same path are chained in memory.
func (rs *RuleSet) Preview(root string, target platform.Platform) ([]FilePreview, error) {
	index := make(map[string]int)
	var previews []FilePreview
	for _, f := range rs.Files {
		if f.Skips(string(target)) {
			continue
		}
		i, ok := index[f.Path]
		if !ok {
			path := filepath.Join(root, filepath.FromSlash(f.Path))
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return previews, &patch.FileNotFoundError{Path: path, Err: err}
				}
				return previews, fmt.Errorf("failed to read %s: %w", path, err)
			}
			previews = append(previews, FilePreview{Path: f.Path, Before: string(data), After: string(data)})
			i = len(previews) - 1
			index[f.Path] = i
		}
		out, rep, err := patch.Apply(previews[i].After, f.Rules)
		if err != nil {
			return previews, fmt.Errorf("%s: %w", f.Path, err)
		}
		rep.Path = f.Path
		previews[i].After = out
		previews[i].Reports = append(previews[i].Reports, rep)
	}
	return previews, nil
}
