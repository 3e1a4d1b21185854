// Package patch applies ordered literal and regular-expression substitutions
// to text files in the build tree.
package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"ideforge/internal/fsutil"
	"ideforge/internal/logging"
)

// Rule is one substitution. A literal rule replaces the first occurrence of
// Match. A regex rule replaces the first match, or every match when Global
// is set; Replace may reference groups as ${1}.
type Rule struct {
	Match   string `yaml:"match"`
	Replace string `yaml:"replace"`
	Regex   bool   `yaml:"regex,omitempty"`
	Global  bool   `yaml:"global,omitempty"`
}

func (r Rule) String() string {
	kind := "literal"
	if r.Regex {
		kind = "regex"
		if r.Global {
			kind = "regex/g"
		}
	}
	return fmt.Sprintf("%s %q", kind, truncate(r.Match, 60))
}

// FileRules binds an ordered rule list to one file relative to the build root.
type FileRules struct {
	Path          string   `yaml:"path"`
	Rules         []Rule   `yaml:"rules"`
	SkipPlatforms []string `yaml:"skip_platforms,omitempty"`
}

// Skips reports whether the rules are disabled for the named platform.
func (f FileRules) Skips(platform string) bool {
	for _, p := range f.SkipPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Report summarizes one ApplyFile call.
type Report struct {
	Path    string
	Applied int
	Missed  []Rule
	Changed bool
}

// FileNotFoundError reports a patch target that does not exist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("patch target not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

type compiled struct {
	rule Rule
	re   *regexp.Regexp
}

// compile validates rules and precompiles the regular expressions.
func compile(rules []Rule) ([]compiled, error) {
	out := make([]compiled, 0, len(rules))
	for i, r := range rules {
		if r.Match == "" {
			return nil, fmt.Errorf("rule %d: empty match pattern", i)
		}
		c := compiled{rule: r}
		if r.Regex {
			re, err := regexp.Compile(r.Match)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid pattern %q: %w", i, r.Match, err)
			}
			c.re = re
		}
		out = append(out, c)
	}
	return out, nil
}

// Apply runs rules over content in order, each rule seeing the previous
// rule's output. Rules that match nothing are reported in Missed.
func Apply(content string, rules []Rule) (string, Report, error) {
	cs, err := compile(rules)
	if err != nil {
		return content, Report{}, err
	}

	var rep Report
	out := content
	for _, c := range cs {
		next, ok := c.apply(out)
		if !ok {
			rep.Missed = append(rep.Missed, c.rule)
			continue
		}
		rep.Applied++
		out = next
	}
	rep.Changed = out != content
	return out, rep, nil
}

func (c compiled) apply(s string) (string, bool) {
	if c.re == nil {
		idx := strings.Index(s, c.rule.Match)
		if idx < 0 {
			return s, false
		}
		return s[:idx] + c.rule.Replace + s[idx+len(c.rule.Match):], true
	}

	if c.rule.Global {
		if !c.re.MatchString(s) {
			return s, false
		}
		return c.re.ReplaceAllString(s, c.rule.Replace), true
	}

	loc := c.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, false
	}
	repl := c.re.ExpandString(nil, c.rule.Replace, s, loc)
	return s[:loc[0]] + string(repl) + s[loc[1]:], true
}

// ApplyFile rewrites path with rules. The file is only written when the
// content changed; a rule that does not match logs a warning and leaves the
// file as it was.
func ApplyFile(path string, rules []Rule) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Report{Path: path}, &FileNotFoundError{Path: path, Err: err}
		}
		return Report{Path: path}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, rep, err := Apply(string(data), rules)
	rep.Path = path
	if err != nil {
		return rep, fmt.Errorf("%s: %w", path, err)
	}

	for _, miss := range rep.Missed {
		logging.PatchWarn("pattern not found in %s: %s", path, miss)
	}

	if !rep.Changed {
		logging.PatchDebug("%s unchanged (%d rules)", path, len(rules))
		return rep, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(out), fsutil.FileMode(path, 0644)); err != nil {
		return rep, fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.PatchDebug("patched %s: %d/%d rules applied", path, rep.Applied, len(rules))
	return rep, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Validate checks that rules compile without applying them.
func Validate(rules []Rule) error {
	_, err := compile(rules)
	return err
}
