// Package assets copies branding resources (icons, installer art, script
// overrides) from the workspace into the build tree.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"ideforge/internal/fsutil"
	"ideforge/internal/logging"
)

// Mapping copies every file matched by the Source glob to Dest, keeping the
// path relative to the glob's static base. Source is relative to the
// workspace and Dest to the build directory.
type Mapping struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// Split returns the static base directory and the glob pattern below it.
func (m Mapping) Split() (base, pattern string) {
	return doublestar.SplitPattern(filepath.ToSlash(m.Source))
}

// Result summarizes a Replace call.
type Result struct {
	Files int
	Bytes int64
}

// Replace copies all mappings from srcRoot into dstRoot, overwriting
// existing files. Destination files without a source counterpart are kept.
func Replace(srcRoot, dstRoot string, mappings []Mapping) (Result, error) {
	var res Result
	for _, m := range mappings {
		base, pattern := m.Split()
		baseDir := filepath.Join(srcRoot, filepath.FromSlash(base))
		if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
			logging.AssetsWarn("asset source %s not found, skipping", baseDir)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(baseDir), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return res, fmt.Errorf("invalid asset pattern %q: %w", m.Source, err)
		}

		destDir := filepath.Join(dstRoot, filepath.FromSlash(m.Dest))
		for _, rel := range matches {
			n, err := fsutil.CopyFile(filepath.Join(baseDir, filepath.FromSlash(rel)), filepath.Join(destDir, filepath.FromSlash(rel)))
			if err != nil {
				return res, fmt.Errorf("failed to copy asset %s: %w", rel, err)
			}
			res.Files++
			res.Bytes += n
		}
		logging.AssetsDebug("%s -> %s: %d files", m.Source, m.Dest, len(matches))
	}
	logging.Assets("replaced %d asset files (%s)", res.Files, humanize.Bytes(uint64(res.Bytes)))
	return res, nil
}

// target resolves an absolute source path to its destination, if any mapping covers it.
func target(srcRoot, dstRoot string, mappings []Mapping, path string) (string, bool) {
	for _, m := range mappings {
		base, pattern := m.Split()
		baseDir := filepath.Join(srcRoot, filepath.FromSlash(base))
		rel, err := filepath.Rel(baseDir, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil || !ok {
			continue
		}
		return filepath.Join(dstRoot, filepath.FromSlash(m.Dest), rel), true
	}
	return "", false
}
