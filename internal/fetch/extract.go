package fetch

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"ideforge/internal/logging"
)

// Extract unpacks archive into dest, dropping the first strip path
// components of every entry. Entries that would land outside dest are
// rejected, including ones that would be written through a symlink
// pointing out of dest.
func Extract(archive string, format Format, dest string, strip int) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return &ExtractError{Archive: archive, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return &ExtractError{Archive: archive, Err: err}
	}
	dest = resolved

	switch format {
	case FormatTarGz, FormatTarXz:
		err = extractTarFile(archive, format, dest, strip)
	case FormatZip:
		err = extractZip(archive, dest, strip)
	default:
		err = fmt.Errorf("unsupported archive format %q", format)
	}
	if err == nil {
		return nil
	}
	var ee *ExtractError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractError{Archive: archive, Err: err}
}

func extractTarFile(archive string, format Format, dest string, strip int) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		r = xzr
	}

	tr := tar.NewReader(r)
	files := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar: %w", err)
		}

		target, ok, err := entryTarget(dest, hdr.Name, strip)
		if err != nil {
			return &ExtractError{Archive: archive, Entry: hdr.Name, Err: err}
		}
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := makeDir(dest, target); err != nil {
				return &ExtractError{Archive: archive, Entry: hdr.Name, Err: err}
			}
		case tar.TypeReg:
			if err := writeFile(dest, target, tr, hdr.FileInfo().Mode()); err != nil {
				return &ExtractError{Archive: archive, Entry: hdr.Name, Err: err}
			}
			files++
		case tar.TypeSymlink:
			if err := symlink(dest, target, hdr.Linkname); err != nil {
				return &ExtractError{Archive: archive, Entry: hdr.Name, Err: err}
			}
		default:
			logging.FetchDebug("skipping %s (type %q)", hdr.Name, hdr.Typeflag)
		}
	}
	logging.FetchDebug("extracted %d files from %s", files, archive)
	return nil
}

func extractZip(archive, dest string, strip int) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, ok, err := entryTarget(dest, zf.Name, strip)
		if err != nil {
			return &ExtractError{Archive: archive, Entry: zf.Name, Err: err}
		}
		if !ok {
			continue
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			err = makeDir(dest, target)
		case mode&fs.ModeSymlink != 0:
			err = extractZipSymlink(zf, dest, target)
		default:
			err = extractZipFile(zf, dest, target)
		}
		if err != nil {
			return &ExtractError{Archive: archive, Entry: zf.Name, Err: err}
		}
	}
	return nil
}

func extractZipFile(zf *zip.File, dest, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFile(dest, target, rc, zf.Mode())
}

func extractZipSymlink(zf *zip.File, dest, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	link, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return symlink(dest, target, string(link))
}

// entryTarget maps an archive entry name to a path under dest. It reports
// false for entries consumed entirely by strip.
func entryTarget(dest, name string, strip int) (string, bool, error) {
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, fmt.Errorf("entry escapes destination")
	}
	parts := strings.Split(clean, "/")
	if len(parts) <= strip {
		return "", false, nil
	}
	rel := path.Join(parts[strip:]...)
	return filepath.Join(dest, filepath.FromSlash(rel)), true, nil
}

func makeDir(dest, target string) error {
	if err := checkParent(dest, target); err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return err
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return err
	}
	if !within(dest, resolved) {
		return fmt.Errorf("directory resolves outside destination")
	}
	return nil
}

func writeFile(dest, target string, r io.Reader, mode fs.FileMode) error {
	if err := checkParent(dest, target); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	// A link left by an earlier entry is replaced, never written through.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	// Owner write is kept so later patch steps can rewrite the file.
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func symlink(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) || path.IsAbs(linkname) {
		return fmt.Errorf("absolute symlink target %q", linkname)
	}
	parent, err := realDir(filepath.Dir(target))
	if err != nil {
		return err
	}
	if !within(dest, parent) || !within(dest, filepath.Join(parent, filepath.FromSlash(linkname))) {
		return fmt.Errorf("symlink target %q escapes destination", linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		logging.FetchWarn("cannot create symlink %s -> %s: %v", target, linkname, err)
		return nil
	}
	// The link text can still climb out through another link, e.g. a/.. with a -> .
	if resolved, err := filepath.EvalSymlinks(target); err == nil && !within(dest, resolved) {
		_ = os.Remove(target)
		return fmt.Errorf("symlink target %q escapes destination", linkname)
	}
	return nil
}

// checkParent rejects target when its parent directory, after resolving any
// links already extracted, lies outside dest.
func checkParent(dest, target string) error {
	parent, err := realDir(filepath.Dir(target))
	if err != nil {
		return err
	}
	if !within(dest, parent) {
		return fmt.Errorf("entry resolves outside destination")
	}
	return nil
}

// realDir resolves dir through existing symlinks. Components that do not
// exist yet are appended as they are.
func realDir(dir string) (string, error) {
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
