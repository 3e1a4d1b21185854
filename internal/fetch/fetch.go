// Package fetch downloads the upstream source archive and unpacks it into
// the build directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ideforge/internal/logging"
)

// Fetcher retrieves an archive and unpacks it into dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Format is an archive container format.
type Format string

const (
	FormatTarGz Format = ".tar.gz"
	FormatTarXz Format = ".tar.xz"
	FormatZip   Format = ".zip"
)

// DetectFormat picks the archive format from the URL path suffix.
func DetectFormat(rawURL string) (Format, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.ToLower(p)
	switch {
	case strings.HasSuffix(p, ".tar.gz"), strings.HasSuffix(p, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(p, ".tar.xz"), strings.HasSuffix(p, ".txz"):
		return FormatTarXz, nil
	case strings.HasSuffix(p, ".zip"):
		return FormatZip, nil
	}
	return "", fmt.Errorf("unsupported archive format: %s", rawURL)
}

// HTTPFetcher downloads over HTTP(S) to a temporary file and extracts it,
// stripping the archive's top-level directory.
type HTTPFetcher struct {
	Client *http.Client
	// TempDir holds the downloaded archive; empty means os.TempDir().
	TempDir string
	// Strip is the number of leading path components dropped on extraction.
	Strip int
}

// NewHTTPFetcher returns a fetcher with the given request timeout (zero for none).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: timeout},
		Strip:  1,
	}
}

// Fetch downloads rawURL and extracts it into dest. The temporary archive
// is removed whether or not extraction succeeds.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	format, err := DetectFormat(rawURL)
	if err != nil {
		return err
	}

	timer := logging.StartTimer(logging.CategoryFetch, "download "+rawURL)
	tmp, err := os.CreateTemp(f.TempDir, "forge-upstream-*"+string(format))
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	archive := tmp.Name()
	defer os.Remove(archive)

	n, err := f.download(ctx, rawURL, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = &DownloadError{URL: rawURL, Err: cerr}
	}
	if err != nil {
		return err
	}
	timer.Stop()
	logging.Fetch("downloaded %s (%s)", rawURL, humanize.Bytes(uint64(n)))

	if err := Extract(archive, format, dest, f.Strip); err != nil {
		return err
	}
	logging.Fetch("extracted into %s", dest)
	return nil
}

func (f *HTTPFetcher) download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, &DownloadError{URL: rawURL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &DownloadError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	if resp.ContentLength > 0 {
		logging.FetchDebug("fetching %s (%s)", rawURL, humanize.Bytes(uint64(resp.ContentLength)))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &DownloadError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	return n, nil
}
