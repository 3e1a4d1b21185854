package fetch

import "fmt"

// DownloadError reports a failed transfer or a non-2xx response.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractError reports a corrupt archive or an entry that cannot be written.
type ExtractError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ExtractError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s (%s): %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
