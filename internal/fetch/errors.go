package fetch

import (
	"errors"
	"fmt"
)

var ErrDownloadFailed = errors.New("download failed")

// DownloadFailedError reports a file that could not be retrieved after
// all attempts, or after a permanent HTTP error.
type DownloadFailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("downloading %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadFailedError) Unwrap() []error { return []error{ErrDownloadFailed, e.Err} }
