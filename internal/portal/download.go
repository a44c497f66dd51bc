package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrpull/lib/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrAmbiguousDownload means the download directory did not hold exactly one
// document that could be the one the browser just saved.
var ErrAmbiguousDownload = errors.New("ambiguous download")

// ErrNoDownload means the browser did not save the document in time.
var ErrNoDownload = errors.New("document was not downloaded")

// the portal names combined documents with six digits
const downloadPattern = "[0-9][0-9][0-9][0-9][0-9][0-9].pdf"

// DownloadWatcher picks up documents the browser saves into its download directory.
type DownloadWatcher struct {
	fs       billy.Filesystem
	attempts int
	interval time.Duration
}

func NewDownloadWatcher(fs billy.Filesystem) DownloadWatcher {
	return DownloadWatcher{
		fs:       fs,
		attempts: 40,
		interval: time.Second,
	}
}

func (w DownloadWatcher) matches() ([]string, error) {
	matches, err := util.Glob(w.fs, downloadPattern)
	if err != nil {
		return nil, fmt.Errorf("glob download dir: %w", err)
	}
	return matches, nil
}

// Expect must be called before the download is started, it fails when a
// document from an earlier download is still lying around.
func (w DownloadWatcher) Expect() error {
	matches, err := w.matches()
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return fmt.Errorf("%w: %v already in download dir", ErrAmbiguousDownload, matches)
	}
	return nil
}

// Collect waits for the downloaded document and moves it to `name` in `dst`.
func (w DownloadWatcher) Collect(ctx context.Context, dst billy.Filesystem, name string) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for i := 0; i < w.attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		matches, err := w.matches()
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return fsutil.Move(w.fs, matches[0], dst, name)
		default:
			return fmt.Errorf("%w: %v", ErrAmbiguousDownload, matches)
		}
	}
	return fmt.Errorf("%w after %s", ErrNoDownload, time.Duration(w.attempts)*w.interval)
}
