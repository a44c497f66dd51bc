package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"hrpull/internal/applicants"
	"hrpull/lib/fsutil"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5"
)

const report_client_document = "client.document"

// candidatePage is what ensureCombined needs from the open candidate page.
type candidatePage interface {
	// Generate clicks the button that has the portal build the combined document.
	Generate() error
	// WaitCombined polls the page until the combined document is ready.
	WaitCombined(ctx context.Context) (combinedState, error)
	Cookies() ([]*http.Cookie, error)
	// ClickView clicks the View link of the combined document.
	ClickView() error
}

type documentFetch interface {
	Fetch(ctx context.Context, cookies []*http.Cookie, link *url.URL, fs billy.Filesystem, name string) error
}

type downloadWait interface {
	Expect() error
	Collect(ctx context.Context, dst billy.Filesystem, name string) error
}

// retrieval is how the combined document reaches the candidate folder, the
// browser download is used when `downloads` is set.
type retrieval struct {
	fetcher   documentFetch
	downloads downloadWait
}

// unavailable reports errors that only mean this one document could not be
// retrieved this time.
func unavailable(err error) bool {
	return errors.Is(err, ErrNoDownload) ||
		errors.Is(err, ErrAmbiguousDownload) ||
		errors.Is(err, ErrNotDocument) ||
		errors.Is(err, ErrFetchFailed)
}

// ensureCombined has the portal generate the combined document when it was
// never generated and stores it as `<folder>/combined.pdf`. A document that
// cannot be retrieved is reported and left for the next run, the candidate
// still counts as processed.
func ensureCombined(
	ctx context.Context,
	tel telemetry.API,
	page candidatePage,
	state combinedState,
	r retrieval,
	fs billy.Filesystem,
	folder string,
	tryDownload bool,
) error {
	if state.NeedsGeneration {
		err := page.Generate()
		if err != nil {
			return fmt.Errorf("generate combined document: %w", err)
		}
	}
	state, err := page.WaitCombined(ctx)
	if err != nil {
		return fmt.Errorf("wait for combined document: %w", err)
	}

	target := path.Join(folder, applicants.CombinedFile)
	exists, err := fsutil.Exists(fs, target)
	if err != nil {
		return err
	}
	if exists || !tryDownload {
		return nil
	}
	if state.View == nil {
		return fmt.Errorf("%w: combined document has no View link", ErrUnexpectedPage)
	}

	if r.downloads != nil {
		err = download(ctx, page, r.downloads, fs, target)
	} else {
		var cookies []*http.Cookie
		cookies, err = page.Cookies()
		if err != nil {
			return err
		}
		err = r.fetcher.Fetch(ctx, cookies, state.View, fs, target)
	}
	if err != nil && ctx.Err() == nil && unavailable(err) {
		tel.ReportWarning(report_client_document, err, target)
		return nil
	}
	return err
}

// download has the browser save the document and picks it up from the download dir.
func download(ctx context.Context, page candidatePage, w downloadWait, fs billy.Filesystem, target string) error {
	err := w.Expect()
	if err != nil {
		return err
	}
	err = page.ClickView()
	if err != nil {
		return fmt.Errorf("start download: %w", err)
	}
	return w.Collect(ctx, fs, target)
}
