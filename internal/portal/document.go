package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hrpull/lib/assert"
	"hrpull/lib/fsutil"
	"hrpull/lib/restyutil"
	"hrpull/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-git/go-billy/v5"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_fetch = "fetcher.fetch"
)

// ErrNotDocument means the portal answered with something other than a PDF,
// typically the login page after the session expired.
var ErrNotDocument = errors.New("response is not a pdf document")

// ErrFetchFailed means the document request failed or was answered with an error status.
var ErrFetchFailed = errors.New("document fetch failed")

// DocumentFetcher downloads combined documents over HTTP using the cookies of
// the browser session.
type DocumentFetcher struct {
	http *resty.Client
	tel  telemetry.API
}

type FetcherOptions struct {
	// Bypass routes requests through the cloudflare bypass transport.
	Bypass bool
	// Limiter is shared with the browser so both count against the same budget.
	Limiter *rate.Limiter
	// Trace receives a dump of every exchange when set.
	Trace restyutil.InstrumentOutput
	Timeout time.Duration
}

func NewDocumentFetcher(base *url.URL, tel telemetry.API, opts FetcherOptions) DocumentFetcher {
	assert.NotNil(base)
	assert.NotNil(tel)

	httpClient := resty.New()
	if opts.Bypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	if opts.Limiter != nil {
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return opts.Limiter.Wait(req.Context())
		})
	}
	restyutil.InstrumentClient(httpClient, tracer, opts.Trace)

	return DocumentFetcher{
		http: httpClient,
		tel:  telemetry.NewScopedAPI("portal", tel),
	}
}

// Fetch downloads `link` into `name` in `fs`. The file only appears once the
// whole document has been received.
func (f DocumentFetcher) Fetch(ctx context.Context, cookies []*http.Cookie, link *url.URL, fs billy.Filesystem, name string) error {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	res, err := f.http.R().
		SetContext(ctx).
		SetCookies(cookies).
		SetHeader("accept", "application/pdf").
		Get(link.String())
	if err != nil {
		f.tel.ReportWarning(report_fetcher_fetch, err, link.String())
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if res.StatusCode() != http.StatusOK {
		err = fmt.Errorf("%w: %s", ErrFetchFailed, res.Status())
		f.tel.ReportWarning(report_fetcher_fetch, err, link.String())
		return err
	}

	// servers are not consistent about the content type of documents, so the
	// magic number is what counts
	body := res.Body()
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		err = fmt.Errorf("%w: %s (%s)", ErrNotDocument, link.String(), res.Header().Get("Content-Type"))
		f.tel.ReportWarning(report_fetcher_fetch, err)
		return err
	}

	err = fsutil.WriteFileAtomic(fs, name, body)
	if err != nil {
		return err
	}
	f.tel.ReportDebug("fetched document", "name", name, "bytes", len(body))
	return nil
}
