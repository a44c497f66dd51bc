// Package portal drives the HR portal through a real browser. Pages are read as
// HTML and parsed separately so everything but the browser itself can be tested
// against saved pages.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"hrpull/internal/applicants"
	"hrpull/lib/assert"
	"hrpull/lib/restyutil"
	"hrpull/lib/telemetry"
	"hrpull/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	report_client_login    = "client.login"
	report_client_listings = "client.listings"
	report_client_process  = "client.process"
	report_client_close    = "client.close"
)

// ErrLoginRejected means the portal showed the login form again after submitting it.
var ErrLoginRejected = errors.New("login rejected")

var tracer = telemetry.Tracer("hrpull.internal.portal")

// names that are at least this similar are the same person written differently
const nameSimilarityThreshold = 0.85

type Config struct {
	BaseURL    string
	Headless   bool
	BrowserBin string
	// DownloadDir switches document retrieval from fetching over HTTP to letting
	// the browser save the document and picking it up from this directory.
	DownloadDir string
	// OperationTimeout bounds every page interaction.
	OperationTimeout time.Duration
	// DocumentTimeout bounds waiting for the portal to generate a combined document.
	DocumentTimeout time.Duration
	// Trace receives a dump of every document request when set.
	Trace restyutil.InstrumentOutput
}

func (c Config) withDefaults() Config {
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 300 * time.Second
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 300 * time.Second
	}
	return c
}

// Client is a browser logged into the portal, it implements applicants.Portal.
type Client struct {
	cfg  Config
	base *url.URL
	fs   billy.Filesystem
	tel  telemetry.API

	launcher *launcher.Launcher
	launched bool
	browser  *rod.Browser
	page     *rod.Page

	limiter   *rate.Limiter
	fetcher   DocumentFetcher
	downloads *DownloadWatcher
}

// Opener returns the function the syncer uses to log into each position, candidate
// folders are resolved against `fs`.
func Opener(cfg Config, fs billy.Filesystem, tel telemetry.API) applicants.OpenPortal {
	return func(ctx context.Context, login, password string) (applicants.Portal, error) {
		return Open(ctx, cfg, fs, tel, login, password)
	}
}

// Open starts a browser and logs into the portal. Everything is torn down again
// when any step fails.
func Open(ctx context.Context, cfg Config, fs billy.Filesystem, tel telemetry.API, login, password string) (*Client, error) {
	assert.NotNil(fs)
	assert.NotNil(tel)

	ctx, span := tracer.Start(ctx, "Open")
	defer span.End()

	cfg = cfg.withDefaults()
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	tel = telemetry.NewScopedAPI("portal", tel)

	// 2 page loads max per second, shared by the browser and document requests
	limiter := rate.NewLimiter(2, 2)

	c := &Client{
		cfg:     cfg,
		base:    base,
		fs:      fs,
		tel:     tel,
		limiter: limiter,
		fetcher: NewDocumentFetcher(base, tel, FetcherOptions{
			Bypass:  true,
			Limiter: limiter,
			Trace:   cfg.Trace,
			Timeout: cfg.OperationTimeout,
		}),
	}
	if cfg.DownloadDir != "" {
		watcher := NewDownloadWatcher(osfs.New(cfg.DownloadDir))
		c.downloads = &watcher
	}

	err = c.start(ctx)
	if err == nil {
		err = c.login(ctx, login, password)
	}
	if err != nil {
		closeErr := c.Close()
		if closeErr != nil {
			tel.ReportWarning(report_client_close, closeErr)
		}
		return nil, err
	}
	return c, nil
}

func (c *Client) start(ctx context.Context) error {
	c.launcher = launcher.New().
		Headless(c.cfg.Headless).
		Set(flags.NoSandbox).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("window-size"), "1024,1400")
	if c.cfg.BrowserBin != "" {
		c.launcher = c.launcher.Bin(c.cfg.BrowserBin)
	}

	controlURL, err := launch(ctx, c.launcher)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	c.launched = true

	// the browser outlives ctx, which only bounds startup
	browser := rod.New().ControlURL(controlURL)
	err = browser.Connect()
	if err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	c.browser = browser

	incognito, err := browser.Incognito()
	if err != nil {
		return fmt.Errorf("incognito context: %w", err)
	}
	if c.downloads != nil {
		dir, err := downloadPath(c.cfg.DownloadDir)
		if err != nil {
			return err
		}
		err = proto.BrowserSetDownloadBehavior{
			Behavior:         proto.BrowserSetDownloadBehaviorBehaviorAllow,
			BrowserContextID: incognito.BrowserContextID,
			DownloadPath:     dir,
		}.Call(browser)
		if err != nil {
			return fmt.Errorf("set download dir: %w", err)
		}
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	c.page = page
	return nil
}

// downloadPath is the download dir as the browser wants it, absolute.
func downloadPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve download dir: %w", err)
	}
	return abs, nil
}

func launch(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		done <- result{url: u, err: err}
	}()

	select {
	case <-ctx.Done():
		l.Kill()
		return "", ctx.Err()
	case r := <-done:
		return r.url, r.err
	}
}

// operation bounds a single interaction with the page.
func (c *Client) operation(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	return c.page.Context(ctx), cancel
}

func (c *Client) navigate(page *rod.Page, link string) error {
	err := c.limiter.Wait(page.GetContext())
	if err != nil {
		return err
	}
	err = page.Navigate(link)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", link, err)
	}
	return page.WaitLoad()
}

// clickAndWait clicks an element that loads another page.
func (c *Client) clickAndWait(page *rod.Page, el *rod.Element) error {
	err := c.limiter.Wait(page.GetContext())
	if err != nil {
		return err
	}
	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)
	err = el.Click(proto.InputMouseButtonLeft, 1)
	if err != nil {
		return err
	}
	wait()
	return page.GetContext().Err()
}

func (c *Client) document(page *rod.Page) (*goquery.Document, error) {
	contents, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(contents))
}

func (c *Client) login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	page, cancel := c.operation(ctx)
	defer cancel()

	loginURL := c.base.ResolveReference(&url.URL{Path: "/hr/sessions/new"})
	err := c.navigate(page, loginURL.String())
	if err != nil {
		return err
	}

	for _, field := range []struct {
		selector string
		value    string
	}{
		{selector: "#user_username", value: username},
		{selector: "#user_password", value: password},
	} {
		el, err := page.Element(field.selector)
		if err != nil {
			return fmt.Errorf("find %s: %w", field.selector, err)
		}
		err = el.Input(field.value)
		if err != nil {
			return fmt.Errorf("fill %s: %w", field.selector, err)
		}
	}

	form, err := page.Element("form")
	if err != nil {
		return fmt.Errorf("find login form: %w", err)
	}
	err = c.limiter.Wait(ctx)
	if err != nil {
		return err
	}
	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)
	_, err = form.Eval(`() => this.submit()`)
	if err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}
	wait()

	stillThere, _, err := page.Has("#user_password")
	if err != nil {
		return err
	}
	if stillThere {
		c.tel.ReportWarning(report_client_login, ErrLoginRejected, "user", username)
		return fmt.Errorf("%w for %s", ErrLoginRejected, username)
	}
	return nil
}

// Listings opens the applicants table of the position the session belongs to.
func (c *Client) Listings(ctx context.Context) ([]applicants.Listing, error) {
	ctx, span := tracer.Start(ctx, "Listings")
	defer span.End()

	page, cancel := c.operation(ctx)
	defer cancel()

	link, err := page.ElementR("a", "Applicants")
	if err != nil {
		return nil, fmt.Errorf("find applicants link: %w", err)
	}
	err = c.clickAndWait(page, link)
	if err != nil {
		return nil, fmt.Errorf("open applicants: %w", err)
	}

	doc, err := c.document(page)
	if err != nil {
		return nil, err
	}
	listings, err := ParseListings(c.base, doc)
	if err != nil {
		c.tel.ReportBroken(report_client_listings, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(listings)))
	return listings, nil
}

// Process reads the candidate's page into `cand` and, when `tryDownload` is set,
// stores the combined document as `<folder>/combined.pdf` unless it is already there.
func (c *Client) Process(ctx context.Context, cand *applicants.Candidate, folder string, tryDownload bool) error {
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.Int64("candidate", cand.ID))

	page, cancel := c.operation(ctx)
	defer cancel()

	err := c.navigate(page, cand.URL)
	if err != nil {
		return err
	}
	doc, err := c.document(page)
	if err != nil {
		return err
	}

	info, err := ParseContactInfo(doc)
	if err != nil {
		c.tel.ReportBroken(report_client_process, err, cand.URL)
		return err
	}
	checkName(c.tel, cand, info)
	err = info.Apply(cand)
	if err != nil {
		c.tel.ReportBroken(report_client_process, err, cand.URL)
		return err
	}

	state, err := parseCombinedState(c.base, doc)
	if err != nil {
		return err
	}

	r := retrieval{fetcher: c.fetcher}
	if c.downloads != nil {
		r.downloads = c.downloads
	}
	return ensureCombined(ctx, c.tel, rodCandidatePage{c: c, page: page}, state, r, c.fs, folder, tryDownload)
}

// rodCandidatePage is a candidate page open in the browser.
type rodCandidatePage struct {
	c    *Client
	page *rod.Page
}

func (p rodCandidatePage) Generate() error {
	generate, err := p.page.Element(".generate-one-combo")
	if err != nil {
		return fmt.Errorf("find generate button: %w", err)
	}
	return generate.Click(proto.InputMouseButtonLeft, 1)
}

// WaitCombined polls every 100ms, bounded by the document timeout rather than
// the operation timeout.
func (p rodCandidatePage) WaitCombined(ctx context.Context) (combinedState, error) {
	ctx, cancel := context.WithTimeout(ctx, p.c.cfg.DocumentTimeout)
	defer cancel()
	page := p.page.Context(ctx)

	var state combinedState
	err := poll(ctx, 100*time.Millisecond, func() (bool, error) {
		doc, err := p.c.document(page)
		if err != nil {
			return false, err
		}
		state, err = parseCombinedState(p.c.base, doc)
		if err != nil {
			return false, err
		}
		return state.Ready, nil
	})
	return state, err
}

func (p rodCandidatePage) ClickView() error {
	view, err := p.page.ElementR(".combined-doc-container a", "^View$")
	if err != nil {
		return fmt.Errorf("find View link: %w", err)
	}
	_, err = view.Eval(`() => this.setAttribute("download", "")`)
	if err != nil {
		return err
	}
	return view.Click(proto.InputMouseButtonLeft, 1)
}

func (p rodCandidatePage) Cookies() ([]*http.Cookie, error) {
	cookies, err := p.page.Cookies([]string{p.c.base.String()})
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return httpCookies(cookies), nil
}

func httpCookies(cookies []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		})
	}
	return out
}

// checkName compares the name the listing had with the one on the candidate page.
// A differing name is reported, the listing's name is kept.
func checkName(tel telemetry.API, cand *applicants.Candidate, info ContactInfo) {
	listed := cand.DisplayName()
	shown := info.Name()
	similarity := textutil.NameSimilarity(listed, shown)
	if similarity == 1 {
		return
	}
	err := fmt.Errorf("candidate %d is listed as '%s' but the page shows '%s'", cand.ID, listed, shown)
	if similarity >= nameSimilarityThreshold {
		tel.ReportDebug(err.Error(), "similarity", similarity)
		return
	}
	tel.ReportWarning(report_client_process, err, "similarity", similarity)
}

func poll(ctx context.Context, interval time.Duration, check func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := check()
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Close() error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
		c.page = nil
	}
	// Cleanup waits for the process to exit, there is none unless Launch succeeded
	if c.launched {
		c.launcher.Kill()
		c.launcher.Cleanup()
		c.launched = false
	}
	return err
}
