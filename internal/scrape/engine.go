// Package scrape extracts business contact info from company websites using
// a static HTML pass with an optional headless-browser fallback.
package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// candidatePaths is the ordered list of pages tried per domain. Contact info
// concentrates on these; anything deeper belongs to a crawler, which this
// engine deliberately is not.
var candidatePaths = []string{"", "/contact", "/contact-us", "/contact.html", "/about", "/about-us"}

const maxBodyBytes = 512 * 1024

// Renderer loads a URL in a real browser and returns the rendered markup.
// Implemented by Browser; faked in tests.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BatchState carries per-batch mutable state: the set of domains already
// known to fail. Scoped to one scrape batch so concurrent jobs cannot
// contaminate each other's failure memory.
type BatchState struct {
	mu     sync.Mutex
	failed map[string]model.ScrapeErrorCode
}

// NewBatchState creates an empty failure set for one batch.
func NewBatchState() *BatchState {
	return &BatchState{failed: make(map[string]model.ScrapeErrorCode)}
}

// MarkFailed records a domain as failed for the remainder of the batch.
func (b *BatchState) MarkFailed(domain string, code model.ScrapeErrorCode) {
	b.mu.Lock()
	b.failed[normalizeDomain(domain)] = code
	b.mu.Unlock()
}

// Failed reports whether the domain already failed within this batch.
func (b *BatchState) Failed(domain string) (model.ScrapeErrorCode, bool) {
	b.mu.Lock()
	code, ok := b.failed[normalizeDomain(domain)]
	b.mu.Unlock()
	return code, ok
}

// Result is the outcome of scraping one domain.
type Result struct {
	Email     string
	Phone     string
	ErrorCode model.ScrapeErrorCode
}

// Options tunes a single ScrapeDomain call.
type Options struct {
	// Timeout bounds each page fetch, not the whole domain.
	Timeout time.Duration
	// UseBrowserFallback enables the headless pass when static extraction
	// finds no email and the failure class does not reproduce in a browser.
	UseBrowserFallback bool
}

// Engine implements the static extraction pass and dispatches to the
// browser fallback. Safe for concurrent use; per-batch state lives in
// BatchState, not the engine.
type Engine struct {
	client   *http.Client
	skipList *SkipList
	renderer Renderer
	agent    string
	baseURL  func(domain string) string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHTTPClient overrides the static-fetch client.
func WithHTTPClient(c *http.Client) EngineOption {
	return func(e *Engine) { e.client = c }
}

// WithSkipList overrides the directory skip-list.
func WithSkipList(s *SkipList) EngineOption {
	return func(e *Engine) { e.skipList = s }
}

// WithRenderer attaches a headless browser for the fallback pass.
func WithRenderer(r Renderer) EngineOption {
	return func(e *Engine) { e.renderer = r }
}

// WithBaseURL overrides how a domain maps to a root URL. Used by tests to
// target a local server.
func WithBaseURL(f func(domain string) string) EngineOption {
	return func(e *Engine) { e.baseURL = f }
}

// NewEngine creates an Engine with a pooled HTTP client and the embedded
// directory skip-list.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		skipList: NewSkipList(),
		agent:    "Mozilla/5.0 (compatible; ProspectorBot/1.0)",
		baseURL:  func(domain string) string { return "https://" + domain },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScrapeDomain walks the candidate path list for one domain and returns the
// best contact info found. An email on any path short-circuits the remaining
// paths. A persistent failure on the home page abandons the domain for the
// batch; later calls for the same domain return immediately.
func (e *Engine) ScrapeDomain(ctx context.Context, state *BatchState, domain string, opts Options) Result {
	domain = normalizeDomain(domain)
	if domain == "" {
		return Result{ErrorCode: model.ScrapeErrDomainNotFound}
	}
	if e.skipList.Contains(domain) {
		return Result{ErrorCode: model.ScrapeErrDirectorySkipped}
	}
	if _, failed := state.Failed(domain); failed {
		return Result{ErrorCode: model.ScrapeErrDomainFailed}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	res, homeFailure := e.staticPass(ctx, state, domain, opts)
	if res.Email != "" {
		return res
	}

	// Only the home page's failure class disqualifies the fallback. A 404 on
	// a secondary path says nothing about whether the site renders in a
	// browser.
	if opts.UseBrowserFallback && e.renderer != nil && browserWorthTrying(homeFailure) {
		browserRes := e.browserPass(ctx, state, domain, opts)
		if browserRes.Email != "" {
			if browserRes.Phone == "" {
				browserRes.Phone = res.Phone
			}
			return browserRes
		}
		if res.Phone == "" {
			res.Phone = browserRes.Phone
		}
	}

	if res.Email == "" && res.Phone == "" && res.ErrorCode == "" {
		if homeFailure != "" {
			res.ErrorCode = homeFailure
		} else {
			res.ErrorCode = model.ScrapeErrNoContactInfo
		}
	}
	return res
}

// staticPass fetches candidate paths over plain HTTP and extracts contacts.
// It returns the accumulated result and the home page's failure class, ""
// when the home page fetched cleanly. Failures on secondary paths are
// expected (most sites lack some of the candidate paths) and carry no
// domain-level signal.
func (e *Engine) staticPass(ctx context.Context, state *BatchState, domain string, opts Options) (Result, model.ScrapeErrorCode) {
	var res Result
	var homeFailure model.ScrapeErrorCode

	for i, path := range candidatePaths {
		doc, failure := e.fetchPage(ctx, e.baseURL(domain)+path, opts.Timeout)
		if failure != nil {
			if i == 0 {
				homeFailure = failure.code
				if failure.persistent {
					// Home-page DNS, connection, TLS, auth, and 4xx/5xx
					// failures reproduce on every path.
					state.MarkFailed(domain, failure.code)
					res.ErrorCode = failure.code
					return res, homeFailure
				}
			}
			continue
		}

		contacts := ExtractContacts(doc)
		if email := SelectEmail(contacts.Emails); email != "" {
			res.Email = email
			if res.Phone == "" {
				res.Phone = SelectPhone(contacts)
			}
			return res, homeFailure
		}
		if res.Phone == "" {
			res.Phone = SelectPhone(contacts)
		}
	}
	return res, homeFailure
}

// browserPass renders candidate paths in the shared browser and applies the
// same extraction rules to the rendered markup.
func (e *Engine) browserPass(ctx context.Context, state *BatchState, domain string, opts Options) Result {
	var res Result

	for i, path := range candidatePaths {
		renderCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		html, err := e.renderer.Render(renderCtx, e.baseURL(domain)+path)
		cancel()
		if err != nil {
			failure := classifyFetchError(err)
			if i == 0 && failure.persistent {
				state.MarkFailed(domain, failure.code)
				res.ErrorCode = failure.code
				return res
			}
			zap.L().Debug("browser render failed",
				zap.String("domain", domain),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		contacts := ExtractContacts(doc)
		if email := SelectEmail(contacts.Emails); email != "" {
			res.Email = email
			if res.Phone == "" {
				res.Phone = SelectPhone(contacts)
			}
			return res
		}
		if res.Phone == "" {
			res.Phone = SelectPhone(contacts)
		}
	}
	return res
}

// fetchPage performs one static fetch and parses the body. A nil failure
// means doc is valid.
func (e *Engine) fetchPage(ctx context.Context, url string, timeout time.Duration) (*goquery.Document, *fetchFailure) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &fetchFailure{code: model.ScrapeErrUnknown}
	}
	req.Header.Set("User-Agent", e.agent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		f := classifyFetchError(err)
		return nil, &f
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f := classifyFetchError(eris.Wrap(err, "scrape: read body"))
		return nil, &f
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		zap.L().Debug("anti-bot block detected",
			zap.String("url", url),
			zap.String("block", string(blockType)),
		)
		return nil, &fetchFailure{code: model.ScrapeErrAccessDenied, persistent: true}
	}

	if resp.StatusCode >= 400 {
		f := classifyStatus(resp.StatusCode)
		return nil, &f
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &fetchFailure{code: model.ScrapeErrUnknown}
	}
	return doc, nil
}
