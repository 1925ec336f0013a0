// internal/engine/dynamic/chrome_page.go
package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/engine/capture"
	"github.com/law-makers/tablecrawl/internal/proxy"
	"github.com/rs/zerolog/log"
)

// Chrome launches local Chrome instances.
type Chrome struct {
	opts    Options
	proxies *proxy.Pool
}

// NewChrome returns a launcher using opts for every browser it starts.
func NewChrome(opts Options) *Chrome {
	if opts.IdleQuiet <= 0 {
		opts.IdleQuiet = config.DefaultNetworkIdleQuiet
	}
	return &Chrome{opts: opts, proxies: proxy.ParseList(opts.Proxy)}
}

// Launch starts a browser with one tab. The browser lives until Close is
// called; ctx only bounds startup and session restoration.
func (c *Chrome) Launch(ctx context.Context, lo LaunchOptions) (Page, error) {
	start := time.Now()

	opts := c.opts
	opts.Proxy = c.proxies.Next()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts, lo.Headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	p := &chromePage{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		quiet:       c.opts.IdleQuiet,
		pending:     make(map[network.RequestID]*pendingRequest),
		activity:    make(chan struct{}, 1),
	}

	// The first Run allocates the browser and must use the tab context
	// itself. ctx still bounds it by killing the allocator.
	stop := context.AfterFunc(ctx, allocCancel)
	err := chromedp.Run(tabCtx)
	if !stop() || err != nil {
		p.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("browser startup abandoned: %w", ctxErr)
		}
		c.proxies.MarkFailed(opts.Proxy)
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, p.handleEvent)

	runCtx, cancel := p.bound(ctx)
	defer cancel()

	tasks := chromedp.Tasks{network.Enable(), page.Enable()}
	if lo.State != nil {
		tasks = append(tasks, restoreActions(lo.State)...)
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to prepare browser: %w", err)
	}

	c.proxies.MarkHealthy(opts.Proxy)
	log.Debug().
		Bool("headless", lo.Headless).
		Bool("session", lo.State != nil).
		Str("proxy", opts.Proxy).
		Dur("elapsed", time.Since(start)).
		Msg("Browser launched")

	return p, nil
}

type pendingRequest struct {
	url    string
	method string
	status int64
}

type chromePage struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	quiet       time.Duration

	mu       sync.Mutex
	pending  map[network.RequestID]*pendingRequest
	handlers []func(capture.Response)
	closed   bool

	activity chan struct{}
}

// bound derives a context from the tab that also ends with ctx.
func (p *chromePage) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	if dl, ok := ctx.Deadline(); ok {
		var dlCancel context.CancelFunc
		runCtx, dlCancel = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { dlCancel(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) OnResponse(fn func(capture.Response)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

func (p *chromePage) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		p.pending[e.RequestID] = &pendingRequest{url: e.Request.URL, method: e.Request.Method}
		p.mu.Unlock()
		p.touch()

	case *network.EventResponseReceived:
		p.mu.Lock()
		if req, ok := p.pending[e.RequestID]; ok {
			req.status = e.Response.Status
			req.url = e.Response.URL
		}
		p.mu.Unlock()

	case *network.EventLoadingFinished:
		p.mu.Lock()
		req, ok := p.pending[e.RequestID]
		delete(p.pending, e.RequestID)
		handlers := append([]func(capture.Response){}, p.handlers...)
		p.mu.Unlock()
		p.touch()

		if !ok {
			return
		}
		resp := capture.Response{
			URL:    req.url,
			Method: req.method,
			Status: req.status,
			Body:   p.bodyFetcher(e.RequestID),
		}
		for _, fn := range handlers {
			fn(resp)
		}

	case *network.EventLoadingFailed:
		p.mu.Lock()
		delete(p.pending, e.RequestID)
		p.mu.Unlock()
		p.touch()
	}
}

// bodyFetcher reads a response body. It must not be called from the event
// goroutine.
func (p *chromePage) bodyFetcher(id network.RequestID) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		runCtx, cancel := p.bound(ctx)
		defer cancel()

		var body []byte
		err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		return body, err
	}
}

func (p *chromePage) touch() {
	select {
	case p.activity <- struct{}{}:
	default:
	}
}

func (p *chromePage) inflight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if p.isClosed() {
		return ErrPageClosed
	}
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if err := p.waitIdle(runCtx); err != nil {
		return fmt.Errorf("%w: %d requests still in flight", ErrNavigationTimeout, p.inflight())
	}
	return nil
}

// waitIdle returns once no request has been in flight for the quiet interval.
func (p *chromePage) waitIdle(ctx context.Context) error {
	timer := time.NewTimer(p.quiet)
	defer timer.Stop()

	for {
		select {
		case <-p.activity:
			timer.Reset(p.quiet)
		case <-timer.C:
			if p.inflight() == 0 {
				return nil
			}
			timer.Reset(p.quiet)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *chromePage) WaitTable(ctx context.Context, xpath string) (string, error) {
	if p.isClosed() {
		return "", ErrPageClosed
	}
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.WaitReady(xpath, chromedp.BySearch),
		chromedp.OuterHTML(xpath, &html, chromedp.BySearch),
	)
	if err != nil {
		if runCtx.Err() != nil {
			return "", fmt.Errorf("%w: %s", ErrElementTimeout, xpath)
		}
		return "", err
	}
	return html, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	if p.isClosed() {
		return "", ErrPageClosed
	}
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// elementVisibleTimeout bounds the visibility check before a screenshot.
const elementVisibleTimeout = 5 * time.Second

func (p *chromePage) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	shotCtx, shotCancel := context.WithTimeout(runCtx, elementVisibleTimeout)
	defer shotCancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		if errors.Is(shotCtx.Err(), context.DeadlineExceeded) && runCtx.Err() == nil {
			return nil, fmt.Errorf("%w: %s is not visible", ErrElementNotFound, selector)
		}
		return nil, err
	}
	return buf, nil
}

type storageSnapshot struct {
	Origin string              `json:"origin"`
	Items  []auth.StorageEntry `json:"items"`
}

const snapshotStorageJS = `(() => {
	const items = [];
	for (let i = 0; i < localStorage.length; i++) {
		const k = localStorage.key(i);
		items.push({name: k, value: localStorage.getItem(k)});
	}
	return {origin: location.origin, items: items};
})()`

func (p *chromePage) SessionState(ctx context.Context) (*auth.SessionState, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	var (
		cookies []*network.Cookie
		snap    storageSnapshot
		url     string
	)
	err := chromedp.Run(runCtx,
		chromedp.Location(&url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(snapshotStorageJS, &snap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot session: %w", err)
	}

	state := &auth.SessionState{URL: url, CreatedAt: time.Now()}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, auth.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	if snap.Origin != "" && snap.Origin != "null" {
		state.Origins = append(state.Origins, auth.OriginStorage{Origin: snap.Origin, LocalStorage: snap.Items})
	}
	return state, nil
}

func (p *chromePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *chromePage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := chromedp.Cancel(p.tabCtx)
	p.tabCancel()
	p.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("Browser did not close cleanly")
		return err
	}
	return nil
}

// restoreActions injects cookies and seeds localStorage for every saved origin
// before any document script runs.
func restoreActions(st *auth.SessionState) []chromedp.Action {
	var actions []chromedp.Action

	if len(st.Cookies) > 0 {
		params := make([]*network.CookieParam, 0, len(st.Cookies))
		for _, c := range st.Cookies {
			params = append(params, cookieParam(c))
		}
		actions = append(actions, network.SetCookies(params))
	}

	for _, o := range st.Origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		script, err := localStorageScript(o)
		if err != nil {
			log.Warn().Err(err).Str("origin", o.Origin).Msg("Skipping localStorage restore")
			continue
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	return actions
}

func cookieParam(c auth.Cookie) *network.CookieParam {
	cookie := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if c.Expires > 0 {
		expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		cookie.Expires = &expires
	}
	switch c.SameSite {
	case "Strict":
		cookie.SameSite = network.CookieSameSiteStrict
	case "Lax":
		cookie.SameSite = network.CookieSameSiteLax
	case "None":
		cookie.SameSite = network.CookieSameSiteNone
	}
	return cookie
}

func localStorageScript(o auth.OriginStorage) (string, error) {
	origin, err := json.Marshal(o.Origin)
	if err != nil {
		return "", err
	}
	items, err := json.Marshal(o.LocalStorage)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
	if (location.origin !== %s) return;
	for (const it of %s) {
		try { localStorage.setItem(it.name, it.value); } catch (e) {}
	}
})();`, origin, items), nil
}
