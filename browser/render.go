package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/webpeel/webpeel/models"
)

// RenderRequest is one browser navigation.
type RenderRequest struct {
	URL       string
	Headers   map[string]string
	Cookies   []models.Cookie
	UserAgent string

	// Stealth injects evasion JS before navigation.
	Stealth bool

	// WaitMs is an extra settle delay after the DOM stabilises.
	WaitMs int

	Actions []models.Action

	Screenshot         bool
	ScreenshotFullPage bool

	// ProfileDir launches a dedicated browser on a persistent profile,
	// exclusively locked for the duration of the render.
	ProfileDir string

	// Proxy routes this render through the given proxy URL. Pooled
	// pages share one browser, so a proxied render launches a
	// dedicated browser like ProfileDir does.
	Proxy string

	// RemoveOverlays strips cookie walls and modal overlays after load.
	RemoveOverlays bool
}

// RenderResult is the rendered page.
type RenderResult struct {
	HTML       string
	Title      string
	Status     int
	FinalURL   string
	Screenshot []byte
}

// Render navigates a pooled page (or a profile-backed browser) and
// returns the rendered HTML.
//
// Order matters inside: stealth JS and the hijack router only apply to
// navigations that happen after they are installed, so both are
// mounted before Navigate.
func (b *Browser) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req.ProfileDir != "" || req.Proxy != "" {
		return b.renderWithProfile(ctx, req)
	}

	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to acquire page from pool", err)
	}

	// Reset to about:blank with the ORIGINAL page reference so cleanup
	// succeeds even after the request context expires.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	return b.renderOnPage(ctx, page, req)
}

// renderWithProfile launches a dedicated browser on the persistent
// profile (and/or proxy) and closes it when done. Profile-backed
// browsers are never pooled.
func (b *Browser) renderWithProfile(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req.ProfileDir != "" {
		unlock := b.lockProfile(req.ProfileDir)
		defer unlock()
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox)
	if b.cfg.BrowserBin != "" {
		l = l.Bin(b.cfg.BrowserBin)
	}
	if req.ProfileDir != "" {
		l = l.UserDataDir(req.ProfileDir)
	}
	if req.Proxy != "" {
		l = l.Proxy(req.Proxy)
	}
	applyStealthFlags(l)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to launch profile browser", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to connect to profile browser", err)
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to create page", err)
	}
	defer func() { _ = page.Close() }()

	return b.renderOnPage(ctx, page, req)
}

func (b *Browser) renderOnPage(ctx context.Context, page *rod.Page, req *RenderRequest) (*RenderResult, error) {
	if req.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if req.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{UserAgent: req.UserAgent}.Call(page)
	}

	// Extra headers; a Google referer unless the caller set one.
	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, err := url.Parse(req.URL); err == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extraHeaders)}.Call(page)
	}

	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, err := url.Parse(req.URL); err == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}

	router := setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	if req.WaitMs > 0 {
		select {
		case <-time.After(time.Duration(req.WaitMs) * time.Millisecond):
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "wait interrupted")
		}
	}

	// Status code from the navigation timing entry; no CDP listeners
	// needed, which avoids the Fetch-domain conflict with the hijack
	// router on Chromium 145+.
	status := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}
	if status == 0 {
		status = 200
	}

	if req.RemoveOverlays {
		removeOverlays(p)
	}

	if len(req.Actions) > 0 {
		if err := executeActions(ctx, page, req.Actions); err != nil {
			return nil, err
		}
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	var screenshot []byte
	if req.Screenshot || req.ScreenshotFullPage {
		screenshot, err = b.capture(p, req.ScreenshotFullPage)
		if err != nil {
			slog.Warn("screenshot capture failed", "url", req.URL, "error", err)
		}
	}

	return &RenderResult{
		HTML:       rawHTML,
		Title:      title,
		Status:     status,
		FinalURL:   finalURL,
		Screenshot: screenshot,
	}, nil
}

// capture takes a PNG screenshot of the viewport or the full page.
func (b *Browser) capture(p *rod.Page, fullPage bool) ([]byte, error) {
	if fullPage {
		return p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	return p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays strips fixed/sticky high-z-index elements, which are
// almost always cookie walls and modal popups, then restores scrolling.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			const pos = style.position;
			if (pos === 'fixed' || pos === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900 || style.zIndex === 'auto') {
					el.remove();
				}
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

func categorizeError(err error, msg string) *models.PeelError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPeelError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPeelError(models.ErrCodeAbort, "request canceled", err)
	default:
		return models.NewPeelError(models.ErrCodeNetwork, msg, err)
	}
}
