package fetch

import (
	"context"

	"github.com/webpeel/webpeel/browser"
)

// Renderer is the contract the browser rungs need from the browser
// controller.
type Renderer interface {
	Render(ctx context.Context, req *browser.RenderRequest) (*browser.RenderResult, error)
}

// BrowserEngine is the middle rung: a full headless render with
// JavaScript, no evasion patches.
type BrowserEngine struct {
	renderer Renderer
}

func NewBrowserEngine(r Renderer) *BrowserEngine {
	return &BrowserEngine{renderer: r}
}

func (e *BrowserEngine) Name() string { return StrategyBrowser }

func (e *BrowserEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	return renderFetch(ctx, e.renderer, req, false)
}

// StealthEngine is the top rung: a render with stealth patches,
// overlay removal, and optional persistent profile and proxy.
type StealthEngine struct {
	renderer Renderer
}

func NewStealthEngine(r Renderer) *StealthEngine {
	return &StealthEngine{renderer: r}
}

func (e *StealthEngine) Name() string { return StrategyStealth }

func (e *StealthEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	return renderFetch(ctx, e.renderer, req, true)
}

func renderFetch(ctx context.Context, r Renderer, req *Request, stealth bool) (*Result, error) {
	rr := &browser.RenderRequest{
		URL:                req.URL,
		Headers:            req.Headers,
		Cookies:            req.Cookies,
		UserAgent:          req.UserAgent,
		Stealth:            stealth,
		WaitMs:             req.WaitMs,
		Actions:            req.Actions,
		Screenshot:         req.Screenshot,
		ScreenshotFullPage: req.ScreenshotFullPage,
		RemoveOverlays:     stealth,
		Proxy:              req.Proxy,
	}
	if stealth {
		rr.ProfileDir = req.ProfileDir
	}

	res, err := r.Render(ctx, rr)
	if err != nil {
		return nil, err
	}
	return &Result{
		Body:        []byte(res.HTML),
		Status:      res.Status,
		ContentType: "text/html; charset=utf-8",
		FinalURL:    res.FinalURL,
		Screenshot:  res.Screenshot,
	}, nil
}
