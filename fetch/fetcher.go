package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/webpeel/webpeel/challenge"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/simhash"
)

// domSimilarMax is the Hamming distance between DOM fingerprints under
// which a rendered page counts as structurally identical to the shell
// a lower rung returned.
const domSimilarMax = 3

// rung is a state of the escalation machine.
type rung int

const (
	rungSimple rung = iota
	rungBrowser
	rungStealth
	rungDone
	rungFailed
)

func (r rung) String() string {
	switch r {
	case rungSimple:
		return StrategySimple
	case rungBrowser:
		return StrategyBrowser
	case rungStealth:
		return StrategyStealth
	case rungDone:
		return "done"
	default:
		return "failed"
	}
}

// verdict classifies one rung attempt.
type verdict int

const (
	verdictOK verdict = iota
	verdictBlocked  // try the next proxy on the same rung
	verdictEscalate // advance to the next rung
	verdictFatal    // stop the whole fetch, no escalation
	verdictAbort    // caller cancelled, propagate unchanged
)

// Fetcher walks the ladder {Simple, Browser, Stealth} until a rung
// produces real content.
type Fetcher struct {
	cfg     config.FetcherConfig
	engines [3]Engine
	memory  *DomainMemory
}

// New builds a Fetcher. browser and stealth may be nil (CLI without a
// local Chromium); their rungs are then skipped.
func New(cfg config.FetcherConfig, simple, browserEng, stealthEng Engine) *Fetcher {
	f := &Fetcher{cfg: cfg, memory: NewDomainMemory(cfg.DomainMemoryTTL)}
	f.engines[rungSimple] = simple
	f.engines[rungBrowser] = browserEng
	f.engines[rungStealth] = stealthEng
	return f
}

// Close stops the domain-memory prune loop.
func (f *Fetcher) Close() {
	f.memory.Stop()
}

// Fetch resolves a PeelRequest into a FetchOutcome, escalating through
// the ladder as needed. AbortError from the caller's context is
// propagated unchanged and never triggers escalation.
func (f *Fetcher) Fetch(ctx context.Context, req *models.PeelRequest) (*models.FetchOutcome, error) {
	start := time.Now()

	timeout := f.cfg.DefaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if timeout > f.cfg.MaxTimeout {
		timeout = f.cfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := hostOf(req.URL)
	state := f.startRung(req, host)

	proxies := req.Proxies
	if len(proxies) == 0 {
		proxies = f.cfg.Proxies
	}
	chain := proxies
	if len(chain) == 0 {
		chain = []string{""}
	}

	var attempted []string
	var lastErr error
	var shellHTML string

	for state != rungDone && state != rungFailed {
		eng := f.engines[state]
		if eng == nil {
			state = f.next(state)
			continue
		}
		attempted = append(attempted, eng.Name())

		res, v, err := f.tryRung(ctx, eng, req, chain, state)
		switch v {
		case verdictOK:
			f.remember(host, eng.Name(), shellHTML, res)
			return f.outcome(res, eng.Name(), attempted, start), nil
		case verdictAbort:
			return nil, err
		case verdictFatal:
			return nil, err
		default:
			slog.Debug("rung exhausted, escalating",
				"url", req.URL, "rung", state.String(), "error", err,
			)
			if res != nil && isHTMLContentType(res.ContentType) {
				shellHTML = string(res.Body)
			}
			lastErr = err
			state = f.next(state)
		}
	}

	// The remembered rung stopped working for this host.
	f.memory.Delete(host)

	if lastErr == nil {
		lastErr = models.NewPeelError(models.ErrCodeInternal, "no fetch strategy available", nil)
	}
	return nil, lastErr
}

// startRung picks the initial rung from forced options and the domain
// memory of the last winning strategy.
func (f *Fetcher) startRung(req *models.PeelRequest, host string) rung {
	state := rungSimple
	if req.Render || req.Screenshot || req.ScreenshotFullPage || len(req.Actions) > 0 || req.WaitMs > 0 {
		state = rungBrowser
	}
	if req.Stealth || req.ProfileDir != "" {
		state = rungStealth
	}
	switch f.memory.Get(host) {
	case StrategyBrowser:
		if state < rungBrowser {
			state = rungBrowser
		}
	case StrategyStealth:
		state = rungStealth
	}
	return state
}

func (f *Fetcher) next(state rung) rung {
	if state >= rungStealth {
		return rungFailed
	}
	return state + 1
}

// remember pins host to the winning strategy. A win that followed an
// empty-shell escalation is only pinned when rendering actually changed
// the DOM: a render that reproduced the shell's structure means the
// lower rung already had the page, so the host stays unpinned.
func (f *Fetcher) remember(host, strategy, shellHTML string, res *Result) {
	if strategy != StrategySimple && shellHTML != "" && isHTMLContentType(res.ContentType) {
		d := simhash.Distance(
			simhash.FingerprintDOM(shellHTML),
			simhash.FingerprintDOM(string(res.Body)),
		)
		if d <= domSimilarMax {
			slog.Debug("render left the DOM structure unchanged, host not pinned",
				"host", host, "strategy", strategy, "distance", d,
			)
			return
		}
	}
	f.memory.Set(host, strategy)
}

// tryRung runs one rung across the proxy chain. A blocked outcome
// advances to the next proxy; exhausting proxies reports the rung as
// exhausted so the ladder escalates.
func (f *Fetcher) tryRung(ctx context.Context, eng Engine, req *models.PeelRequest, chain []string, state rung) (*Result, verdict, error) {
	var lastErr error
	for _, proxy := range chain {
		res, v, err := f.attempt(ctx, eng, req, proxy, state)
		switch v {
		case verdictOK, verdictAbort, verdictFatal:
			return res, v, err
		case verdictBlocked:
			lastErr = err
			continue
		case verdictEscalate:
			return res, verdictEscalate, err
		}
	}
	return nil, verdictEscalate, lastErr
}

// attempt runs one engine+proxy pair with bounded exponential retries
// (500ms, 1s, 2s). Network errors, 5xx and 429 retry; other 4xx never.
func (f *Fetcher) attempt(ctx context.Context, eng Engine, req *models.PeelRequest, proxy string, state rung) (*Result, verdict, error) {
	ereq := &Request{
		URL:                req.URL,
		Headers:            req.Headers,
		Cookies:            req.Cookies,
		UserAgent:          req.UserAgent,
		Proxy:              proxy,
		WaitMs:             req.WaitMs,
		Actions:            req.Actions,
		Screenshot:         req.Screenshot,
		ScreenshotFullPage: req.ScreenshotFullPage,
		ProfileDir:         req.ProfileDir,
	}

	attempts := f.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.Multiplier = 2
	bo.MaxInterval = 2 * time.Second
	bo.RandomizationFactor = 0

	res, err := backoff.RetryWithData(func() (*Result, error) {
		res, err := eng.Fetch(ctx, ereq)
		if err != nil {
			var pe *models.PeelError
			if errors.As(err, &pe) {
				switch pe.Code {
				case models.ErrCodeAbort, models.ErrCodeValidation, models.ErrCodeActionFailed:
					return nil, backoff.Permanent(err)
				}
			}
			return nil, err
		}
		if res.Status == 429 {
			if res.RetryAfterSecs > 0 && res.RetryAfterSecs <= 30 {
				select {
				case <-time.After(time.Duration(res.RetryAfterSecs) * time.Second):
				case <-ctx.Done():
					return nil, backoff.Permanent(models.NewPeelError(models.ErrCodeAbort, "request canceled", ctx.Err()))
				}
			}
			return nil, models.NewHTTPError(429, "rate limited by upstream")
		}
		if res.Status >= 500 {
			return nil, models.NewHTTPError(res.Status, fmt.Sprintf("upstream returned %d", res.Status))
		}
		return res, nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))

	if err != nil {
		return nil, f.classifyError(ctx, err), err
	}
	return f.evaluate(res, state)
}

// classifyError maps a post-retry error to a ladder verdict.
func (f *Fetcher) classifyError(ctx context.Context, err error) verdict {
	if ctx.Err() == context.Canceled {
		return verdictAbort
	}
	var pe *models.PeelError
	if errors.As(err, &pe) {
		switch pe.Code {
		case models.ErrCodeAbort:
			return verdictAbort
		case models.ErrCodeValidation:
			// Bad proxy URL; the next proxy may be fine.
			return verdictBlocked
		case models.ErrCodeActionFailed:
			return verdictFatal
		case models.ErrCodeHTTP:
			// Only 5xx and 429 survive the retry loop as errors.
			return verdictEscalate
		}
	}
	return verdictEscalate
}

// evaluate judges a completed response: real content, a challenge
// page, a suspect shell, or a terminal upstream error.
func (f *Fetcher) evaluate(res *Result, state rung) (*Result, verdict, error) {
	if !isHTMLContentType(res.ContentType) {
		if res.Status >= 400 {
			return nil, verdictFatal, models.NewHTTPError(res.Status, fmt.Sprintf("upstream returned %d", res.Status))
		}
		return res, verdictOK, nil
	}

	html := string(res.Body)
	det := challenge.Detect(html, res.Status)
	if det.IsChallenge {
		if det.Type == challenge.TypeEmptyShell {
			// JS-only shell: rendering it is the fix, proxies are not.
			// The shell body travels up so the winning rung can be
			// compared against it.
			return res, verdictEscalate,
				models.NewBlockedError(fmt.Sprintf("empty shell (confidence %.2f)", det.Confidence), true)
		}
		return nil, verdictBlocked,
			models.NewBlockedError(fmt.Sprintf("%s challenge (confidence %.2f)", det.Type, det.Confidence), true)
	}

	if res.Status >= 400 {
		return nil, verdictFatal, models.NewHTTPError(res.Status, fmt.Sprintf("upstream returned %d", res.Status))
	}

	if len(html) < f.cfg.MinHTMLBytes && state < rungStealth {
		return nil, verdictEscalate,
			models.NewBlockedError(fmt.Sprintf("html body of %d bytes below minimum", len(html)), true)
	}

	return res, verdictOK, nil
}

func (f *Fetcher) outcome(res *Result, method string, attempted []string, start time.Time) *models.FetchOutcome {
	out := &models.FetchOutcome{
		FinalURL:            res.FinalURL,
		Status:              res.Status,
		ContentType:         res.ContentType,
		ElapsedMs:           time.Since(start).Milliseconds(),
		Method:              method,
		Screenshot:          res.Screenshot,
		AttemptedStrategies: attempted,
	}
	if isTextualContentType(res.ContentType) {
		out.HTMLBody = string(res.Body)
	} else {
		out.BinaryBody = res.Body
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Hostname()
}
