package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

const goodHTML = `<html><head><title>Article</title></head><body><article>` +
	`<h1>Article</h1><p>Plenty of real readable text in here, enough to pass ` +
	`the minimum body size check without any trouble at all.</p>` +
	`</article></body></html>`

const cloudflareHTML = `<html><head><title>Just a moment...</title></head>` +
	`<body><div id="cf-browser-verification">Checking your browser before accessing.</div></body></html>`

type fakeCall struct {
	res *Result
	err error
}

type fakeEngine struct {
	name  string
	calls []fakeCall
	seen  []*Request
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(_ context.Context, req *Request) (*Result, error) {
	f.seen = append(f.seen, req)
	if len(f.calls) == 0 {
		return nil, models.NewPeelError(models.ErrCodeInternal, "no scripted response", nil)
	}
	call := f.calls[0]
	if len(f.calls) > 1 {
		f.calls = f.calls[1:]
	}
	return call.res, call.err
}

func htmlResult(status int, body string) *Result {
	return &Result{
		Body:        []byte(body),
		Status:      status,
		ContentType: "text/html; charset=utf-8",
		FinalURL:    "https://example.com/page",
	}
}

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		DefaultTimeout:  10 * time.Second,
		MaxTimeout:      30 * time.Second,
		MaxAttempts:     1,
		MinHTMLBytes:    64,
		DomainMemoryTTL: time.Hour,
	}
}

func TestFetch_SimpleSuccess(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(200, goodHTML)}}}
	browserEng := &fakeEngine{name: StrategyBrowser}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, StrategySimple, out.Method)
	assert.Equal(t, []string{StrategySimple}, out.AttemptedStrategies)
	assert.Equal(t, 200, out.Status)
	assert.Contains(t, out.HTMLBody, "real readable text")
	assert.Empty(t, browserEng.seen, "browser rung should not run on simple success")
}

func TestFetch_ChallengeEscalatesToBrowser(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(403, cloudflareHTML)}}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{{res: htmlResult(200, goodHTML)}}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://blocked.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, StrategyBrowser, out.Method)
	assert.Equal(t, []string{StrategySimple, StrategyBrowser}, out.AttemptedStrategies)
}

func TestFetch_404IsFatalWithoutEscalation(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{
		{res: htmlResult(404, "<html><head><title>Not Found</title></head><body>nothing here</body></html>")},
	}}
	browserEng := &fakeEngine{name: StrategyBrowser}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	_, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://example.com/missing"})
	require.Error(t, err)
	var pe *models.PeelError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.ErrCodeHTTP, pe.Code)
	assert.Equal(t, 404, pe.Status)
	assert.Empty(t, browserEng.seen, "4xx must never escalate")
}

func TestFetch_ShortHTMLEscalates(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(200, "<html></html>")}}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{{res: htmlResult(200, goodHTML)}}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://spa.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, StrategyBrowser, out.Method)
}

func TestFetch_RenderForcesBrowserRung(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(200, goodHTML)}}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{{res: htmlResult(200, goodHTML)}}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://example.com/", Render: true})
	require.NoError(t, err)
	assert.Equal(t, StrategyBrowser, out.Method)
	assert.Empty(t, simple.seen)
}

func TestFetch_DomainMemorySkipsLowerRungs(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(403, cloudflareHTML)}}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{
		{res: htmlResult(200, goodHTML)},
		{res: htmlResult(200, goodHTML)},
	}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	req := &models.PeelRequest{URL: "https://sticky.example.com/a"}
	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, simple.seen, 1)

	// Second fetch to the same host starts at the remembered rung.
	_, err = f.Fetch(context.Background(), &models.PeelRequest{URL: "https://sticky.example.com/b"})
	require.NoError(t, err)
	assert.Len(t, simple.seen, 1, "simple rung should be skipped on the second fetch")
	assert.Len(t, browserEng.seen, 2)
}

// spaShell is large markup with no visible text, the shape the
// empty-shell detector flags.
func spaShell() string {
	return `<html><head>` + strings.Repeat(`<script src="/chunk.js"></script>`, 600) +
		`</head><body><div id="root"></div></body></html>`
}

func TestFetch_ShellRenderWithSameDOMDoesNotPinHost(t *testing.T) {
	shell := spaShell()
	// The render fills text into the existing container without adding
	// structure.
	rendered := strings.Replace(shell, `<div id="root"></div>`,
		`<div id="root">`+strings.Repeat("Plenty of rendered words in here. ", 20)+`</div>`, 1)

	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{
		{res: htmlResult(200, shell)},
		{res: htmlResult(200, goodHTML)},
	}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{{res: htmlResult(200, rendered)}}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://shell.example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, StrategyBrowser, out.Method)

	// The next fetch to the host starts back at the simple rung.
	out, err = f.Fetch(context.Background(), &models.PeelRequest{URL: "https://shell.example.com/b"})
	require.NoError(t, err)
	assert.Equal(t, StrategySimple, out.Method)
	assert.Len(t, browserEng.seen, 1)
}

func TestFetch_ShellRenderWithNewDOMPinsBrowser(t *testing.T) {
	rendered := `<html><head><title>App</title></head><body><article><h1>Rendered</h1>` +
		strings.Repeat(`<p>Client-side rendering produced a full article body here.</p>`, 40) +
		`</article></body></html>`

	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: htmlResult(200, spaShell())}}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{
		{res: htmlResult(200, rendered)},
		{res: htmlResult(200, rendered)},
	}}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	_, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://app.example.com/a"})
	require.NoError(t, err)

	// The host is remembered, so the simple rung is skipped next time.
	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://app.example.com/b"})
	require.NoError(t, err)
	assert.Equal(t, StrategyBrowser, out.Method)
	assert.Len(t, simple.seen, 1)
	assert.Len(t, browserEng.seen, 2)
}

func TestFetch_ProxyChainAdvancesOnBlock(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{
		{res: htmlResult(403, cloudflareHTML)},
		{res: htmlResult(200, goodHTML)},
	}}
	f := New(testConfig(), simple, nil, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{
		URL:     "https://example.com/",
		Proxies: []string{"http://proxy1:8080", "http://proxy2:8080"},
	})
	require.NoError(t, err)
	assert.Equal(t, StrategySimple, out.Method)
	require.Len(t, simple.seen, 2)
	assert.Equal(t, "http://proxy1:8080", simple.seen[0].Proxy)
	assert.Equal(t, "http://proxy2:8080", simple.seen[1].Proxy)
}

func TestFetch_AbortPropagatesWithoutEscalation(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{
		{err: models.NewPeelError(models.ErrCodeAbort, "request canceled", context.Canceled)},
	}}
	browserEng := &fakeEngine{name: StrategyBrowser}
	f := New(testConfig(), simple, browserEng, nil)
	defer f.Close()

	_, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://example.com/"})
	require.Error(t, err)
	var pe *models.PeelError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.ErrCodeAbort, pe.Code)
	assert.Empty(t, browserEng.seen)
}

func TestFetch_AllRungsExhaustedReturnsLastError(t *testing.T) {
	blocked := fakeCall{res: htmlResult(403, cloudflareHTML)}
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{blocked}}
	browserEng := &fakeEngine{name: StrategyBrowser, calls: []fakeCall{blocked}}
	stealthEng := &fakeEngine{name: StrategyStealth, calls: []fakeCall{blocked}}
	f := New(testConfig(), simple, browserEng, stealthEng)
	defer f.Close()

	_, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://fortress.example.com/"})
	require.Error(t, err)
	var pe *models.PeelError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.ErrCodeBlocked, pe.Code)
	assert.True(t, pe.Retryable)
}

func TestFetch_BinaryBodyForNonHTML(t *testing.T) {
	simple := &fakeEngine{name: StrategySimple, calls: []fakeCall{{res: &Result{
		Body:        []byte("%PDF-1.7 ..."),
		Status:      200,
		ContentType: "application/pdf",
		FinalURL:    "https://example.com/doc.pdf",
	}}}}
	f := New(testConfig(), simple, nil, nil)
	defer f.Close()

	out, err := f.Fetch(context.Background(), &models.PeelRequest{URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)
	assert.Empty(t, out.HTMLBody)
	assert.Equal(t, []byte("%PDF-1.7 ..."), out.BinaryBody)
}

func TestIsTextualContentType(t *testing.T) {
	assert.True(t, isTextualContentType("text/html; charset=utf-8"))
	assert.True(t, isTextualContentType("application/json"))
	assert.True(t, isTextualContentType("application/rss+xml"))
	assert.True(t, isTextualContentType("application/javascript"))
	assert.False(t, isTextualContentType("application/pdf"))
	assert.False(t, isTextualContentType("image/png"))
}

func TestDomainMemory_Expiry(t *testing.T) {
	dm := NewDomainMemory(10 * time.Millisecond)
	defer dm.Stop()

	dm.Set("example.com", StrategyStealth)
	assert.Equal(t, StrategyStealth, dm.Get("example.com"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dm.Get("example.com"))
}
