package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/webpeel/webpeel/models"
)

// maxBodyBytes caps how much of any response we read.
const maxBodyBytes = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init and reused per connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// h2 over a utls connection breaks Go's http.Transport, so the
	// ALPN extension advertises http/1.1 only.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// userAgents rotate across attempts so repeated fetches to one host do
// not present an identical client.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
}

// DialContextFunc matches net.Dialer.DialContext; the DNS pre-resolver
// plugs in here.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// HTTPEngine is the simple rung: a direct GET with a Chrome TLS
// fingerprint and browser-like headers. The fastest option for pages
// that do not need JavaScript.
type HTTPEngine struct {
	client  *http.Client
	uaIndex atomic.Uint32

	// Per-proxy clients use the standard TLS stack: a CONNECT tunnel
	// through the utls dialer is not worth the complexity when the
	// proxy already changes the network fingerprint.
	mu           sync.Mutex
	proxyClients map[string]*http.Client
}

// NewHTTPEngine builds the simple-rung engine. dial may be nil, in
// which case a plain net.Dialer is used.
func NewHTTPEngine(dial DialContextFunc) *HTTPEngine {
	if dial == nil {
		d := &net.Dialer{Timeout: 10 * time.Second}
		dial = d.DialContext
	}
	transport := &http.Transport{
		DialContext: dial,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &HTTPEngine{
		client:       &http.Client{Transport: transport, CheckRedirect: checkRedirect},
		proxyClients: make(map[string]*http.Client),
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("too many redirects")
	}
	return nil
}

func (e *HTTPEngine) Name() string { return StrategySimple }

func (e *HTTPEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeNetwork, "building request", err)
	}

	ua := req.UserAgent
	if ua == "" {
		ua = userAgents[int(e.uaIndex.Add(1))%len(userAgents)]
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// identity keeps body sizes honest against the read cap.
	httpReq.Header.Set("Accept-Encoding", "identity")

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for i := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{
			Name:   req.Cookies[i].Name,
			Value:  req.Cookies[i].Value,
			Domain: req.Cookies[i].Domain,
			Path:   req.Cookies[i].Path,
		})
	}

	client, err := e.clientFor(req.Proxy)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, categorize(ctx, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, categorize(ctx, err, "reading body")
	}

	res := &Result{
		Body:        body,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			res.RetryAfterSecs = secs
		}
	}
	return res, nil
}

// clientFor returns the shared direct client or a cached per-proxy one.
func (e *HTTPEngine) clientFor(proxy string) (*http.Client, error) {
	if proxy == "" {
		return e.client, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.proxyClients[proxy]; ok {
		return c, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeValidation, "invalid proxy url", err)
	}
	c := &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			ForceAttemptHTTP2: false,
		},
		CheckRedirect: checkRedirect,
	}
	e.proxyClients[proxy] = c
	return c, nil
}

// categorize maps transport errors onto the error taxonomy, preferring
// the context's own verdict when it expired.
func categorize(ctx context.Context, err error, msg string) *models.PeelError {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return models.NewPeelError(models.ErrCodeTimeout, msg, err)
	case context.Canceled:
		return models.NewPeelError(models.ErrCodeAbort, "request canceled", err)
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return models.NewPeelError(models.ErrCodeTimeout, msg, err)
	}
	pe := models.NewPeelError(models.ErrCodeNetwork, msg, err)
	pe.Retryable = true
	return pe
}
