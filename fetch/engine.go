// Package fetch implements the escalation fetcher: a ladder of
// strategies (simple HTTP, headless browser, stealth browser) that
// returns the cheapest FetchOutcome containing real content.
package fetch

import (
	"context"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// Strategy names, also used as FetchOutcome.Method values.
const (
	StrategySimple  = "simple"
	StrategyBrowser = "browser"
	StrategyStealth = "stealth"
)

// Request carries per-attempt fetch parameters down to an engine.
type Request struct {
	URL       string
	Headers   map[string]string
	Cookies   []models.Cookie
	UserAgent string

	// Proxy is the proxy URL for this attempt, empty for direct.
	Proxy string

	// Browser-rung options; the HTTP engine ignores them.
	WaitMs             int
	Actions            []models.Action
	Screenshot         bool
	ScreenshotFullPage bool
	ProfileDir         string
}

// Result is one engine's raw response. Status and body are returned
// even for 4xx/5xx so the ladder can run challenge detection on them.
type Result struct {
	Body        []byte
	Status      int
	ContentType string
	FinalURL    string
	Screenshot  []byte

	// RetryAfterSecs carries a parsed Retry-After header on 429s.
	RetryAfterSecs int
}

// Engine is one rung of the ladder.
type Engine interface {
	Name() string
	Fetch(ctx context.Context, req *Request) (*Result, error)
}

// isHTMLContentType reports whether the content type is HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// isTextualContentType reports whether the body should travel as text
// in the FetchOutcome rather than as bytes.
func isTextualContentType(ct string) bool {
	ct = strings.ToLower(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.Contains(ct, "json"), strings.Contains(ct, "xml"):
		return true
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "ecmascript"):
		return true
	}
	return false
}
