package models

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength is the longest URL the service accepts.
const MaxURLLength = 2048

// PeelRequest is the payload for POST /v1/fetch. It is immutable once
// validated; handlers and the pipeline never mutate it after Defaults().
type PeelRequest struct {
	// URL is the target page. Required, absolute http/https.
	URL string `json:"url" binding:"required"`

	// Format controls the content representation.
	// Allowed: "markdown" (default), "text", "html".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=markdown text html"`

	// Render forces the browser rung even when a simple fetch would do.
	Render bool `json:"render,omitempty"`

	// Stealth forces the stealth-browser rung.
	Stealth bool `json:"stealth,omitempty"`

	// WaitMs is an extra settle delay after page load, in milliseconds.
	// Bounds: [0, 60000].
	WaitMs int `json:"waitMs,omitempty" binding:"omitempty,min=0,max=60000"`

	// TimeoutMs bounds the fetch stage. Default: 30000. Max: 120000.
	TimeoutMs int `json:"timeoutMs,omitempty" binding:"omitempty,min=1,max=120000"`

	// UserAgent overrides the rotating default.
	UserAgent string `json:"userAgent,omitempty"`

	// Headers are extra request headers applied on every rung.
	Headers map[string]string `json:"headers,omitempty"`

	// Cookies are applied on every rung.
	Cookies []Cookie `json:"cookies,omitempty"`

	// Selector reduces the DOM to matching elements before conversion.
	Selector string `json:"selector,omitempty"`

	// Exclude removes matching elements before conversion.
	Exclude []string `json:"exclude,omitempty"`

	// IncludeTags / ExcludeTags filter by tag name before Selector applies.
	IncludeTags []string `json:"includeTags,omitempty"`
	ExcludeTags []string `json:"excludeTags,omitempty"`

	// Screenshot captures the viewport; ScreenshotFullPage the whole page.
	// Both imply the browser rung.
	Screenshot         bool `json:"screenshot,omitempty"`
	ScreenshotFullPage bool `json:"screenshotFullPage,omitempty"`

	// Actions is an ordered page-interaction script, run on the rendered
	// page before extraction. Implies the browser rung.
	Actions []Action `json:"actions,omitempty"`

	// Question enables BM25 filtering and the quick-answer extractor.
	Question string `json:"question,omitempty"`

	// MaxTokens hard-truncates the content to a rough token count.
	MaxTokens int `json:"maxTokens,omitempty" binding:"omitempty,min=1"`

	// Budget enables the smart distiller targeting this token count.
	Budget int `json:"budget,omitempty" binding:"omitempty,min=1"`

	// Extract configures declarative extraction (CSS or LLM prompt+schema).
	Extract *ExtractConfig `json:"extract,omitempty"`

	// AgentMode applies LLM-oriented defaults (markdown, main content,
	// citations off, links on).
	AgentMode bool `json:"agentMode,omitempty"`

	// ProfileDir is a persistent browser profile path. Exclusively owned
	// by one in-flight request at a time.
	ProfileDir string `json:"profileDir,omitempty"`

	// Proxies is an ordered proxy list tried per rung before escalating.
	Proxies []string `json:"proxies,omitempty"`

	// NoCache bypasses the result cache for both read and write.
	NoCache bool `json:"noCache,omitempty"`

	// Citations converts inline markdown links to reference style.
	Citations bool `json:"citations,omitempty"`
}

// Cookie is a request cookie applied on every fetch rung.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ExtractConfig selects one of two declarative extraction modes:
// CSS selector→field mapping, or an LLM prompt with a JSON schema.
type ExtractConfig struct {
	// Selectors maps output field names to CSS selectors.
	Selectors map[string]string `json:"selectors,omitempty"`

	// Prompt and Schema drive LLM-based extraction (BYOK).
	Prompt string         `json:"prompt,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`

	// APIKey, Model, BaseURL configure the OpenAI-compatible provider.
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *PeelRequest) Defaults() {
	if r.Format == "" {
		r.Format = "markdown"
	}
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 30000
	}
	if r.AgentMode {
		if r.MaxTokens == 0 && r.Budget == 0 {
			r.Budget = 4096
		}
	}
}

// Validate enforces the URL and option bounds that gin's binding tags
// cannot express. Returns a *PeelError with code ErrCodeValidation.
func (r *PeelRequest) Validate() error {
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	for k := range r.Headers {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " \t\r\n:") {
			return NewPeelError(ErrCodeValidation, fmt.Sprintf("invalid header name %q", k), nil)
		}
	}
	if r.WaitMs < 0 || r.WaitMs > 60000 {
		return NewPeelError(ErrCodeValidation, "waitMs must be within [0, 60000]", nil)
	}
	for i := range r.Actions {
		if err := r.Actions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL, at most
// MaxURLLength bytes, with no ASCII control characters.
func ValidateURL(raw string) error {
	if raw == "" {
		return NewPeelError(ErrCodeValidation, "url is required", nil)
	}
	if len(raw) > MaxURLLength {
		return NewPeelError(ErrCodeValidation,
			fmt.Sprintf("url exceeds %d characters", MaxURLLength), nil)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x20 || raw[i] == 0x7F {
			return NewPeelError(ErrCodeValidation, "url contains control characters", nil)
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewPeelError(ErrCodeValidation, "url does not parse", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewPeelError(ErrCodeValidation, "url scheme must be http or https", nil)
	}
	if u.Host == "" {
		return NewPeelError(ErrCodeValidation, "url has no host", nil)
	}
	return nil
}

// NormalizeURL produces the canonical form used for cache keys and
// dedup: lowercased scheme and host, default port stripped, fragment
// dropped, trailing slash on a bare path removed.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndexByte(u.Host, ':')]
	}
	u.Fragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	return u.String()
}
