// Package challenge scores HTML responses for anti-bot challenge pages.
package challenge

import (
	"regexp"
	"strings"
)

// Challenge types, named after the vendor whose detector scored highest.
const (
	TypeCloudflare   = "cloudflare"
	TypePerimeterX   = "perimeterx"
	TypeAkamai       = "akamai"
	TypeDataDome     = "datadome"
	TypeIncapsula    = "incapsula"
	TypeGenericBlock = "generic-block"
	TypeEmptyShell   = "empty-shell"
)

// decisionThreshold is the minimum winning score to declare a challenge.
const decisionThreshold = 0.7

// Result is the outcome of challenge detection on one response.
type Result struct {
	IsChallenge bool    `json:"isChallenge"`
	Type        string  `json:"type,omitempty"`
	Confidence  float64 `json:"confidence"`
	Details     string  `json:"details,omitempty"`
}

// signature is one additive scoring rule for a vendor detector.
type signature struct {
	pattern string
	weight  float64
	detail  string
}

var vendorSignatures = map[string][]signature{
	TypeCloudflare: {
		{"cf-browser-verification", 0.5, "cf-browser-verification marker"},
		{"cf-challenge", 0.4, "cf-challenge marker"},
		{"cdn-cgi/", 0.3, "cdn-cgi path"},
		{"ray id", 0.3, "Ray ID footer"},
		{"cloudflare", 0.2, "vendor name in body"},
		{"checking your browser", 0.4, "interstitial copy"},
		{"turnstile", 0.4, "turnstile widget"},
	},
	TypePerimeterX: {
		{"_pxappid", 0.5, "_pxAppId variable"},
		{"px-captcha", 0.5, "px-captcha container"},
		{"perimeterx", 0.4, "vendor name in body"},
		{"press & hold", 0.4, "press-and-hold prompt"},
		{"px-cdn.net", 0.4, "px-cdn script host"},
	},
	TypeAkamai: {
		{"ak-challenge", 0.5, "ak-challenge marker"},
		{"akamai", 0.3, "vendor name in body"},
		{"_abck", 0.4, "_abck sensor cookie"},
		{"bm-verify", 0.4, "bm-verify token"},
		{"sec-cpt-", 0.3, "sec-cpt challenge id"},
	},
	TypeDataDome: {
		{"datadome", 0.5, "vendor name in body"},
		{"dd_cookie", 0.4, "dd_cookie marker"},
		{"geo.captcha-delivery.com", 0.5, "captcha-delivery frame"},
		{"interstitial", 0.2, "interstitial marker"},
	},
	TypeIncapsula: {
		{"incapsula", 0.5, "vendor name in body"},
		{"_incapsula_resource", 0.5, "incapsula resource path"},
		{"visid_incap", 0.4, "visid_incap cookie"},
		{"imperva", 0.4, "imperva marker"},
	},
	TypeGenericBlock: {
		{"access denied", 0.4, "access denied copy"},
		{"you have been blocked", 0.5, "blocked copy"},
		{"unusual traffic", 0.4, "unusual traffic copy"},
		{"verify you are a human", 0.4, "human verification copy"},
		{"enable javascript and cookies", 0.3, "js+cookies demand"},
		{"captcha", 0.3, "captcha mention"},
		{"bot detected", 0.5, "bot detected copy"},
	},
}

var challengeTitles = []signature{
	{"just a moment", 0.5, "'Just a moment' title"},
	{"attention required", 0.4, "'Attention Required' title"},
	{"access denied", 0.4, "'Access denied' title"},
	{"security check", 0.4, "'Security check' title"},
	{"one more step", 0.4, "'One more step' title"},
}

// titleVendor attributes the generic title signal to a vendor when the
// body carries that vendor's markers; otherwise it counts as generic.
var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)
var scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)

// Detect scores html against all vendor detectors and returns the winner.
// A challenge is declared iff the max score reaches 0.7.
func Detect(html string, statusCode int) Result {
	lower := strings.ToLower(html)
	title := extractTitle(lower)
	visible := visibleTextLength(lower)

	// 404 pages are never challenges, however short.
	if statusCode == 404 && strings.Contains(title, "not found") {
		return Result{}
	}

	// A long article that merely mentions "CAPTCHA" is not a challenge:
	// substantial visible text suppresses every vendor detector except
	// empty-shell (which by construction requires the opposite).
	suppressed := visible > 1500 || (visible > 600 && len(html) > 5000)

	blockingStatus := statusCode == 403 || statusCode == 429 || statusCode == 503

	bestType := ""
	bestScore := 0.0
	bestDetails := []string{}

	for vendor, sigs := range vendorSignatures {
		if suppressed {
			continue
		}
		score := 0.0
		var details []string
		for _, sig := range sigs {
			if strings.Contains(lower, sig.pattern) {
				score += sig.weight
				details = append(details, sig.detail)
			}
		}
		for _, sig := range challengeTitles {
			if strings.Contains(title, sig.pattern) {
				score += sig.weight
				details = append(details, sig.detail)
				break
			}
		}
		// Blocking status plus a small body is the classic interstitial
		// shape for every vendor.
		if blockingStatus && len(html) < 4096 && score > 0 {
			score += 0.3
			details = append(details, "blocking status with small body")
		}
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			bestScore = score
			bestType = vendor
			bestDetails = details
		}
	}

	// Empty-shell detector: huge HTML, almost no visible text. Runs even
	// under suppression since suppression requires visible text.
	if shellScore := emptyShellScore(len(html), visible); shellScore > bestScore {
		bestScore = shellScore
		bestType = TypeEmptyShell
		bestDetails = []string{"large markup with near-empty visible text"}
	}

	if bestScore < decisionThreshold {
		return Result{Confidence: bestScore}
	}
	return Result{
		IsChallenge: true,
		Type:        bestType,
		Confidence:  bestScore,
		Details:     strings.Join(bestDetails, "; "),
	}
}

// emptyShellScore grades the SPA-shell shape: the bigger the markup and
// the smaller the visible text, the higher the score.
func emptyShellScore(htmlLen, visibleLen int) float64 {
	if htmlLen < 10_000 || visibleLen > 200 {
		return 0
	}
	score := 0.5
	if visibleLen < 50 {
		score += 0.3
	}
	if htmlLen > 50_000 {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func extractTitle(lowerHTML string) string {
	m := titleRe.FindStringSubmatch(lowerHTML)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// visibleTextLength approximates the visible character count by
// stripping script/style blocks and all tags.
func visibleTextLength(html string) int {
	stripped := scriptStyleRe.ReplaceAllString(html, " ")
	stripped = tagRe.ReplaceAllString(stripped, " ")
	return len(strings.Join(strings.Fields(stripped), " "))
}
