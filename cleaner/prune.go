package cleaner

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Pass-1 removal: tags that are always chrome.
var chromeTags = []string{
	"nav", "footer", "aside", "header", "script", "style", "iframe",
	"form", "noscript", "template",
}

// Class/id substrings that mark boilerplate. Matched case-insensitively
// against class + id combined.
var chromeClassIDPatterns = []string{
	"sidebar", "cookie", "banner", "popup", "social", "share",
	"breadcrumb", "newsletter", "signup", "related", "comments", "toc",
	"consent", "gdpr", "vote", "post-menu", "share-button", "edit-link",
	"toast", "snackbar", "back-to-top", "advert", "promo", "paywall",
}

// Class/id substrings that protect an element from pass-1 removal even
// when a chrome pattern also matches.
var contentClassIDPatterns = []string{
	"article", "post-content", "entry-content", "story", "prose",
	"markdown-body", "main-content",
}

// Tags never removed by density pruning regardless of score.
var densitySafeTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "pre": true, "code": true, "blockquote": true,
	"table": true, "thead": true, "tbody": true, "tr": true,
	"td": true, "th": true, "ul": true, "ol": true, "li": true,
}

// Density-score weights. The sum of the weights is 1 so a perfect block
// scores 1.0.
const (
	wTextDensity = 0.35
	wLinkDensity = 0.25
	wTagWeight   = 0.20
	wWordBonus   = 0.10
	wBaseline    = 0.10
)

// minCandidateText is the least visible text a candidate container must
// hold to be selected in pass 2.
const minCandidateText = 100

// PruneResult is the output of the two-pass prune engine.
type PruneResult struct {
	// HTML is the outer HTML of the winning content container.
	HTML string
	// Score is the winning candidate's density score in [0, ~1].
	Score float64
}

// Prune removes chrome from rawHTML and returns the best content
// container. Pass 1 strips nodes that are structurally boilerplate;
// pass 2 scores the remaining block candidates by text density and
// picks the winner, preferring semantic containers.
func Prune(rawHTML string) (PruneResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return PruneResult{HTML: rawHTML}, err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return PruneResult{HTML: rawHTML}, nil
	}

	removeChrome(body)

	if cand := pickCandidate(body); cand != nil {
		if html, err := goquery.OuterHtml(cand.sel); err == nil {
			return PruneResult{HTML: html, Score: cand.score}, nil
		}
	}

	html, err := body.Html()
	if err != nil {
		return PruneResult{HTML: rawHTML}, nil
	}
	return PruneResult{HTML: html}, nil
}

// removeChrome is pass 1. It never lets removals take the body below
// 40% of its pre-pass text, and it never touches density-safe tags or
// elements carrying a content class.
func removeChrome(body *goquery.Selection) {
	totalText := len(strings.TrimSpace(body.Text()))
	floor := totalText * 40 / 100
	remaining := totalText

	var doomed []*goquery.Selection
	mark := func(s *goquery.Selection) {
		textLen := len(strings.TrimSpace(s.Text()))
		if remaining-textLen < floor {
			return
		}
		remaining -= textLen
		doomed = append(doomed, s)
	}

	for _, tag := range chromeTags {
		body.Find(tag).Each(func(_ int, s *goquery.Selection) {
			mark(s)
		})
	}

	body.Find("[class],[id]").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if densitySafeTags[tag] {
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		combined := strings.ToLower(class + " " + id)
		for _, keep := range contentClassIDPatterns {
			if strings.Contains(combined, keep) {
				return
			}
		}
		for _, pat := range chromeClassIDPatterns {
			if strings.Contains(combined, pat) {
				mark(s)
				return
			}
		}
	})

	// Hidden elements carry no visible text, so the floor never blocks
	// their removal.
	body.Find(`[hidden],[aria-hidden="true"]`).Each(func(_ int, s *goquery.Selection) {
		doomed = append(doomed, s)
	})
	body.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
			doomed = append(doomed, s)
		}
	})

	for _, s := range doomed {
		s.Remove()
	}
}

type candidate struct {
	sel   *goquery.Selection
	score float64
	// rank encodes the container preference: article > main >
	// [role=main] > scored div/section.
	rank int
}

// pickCandidate is pass 2: score candidate containers and return the
// best one, or nil when nothing qualifies.
func pickCandidate(body *goquery.Selection) *candidate {
	var best *candidate

	consider := func(s *goquery.Selection, rank int) {
		text := strings.TrimSpace(s.Text())
		if len(text) < minCandidateText || s.Find("p").Length() < 1 {
			return
		}
		c := &candidate{sel: s, score: scoreBlock(s), rank: rank}
		if best == nil || c.rank < best.rank ||
			(c.rank == best.rank && c.score > best.score) {
			best = c
		}
	}

	body.Find("article").Each(func(_ int, s *goquery.Selection) { consider(s, 0) })
	body.Find("main").Each(func(_ int, s *goquery.Selection) { consider(s, 1) })
	body.Find(`[role="main"]`).Each(func(_ int, s *goquery.Selection) { consider(s, 2) })
	body.Find("div,section").Each(func(_ int, s *goquery.Selection) { consider(s, 3) })

	return best
}

// scoreBlock computes the weighted density score of a block.
func scoreBlock(s *goquery.Selection) float64 {
	outer, err := goquery.OuterHtml(s)
	if err != nil {
		return 0
	}
	text := strings.TrimSpace(s.Text())
	textLen := len(text)
	if textLen == 0 {
		return 0
	}

	textDensity := float64(textLen) / float64(len(outer))

	linkTextLen := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := float64(linkTextLen) / float64(textLen)
	if linkDensity > 1 {
		linkDensity = 1
	}

	words := len(strings.Fields(text))
	// Log bonus saturates at ~1000 words.
	wordBonus := math.Log10(float64(words)+1) / 3
	if wordBonus > 1 {
		wordBonus = 1
	}

	return wTextDensity*textDensity +
		wLinkDensity*(1-linkDensity) +
		wTagWeight*tagImportance(s) +
		wWordBonus*wordBonus +
		wBaseline
}

// tagImportance maps the element's tag to a normalised importance in
// [0, 1]: content tags high, generic containers middle, chrome low.
func tagImportance(s *goquery.Selection) float64 {
	switch goquery.NodeName(s) {
	case "article", "main":
		return 1.0
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "section":
		return 0.8
	case "div", "span":
		return 0.5
	case "aside", "header", "footer", "nav":
		return 0.0
	default:
		return 0.5
	}
}
