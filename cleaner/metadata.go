package cleaner

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webpeel/webpeel/models"
)

// ExtractMetadata pulls page-level metadata out of the raw HTML,
// preferring og:/twitter: meta tags, then JSON-LD, then visible
// markup. textContent is the extracted article text used for word
// count, reading time, and the excerpt.
func ExtractMetadata(rawHTML, textContent string) models.Metadata {
	var meta models.Metadata

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err == nil {
		fillFromMeta(doc, &meta)
		fillFromJSONLD(doc, &meta)
		fillFromMarkup(doc, &meta)
	}

	words := strings.Fields(textContent)
	meta.WordCount = len(words)
	if meta.WordCount > 0 {
		minutes := int(math.Round(float64(meta.WordCount) / 200))
		if minutes < 1 {
			minutes = 1
		}
		meta.ReadingTime = fmt.Sprintf("%d min read", minutes)
	}
	meta.Excerpt = firstSentences(textContent, 2)

	return meta
}

func fillFromMeta(doc *goquery.Document, meta *models.Metadata) {
	metaContent := func(sel string) string {
		v, _ := doc.Find(sel).First().Attr("content")
		return strings.TrimSpace(v)
	}

	meta.Title = firstNonEmpty(
		metaContent(`meta[property="og:title"]`),
		metaContent(`meta[name="twitter:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	meta.Description = firstNonEmpty(
		metaContent(`meta[property="og:description"]`),
		metaContent(`meta[name="twitter:description"]`),
		metaContent(`meta[name="description"]`),
	)
	meta.Image = firstNonEmpty(
		metaContent(`meta[property="og:image"]`),
		metaContent(`meta[name="twitter:image"]`),
	)
	meta.SiteName = metaContent(`meta[property="og:site_name"]`)
	meta.Author = firstNonEmpty(
		metaContent(`meta[name="author"]`),
		metaContent(`meta[property="article:author"]`),
	)
	meta.Published = metaContent(`meta[property="article:published_time"]`)

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = strings.TrimSpace(href)
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}
}

// fillFromJSONLD fills gaps from Article-like JSON-LD entities.
func fillFromJSONLD(doc *goquery.Document, meta *models.Metadata) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		for _, ent := range flattenEntities(raw) {
			if meta.Title == "" {
				meta.Title = firstNonEmpty(jsonStr(ent, "headline"), jsonStr(ent, "name"))
			}
			if meta.Author == "" {
				meta.Author = nestedName(ent["author"])
			}
			if meta.Published == "" {
				meta.Published = jsonStr(ent, "datePublished")
			}
			if meta.Description == "" {
				meta.Description = jsonStr(ent, "description")
			}
		}
		return meta.Title == "" || meta.Author == "" || meta.Published == ""
	})
}

var bylineRe = regexp.MustCompile(`(?i)^\s*by\s+([A-Z][\w.'-]+(?:\s+[A-Z][\w.'-]+){0,3})\s*$`)

// fillFromMarkup scrapes visible bylines and <time datetime> as a last
// resort.
func fillFromMarkup(doc *goquery.Document, meta *models.Metadata) {
	if meta.Author == "" {
		doc.Find(`[class*="byline"],[class*="author"],[rel="author"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if m := bylineRe.FindStringSubmatch(text); m != nil {
				meta.Author = m[1]
				return false
			}
			if text != "" && len(text) < 60 && !strings.Contains(text, "\n") {
				meta.Author = strings.TrimPrefix(text, "By ")
				return false
			}
			return true
		})
	}
	if meta.Published == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			meta.Published = strings.TrimSpace(dt)
		}
	}
}

// ExtractLinks returns the absolute http(s) link targets of the page,
// deduped and sorted.
func ExtractLinks(rawHTML, sourceURL string) []string {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		seen[resolved.String()] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}

// ExtractImages returns the page's images with absolute URLs; data:
// URIs are skipped.
func ExtractImages(rawHTML, sourceURL string) []models.Image {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var images []models.Image
	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		resolved, err := base.Parse(src)
		if err != nil || resolved.Scheme == "data" {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		alt, _ := s.Attr("alt")
		images = append(images, models.Image{Src: abs, Alt: strings.TrimSpace(alt)})
	})
	return images
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// firstSentences returns the first n complete sentences of text.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x01")
	parts := strings.SplitN(marked, "\x01", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	out := strings.TrimSpace(strings.Join(parts, " "))
	// Guard against meta descriptions masquerading as sentences.
	if len(out) > 500 {
		out = out[:500]
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
