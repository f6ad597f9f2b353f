package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/webpeel/webpeel/models"
)

// extractJSON pretty-prints a JSON body and lifts embedded URLs out as
// links. A JSON document is already structured, so quality is 1.0.
func extractJSON(body string) (*models.PeelResult, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return nil, models.NewPeelError(models.ErrCodeParse, "malformed JSON body", err)
	}
	return &models.PeelResult{
		Content:     buf.String(),
		ContentType: models.ContentTypeJSON,
		Links:       extractURLs(body),
		Quality:     1.0,
	}, nil
}

// feedSummaryLen bounds the per-item description in feed output.
const feedSummaryLen = 200

// extractFeed renders an RSS/Atom feed as markdown: the feed title as
// a top heading, each item as a level-2 section with link and a short
// summary.
func extractFeed(body string) (*models.PeelResult, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeParse, "failed to parse feed", err)
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", feed.Title)
	}
	if feed.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", feed.Description)
	}

	var links []string
	for _, item := range feed.Items {
		fmt.Fprintf(&b, "## %s\n\n", item.Title)
		if item.Link != "" {
			fmt.Fprintf(&b, "%s\n\n", item.Link)
			links = append(links, item.Link)
		}
		if summary := feedItemSummary(item); summary != "" {
			fmt.Fprintf(&b, "%s\n\n", summary)
		}
		if item.PublishedParsed != nil {
			fmt.Fprintf(&b, "Published: %s\n\n", item.PublishedParsed.Format("2006-01-02"))
		}
	}

	sort.Strings(links)
	return &models.PeelResult{
		Title:       feed.Title,
		Content:     strings.TrimSpace(b.String()) + "\n",
		ContentType: models.ContentTypeXML,
		Metadata: models.Metadata{
			Title:       feed.Title,
			Description: feed.Description,
			Extra:       map[string]any{"itemCount": len(feed.Items)},
		},
		Links:   dedupe(links),
		Quality: 0.9,
	}, nil
}

// feedItemSummary picks the first non-empty of description, summary
// (custom), or content, stripped of tags and clipped.
func feedItemSummary(item *gofeed.Item) string {
	text := item.Description
	if text == "" {
		text = item.Content
	}
	text = strings.TrimSpace(stripTags(text))
	if len(text) > feedSummaryLen {
		text = text[:feedSummaryLen]
	}
	return text
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

// extractText passes the body through unchanged and regex-harvests
// embedded URLs.
func extractText(body string) *models.PeelResult {
	quality := 0.5
	if strings.TrimSpace(body) != "" {
		quality = 0.8
	}
	return &models.PeelResult{
		Content:     body,
		ContentType: models.ContentTypeText,
		Links:       extractURLs(body),
		Quality:     quality,
	}
}

var urlRe = regexp.MustCompile(`https?://[^\s"'<>\\)\]}]+`)

// extractURLs collects the http(s) URLs embedded in text, deduped and
// sorted.
func extractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:")
	}
	sort.Strings(matches)
	return dedupe(matches)
}

func dedupe(sorted []string) []string {
	var out []string
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
