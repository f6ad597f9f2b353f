// Package cleaner turns raw page HTML into clean, LLM-ready content.
//
// The pipeline has two stages: content isolation (JSON-LD first-class
// extraction, else density pruning with a readability fallback) and
// format conversion (markdown, text, or cleaned HTML).
package cleaner

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/webpeel/webpeel/models"
)

// Cleaner orchestrates the extraction pipeline. The markdown converter
// is created once and reused across requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured converter.
func NewCleaner() *Cleaner {
	return &Cleaner{mdConverter: newMarkdownConverter()}
}

// Options carries the per-request knobs of the cleaning pipeline.
type Options struct {
	// Format is markdown (default), text, or html.
	Format string
	// Selector reduces the DOM to matching elements before conversion.
	Selector string
	// Exclude removes matching elements before conversion.
	Exclude []string
	// IncludeTags / ExcludeTags filter by tag selector ahead of
	// Selector application.
	IncludeTags []string
	ExcludeTags []string
	// Citations rewrites inline links as numbered references.
	Citations bool
}

// Result is the cleaned page: content in the requested format plus
// metadata, links, images, and a quality signal.
type Result struct {
	Content     string
	TextContent string
	Title       string
	Metadata    models.Metadata
	Links       []string
	Images      []models.Image
	Quality     float64
}

// Clean runs the full pipeline on rawHTML fetched from sourceURL.
func (c *Cleaner) Clean(rawHTML, sourceURL string, opts Options) (*Result, error) {
	if len(rawHTML) > MaxHTMLInput {
		return nil, models.NewPeelError(models.ErrCodeValidation,
			"HTML input exceeds 10 MiB cap", nil)
	}

	working := FilterTags(rawHTML, opts.IncludeTags, opts.ExcludeTags)
	working = RemoveSelectors(working, opts.Exclude)
	if opts.Selector != "" {
		selected, err := ApplySelector(working, opts.Selector)
		if err != nil {
			return nil, models.NewPeelError(models.ErrCodeValidation,
				"invalid CSS selector", err)
		}
		working = selected
	}

	// Metadata always comes from the unfiltered document; links and
	// images too. They run concurrently with content extraction below.
	var (
		links  []string
		images []models.Image
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		links = ExtractLinks(rawHTML, sourceURL)
		images = ExtractImages(rawHTML, sourceURL)
	}()

	content, textContent, title := c.extractContent(working, sourceURL, opts)

	meta := ExtractMetadata(rawHTML, textContent)
	if title == "" {
		title = meta.Title
	}

	if opts.Citations && (opts.Format == "" || opts.Format == "markdown") {
		content = ConvertToCitations(content)
	}

	wg.Wait()

	return &Result{
		Content:     content,
		TextContent: textContent,
		Title:       title,
		Metadata:    meta,
		Links:       links,
		Images:      images,
		Quality:     QualityScore(content, rawHTML),
	}, nil
}

// extractContent isolates the main content and converts it to the
// requested format. Returns (content, plainText, title).
func (c *Cleaner) extractContent(working, sourceURL string, opts Options) (string, string, string) {
	// A first-class JSON-LD entity beats DOM heuristics, but only when
	// the caller did not ask for a specific DOM subset.
	if opts.Selector == "" && (opts.Format == "" || opts.Format == "markdown") {
		if sc, ok := ExtractJSONLD(working); ok {
			return sc.Markdown, sc.Markdown, sc.Title
		}
	}

	pruned, err := Prune(working)
	contentHTML := pruned.HTML
	title := ""

	article, extracted := ExtractArticle(working, sourceURL)
	if extracted {
		title = article.Title
		// Prefer whichever pass isolated more real text; a pruned
		// fragment more than 10x smaller than the readability result
		// usually means pruning picked a sub-container.
		prunedText := ToText(contentHTML)
		if err != nil || len(strings.TrimSpace(prunedText)) < minContentLength ||
			len(article.TextContent) > 10*len(prunedText) {
			contentHTML = article.Content
		}
	}

	switch opts.Format {
	case "html":
		return contentHTML, ToText(contentHTML), title
	case "text":
		text := ToText(contentHTML)
		return text, text, title
	default:
		md, err := ToMarkdown(c.mdConverter, contentHTML, sourceURL)
		if err != nil {
			slog.Warn("markdown conversion failed, falling back to text",
				"url", sourceURL, "error", err,
			)
			text := ToText(contentHTML)
			return text, text, title
		}
		return md, ToText(contentHTML), title
	}
}
