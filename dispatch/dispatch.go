// Package dispatch routes a FetchOutcome to the extractor matching its
// content type: HTML, JSON, RSS/Atom, PDF, DOCX, or plain text.
package dispatch

import (
	"log/slog"
	"strings"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/models"
)

// Dispatcher owns the shared cleaner and routes outcomes by type.
type Dispatcher struct {
	cleaner *cleaner.Cleaner
}

// New creates a Dispatcher around the shared HTML cleaner.
func New(c *cleaner.Cleaner) *Dispatcher {
	return &Dispatcher{cleaner: c}
}

// Route extracts content from the outcome and returns a partial
// PeelResult: Content, ContentType, Title, Metadata, Links, Images,
// and Quality are filled; the orchestrator layers on tokens, method,
// fingerprint and timing.
func (d *Dispatcher) Route(outcome *models.FetchOutcome, req *models.PeelRequest) (*models.PeelResult, error) {
	switch kind(outcome) {
	case kindPDF:
		return extractPDF(outcome.Body())
	case kindDOCX:
		return extractDOCX(outcome.Body(), req.Format)
	case kindJSON:
		return extractJSON(outcome.HTMLBody)
	case kindFeed:
		return extractFeed(outcome.HTMLBody)
	case kindText:
		return extractText(outcome.HTMLBody), nil
	default:
		return d.extractHTML(outcome, req)
	}
}

const (
	kindHTML = iota
	kindJSON
	kindFeed
	kindPDF
	kindDOCX
	kindText
)

// kind classifies the outcome by content-type header, falling back to
// the URL extension.
func kind(outcome *models.FetchOutcome) int {
	ct := outcome.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))

	urlPath := strings.ToLower(outcome.FinalURL)
	if i := strings.IndexByte(urlPath, '?'); i >= 0 {
		urlPath = urlPath[:i]
	}

	switch {
	case ct == "application/pdf" || strings.HasSuffix(urlPath, ".pdf"):
		return kindPDF
	case ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(urlPath, ".docx"):
		return kindDOCX
	case ct == "application/json" || strings.HasSuffix(ct, "+json"):
		return kindJSON
	case ct == "application/rss+xml" || ct == "application/atom+xml":
		return kindFeed
	case ct == "text/xml" || ct == "application/xml":
		// Generic XML is a feed when it looks like one; otherwise treat
		// it as text.
		if looksLikeFeed(outcome.HTMLBody) {
			return kindFeed
		}
		return kindText
	case ct == "text/plain" || ct == "text/markdown" || ct == "text/css" ||
		ct == "text/javascript" || ct == "application/javascript":
		return kindText
	default:
		return kindHTML
	}
}

func looksLikeFeed(body string) bool {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed") ||
		strings.Contains(head, "<rdf:RDF")
}

func (d *Dispatcher) extractHTML(outcome *models.FetchOutcome, req *models.PeelRequest) (*models.PeelResult, error) {
	res, err := d.cleaner.Clean(outcome.HTMLBody, outcome.FinalURL, cleaner.Options{
		Format:      req.Format,
		Selector:    req.Selector,
		Exclude:     req.Exclude,
		IncludeTags: req.IncludeTags,
		ExcludeTags: req.ExcludeTags,
		Citations:   req.Citations,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("html extraction complete",
		"url", outcome.FinalURL, "quality", res.Quality, "words", res.Metadata.WordCount,
	)
	return &models.PeelResult{
		Title:       res.Title,
		Content:     res.Content,
		ContentType: models.ContentTypeHTML,
		Metadata:    res.Metadata,
		Links:       res.Links,
		Images:      res.Images,
		Quality:     res.Quality,
	}, nil
}
