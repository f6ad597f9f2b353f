package models

// Firecrawl-compatible request/response shapes for the facade endpoints.
// The facade accepts Firecrawl's field names and maps them onto
// PeelRequest; responses wrap PeelResult in {success, data|error}.

// FirecrawlScrapeRequest mirrors Firecrawl's POST /v1/scrape body.
type FirecrawlScrapeRequest struct {
	URL             string   `json:"url" binding:"required"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent *bool    `json:"onlyMainContent,omitempty"`
	IncludeTags     []string `json:"includeTags,omitempty"`
	ExcludeTags     []string `json:"excludeTags,omitempty"`
	WaitFor         int      `json:"waitFor,omitempty"`
	Timeout         int      `json:"timeout,omitempty"`
	Mobile          bool     `json:"mobile,omitempty"`
}

// ToPeelRequest maps the Firecrawl shape onto the native request.
func (f *FirecrawlScrapeRequest) ToPeelRequest() *PeelRequest {
	req := &PeelRequest{
		URL:         f.URL,
		WaitMs:      f.WaitFor,
		TimeoutMs:   f.Timeout,
		IncludeTags: f.IncludeTags,
		ExcludeTags: f.ExcludeTags,
	}
	for _, format := range f.Formats {
		switch format {
		case "markdown":
			req.Format = "markdown"
		case "html", "rawHtml":
			req.Format = "html"
		case "screenshot":
			req.Screenshot = true
		case "screenshot@fullPage":
			req.Screenshot = true
			req.ScreenshotFullPage = true
		}
	}
	req.Defaults()
	return req
}

// FirecrawlDocument is the per-page payload inside Firecrawl responses.
type FirecrawlDocument struct {
	Markdown   string         `json:"markdown,omitempty"`
	HTML       string         `json:"html,omitempty"`
	Links      []string       `json:"links,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	Metadata   map[string]any `json:"metadata"`
}

// FirecrawlResponse is the envelope for scrape/search/map responses.
type FirecrawlResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FirecrawlCrawlStatus is the envelope for crawl status responses.
// Firecrawl reports "scraping" while the job is still running.
type FirecrawlCrawlStatus struct {
	Success   bool                 `json:"success"`
	Status    string               `json:"status"`
	Completed int                  `json:"completed"`
	Total     int                  `json:"total"`
	Data      []*FirecrawlDocument `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// ToFirecrawlDocument converts a PeelResult to the Firecrawl document shape.
func ToFirecrawlDocument(r *PeelResult) *FirecrawlDocument {
	doc := &FirecrawlDocument{
		Links:      r.Links,
		Screenshot: r.Screenshot,
		Metadata: map[string]any{
			"title":       r.Title,
			"description": r.Metadata.Description,
			"language":    r.Metadata.Language,
			"sourceURL":   r.URL,
			"statusCode":  r.Status,
		},
	}
	doc.Markdown = r.Content
	return doc
}

// FirecrawlJobStatus maps a native job status to Firecrawl's vocabulary.
func FirecrawlJobStatus(status string) string {
	if status == JobStatusProcessing {
		return "scraping"
	}
	return status
}
