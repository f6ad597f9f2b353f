// Package search answers web search queries by scraping the
// DuckDuckGo HTML endpoint, which needs no API key.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/webpeel/webpeel/models"
)

const (
	endpoint     = "https://html.duckduckgo.com/html/"
	defaultCount = 10
	maxCount     = 50
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Client performs web searches. The zero value is not usable; call New.
type Client struct {
	httpClient *http.Client
}

// New builds a search client. A nil httpClient gets a 15s default.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Search runs one query and returns up to req.Count hits.
func (c *Client) Search(ctx context.Context, req *models.SearchRequest) ([]models.SearchHit, error) {
	return c.searchAt(ctx, endpoint, req)
}

func (c *Client) searchAt(ctx context.Context, backend string, req *models.SearchRequest) ([]models.SearchHit, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, models.NewPeelError(models.ErrCodeValidation, "query is required", nil)
	}
	count := req.Count
	if count <= 0 {
		count = defaultCount
	}
	if count > maxCount {
		count = maxCount
	}

	form := url.Values{"q": {query}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, backend, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "build search request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, models.NewPeelError(models.ErrCodeTimeout, "search timed out", err)
		}
		return nil, models.NewPeelError(models.ErrCodeNetwork, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewHTTPError(resp.StatusCode,
			fmt.Sprintf("search backend returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeNetwork, "read search response", err)
	}
	return ParseResults(string(body), count)
}

// ParseResults extracts hits from a DuckDuckGo HTML results page.
func ParseResults(html string, count int) ([]models.SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeParse, "parse search results", err)
	}

	var hits []models.SearchHit
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		hits = append(hits, models.SearchHit{
			Title:   strings.TrimSpace(link.Text()),
			URL:     target,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
		return len(hits) < count
	})
	return hits, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// real target. Ad links (y.js) are dropped.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Path, "y.js") {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.String()
	}
	return ""
}
