// Command webpeel-mcp is an MCP stdio server that proxies tool calls to
// a running webpeel API. Point it at a deployment with WEBPEEL_API_URL
// and authenticate with WEBPEEL_API_KEY.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// peelResponse mirrors the fields of a PeelResult this binary renders.
type peelResponse struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Tokens   int    `json:"tokens"`
	Method   string `json:"method"`
	Metadata struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		SiteName    string `json:"siteName"`
	} `json:"metadata"`
	Answer *struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	} `json:"answer"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// searchResponse mirrors the /v1/search envelope.
type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
	Total int `json:"total"`
}

// jobResponse mirrors the crawl/batch start envelope.
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// jobStatusResponse mirrors the job poll envelope.
type jobStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []json.RawMessage `json:"results"`
}

// mapResponse mirrors the /v1/map envelope.
type mapResponse struct {
	Success bool     `json:"success"`
	URLs    []string `json:"urls"`
	Total   int      `json:"total"`
}

func main() {
	apiURL := os.Getenv("WEBPEEL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("WEBPEEL_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "WEBPEEL_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"webpeel",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	peelTool := mcp.NewTool("peel_url",
		mcp.WithDescription("Fetch a web page and return clean, LLM-ready markdown. Escalates through a headless browser and stealth mode automatically when the page is blocked or JavaScript-rendered."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to fetch"),
		),
		mcp.WithString("question",
			mcp.Description("Optional question; keeps only relevant content and extracts a quick answer"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Hard cap on output tokens (rough estimate)"),
		),
		mcp.WithBoolean("render",
			mcp.Description("Force browser rendering"),
		),
	)
	s.AddTool(peelTool, handlePeelURL(apiURL, apiKey))

	searchTool := mcp.NewTool("search_web",
		mcp.WithDescription("Search the web and return titles, URLs and snippets for the top results."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of results to return (default: 10, max: 50)"),
		),
	)
	s.AddTool(searchTool, handleSearchWeb(apiURL, apiKey))

	crawlTool := mcp.NewTool("crawl_site",
		mcp.WithDescription("Recursively crawl a website starting from a URL, following links up to a depth, and return clean content for each discovered page."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The starting URL to crawl from"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum crawl depth from the starting URL (default: 3, max: 10)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to crawl (default: 100, max: 500)"),
		),
		mcp.WithString("scope",
			mcp.Description("Link following scope: 'subdomain' (default), 'domain', or 'page'"),
			mcp.Enum("subdomain", "domain", "page"),
		),
	)
	s.AddTool(crawlTool, handleCrawlSite(apiURL, apiKey))

	mapTool := mcp.NewTool("map_site",
		mcp.WithDescription("Discover the URLs of a website without fetching their content."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the website to map"),
		),
		mcp.WithString("search",
			mcp.Description("Only return URLs containing this substring"),
		),
	)
	s.AddTool(mapTool, handleMapSite(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST to the webpeel API and returns the body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJob polls a job endpoint until the status leaves "processing"
// (or Firecrawl's "scraping") or the context is cancelled.
func pollJob(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != "processing" && status.Status != "scraping" {
				return body, nil
			}
		}
	}
}

func handlePeelURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{
			"url":       url,
			"agentMode": true,
		}
		if q := request.GetString("question", ""); q != "" {
			payload["question"] = q
		}
		args := request.GetArguments()
		if mt, ok := args["max_tokens"].(float64); ok && mt > 0 {
			payload["maxTokens"] = int(mt)
		}
		if render, ok := args["render"].(bool); ok && render {
			payload["render"] = true
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/v1/fetch", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetch request failed: %v", err)), nil
		}

		var peel peelResponse
		if err := json.Unmarshal(respBody, &peel); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if peel.Error != "" {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", peel.Error, peel.Message)), nil
		}

		var sb strings.Builder
		title := peel.Title
		if title == "" {
			title = peel.Metadata.Title
		}
		if title != "" {
			fmt.Fprintf(&sb, "Title: %s\nSource: %s\n\n", title, peel.URL)
		}
		if peel.Answer != nil && peel.Answer.Answer != "" {
			fmt.Fprintf(&sb, "Answer: %s (confidence %.2f)\n\n", peel.Answer.Answer, peel.Answer.Confidence)
		}
		sb.WriteString(peel.Content)
		fmt.Fprintf(&sb, "\n\n---\nTokens: %d, method: %s", peel.Tokens, peel.Method)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleSearchWeb(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := map[string]any{"query": query}
		if count, ok := request.GetArguments()["count"].(float64); ok && count > 0 {
			payload["count"] = int(count)
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/v1/search", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
		}

		var sr searchResponse
		if err := json.Unmarshal(respBody, &sr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse search response: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d results:\n\n", sr.Total)
		for i, hit := range sr.Results {
			fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
			if hit.Snippet != "" {
				fmt.Fprintf(&sb, "   %s\n", hit.Snippet)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleCrawlSite(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{"url": url}
		args := request.GetArguments()
		if maxDepth, ok := args["max_depth"]; ok {
			payload["maxDepth"] = maxDepth
		}
		if maxPages, ok := args["max_pages"]; ok {
			payload["maxPages"] = maxPages
		}
		if scope := request.GetString("scope", ""); scope != "" {
			payload["scope"] = scope
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/v1/crawl", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("crawl request failed: %v", err)), nil
		}

		var started jobResponse
		if err := json.Unmarshal(respBody, &started); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse crawl response: %v", err)), nil
		}
		if started.ID == "" {
			return mcp.NewToolResultError("crawl job creation failed"), nil
		}

		resultBody, err := pollJob(ctx, client, apiURL, apiKey, "/v1/crawl/"+started.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling crawl job failed: %v", err)), nil
		}

		var status jobStatusResponse
		if err := json.Unmarshal(resultBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse crawl status: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Crawl %s: %s (%d/%d pages)\n\n", status.ID, status.Status, status.Completed, status.Total)
		for i, raw := range status.Results {
			var page peelResponse
			if err := json.Unmarshal(raw, &page); err != nil {
				fmt.Fprintf(&sb, "--- Page %d: parse error ---\n\n", i+1)
				continue
			}
			fmt.Fprintf(&sb, "--- Page %d: %s (%s) ---\n%s\n\n", i+1, page.Title, page.URL, page.Content)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleMapSite(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{"url": url}
		if search := request.GetString("search", ""); search != "" {
			payload["search"] = search
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/v1/map", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("map request failed: %v", err)), nil
		}

		var mr mapResponse
		if err := json.Unmarshal(respBody, &mr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse map response: %v", err)), nil
		}
		if !mr.Success {
			return mcp.NewToolResultError("map failed"), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d URLs:\n\n", mr.Total)
		for _, u := range mr.URLs {
			sb.WriteString(u + "\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
