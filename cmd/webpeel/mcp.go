package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

// newMCPCmd runs an in-process MCP stdio server against the local
// pipeline, no HTTP server required.
func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve peel and search as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs must not pollute stdout: it carries the MCP framing.
			setupCLILogging(true)

			st, err := buildStack(config.Load(), true)
			if err != nil {
				return err
			}
			defer st.close()

			s := server.NewMCPServer(
				"webpeel",
				"1.0.0",
				server.WithToolCapabilities(false),
			)

			peelTool := mcp.NewTool("peel_url",
				mcp.WithDescription("Fetch a web page and return clean, LLM-ready markdown. Escalates to a headless browser automatically when the simple fetch is blocked or the page needs JavaScript."),
				mcp.WithString("url",
					mcp.Required(),
					mcp.Description("The URL to fetch"),
				),
				mcp.WithString("question",
					mcp.Description("Optional question; keeps only content relevant to it and extracts a quick answer"),
				),
				mcp.WithNumber("max_tokens",
					mcp.Description("Hard cap on output tokens (rough estimate)"),
				),
				mcp.WithBoolean("render",
					mcp.Description("Force browser rendering"),
				),
			)
			s.AddTool(peelTool, handlePeel(st))

			searchTool := mcp.NewTool("search_web",
				mcp.WithDescription("Search the web and return titles, URLs and snippets."),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("The search query"),
				),
				mcp.WithNumber("count",
					mcp.Description("Number of results (default: 10, max: 50)"),
				),
			)
			s.AddTool(searchTool, handleSearch(st))

			return server.ServeStdio(s)
		},
	}
}

func handlePeel(st *stack) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		req := &models.PeelRequest{
			URL:       url,
			Question:  request.GetString("question", ""),
			AgentMode: true,
		}
		args := request.GetArguments()
		if mt, ok := args["max_tokens"].(float64); ok {
			req.MaxTokens = int(mt)
		}
		if render, ok := args["render"].(bool); ok {
			req.Render = render
		}
		res, err := st.pipeline.Peel(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		if res.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\nSource: %s\n\n", res.Title, res.URL)
		}
		if res.Answer != nil && res.Answer.Answer != "" {
			fmt.Fprintf(&sb, "Answer: %s (confidence %.2f)\n\n", res.Answer.Answer, res.Answer.Confidence)
		}
		sb.WriteString(res.Content)
		fmt.Fprintf(&sb, "\n\n---\nTokens: %d, method: %s", res.Tokens, res.Method)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleSearch(st *stack) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		searchReq := &models.SearchRequest{Query: query}
		if count, ok := request.GetArguments()["count"].(float64); ok {
			searchReq.Count = int(count)
		}
		hits, err := st.search.Search(ctx, searchReq)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d results:\n\n", len(hits))
		for i, hit := range hits {
			fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
			if hit.Snippet != "" {
				fmt.Fprintf(&sb, "   %s\n", hit.Snippet)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
