// Package llm is a lightweight OpenAI-compatible client for the
// prompt+schema extraction mode. Callers bring their own key; nothing
// is sent anywhere unless the request configures a provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/webpeel/webpeel/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// maxContentChars bounds how much page content travels to the
	// provider; beyond this the extraction prompt is truncated.
	maxContentChars = 48_000
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client. Pass nil to use a default http.Client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Extract sends cleaned page content plus the caller's prompt and
// schema to the provider and returns the structured fields.
func (c *Client) Extract(ctx context.Context, content string, cfg *models.ExtractConfig) (map[string]any, error) {
	if cfg.APIKey == "" {
		return nil, models.NewPeelError(models.ErrCodeLLMAuthFailure, "extract.apiKey is required for prompt extraction", nil)
	}

	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(cfg)},
			{Role: "user", Content: content},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "marshaling extraction request", err)
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "building extraction request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "reading LLM response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "parsing LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &fields); err != nil {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", err)
	}
	return fields, nil
}

func buildSystemPrompt(cfg *models.ExtractConfig) string {
	schema := "{}"
	if cfg.Schema != nil {
		if b, err := json.Marshal(cfg.Schema); err == nil {
			schema = string(b)
		}
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "Extract the requested information from the provided content."
	}
	return fmt.Sprintf(`You are a structured data extraction assistant. %s Return the result as JSON matching the following schema.

Schema:
%s

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- If a field cannot be found in the content, use null.
- Extract exactly the fields specified in the schema.`, prompt, schema)
}

func classifyError(statusCode int, body []byte) *models.PeelError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewPeelError(models.ErrCodeLLMAuthFailure, msg, nil)
	case http.StatusTooManyRequests:
		return models.NewPeelError(models.ErrCodeRateLimited, msg, nil)
	default:
		return models.NewPeelError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
