package models

// Async job kinds.
const (
	JobKindCrawl = "crawl"
	JobKindBatch = "batch"
	JobKindWatch = "watch"
)

// Job statuses. Firecrawl-compat maps "processing" to "scraping".
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusPartial    = "partial"
)

// CrawlRequest is the payload for POST /v1/crawl.
type CrawlRequest struct {
	URL string `json:"url" binding:"required"`

	// MaxDepth limits link-following depth. Default: 3. Max: 10.
	MaxDepth int `json:"maxDepth,omitempty" binding:"omitempty,min=1,max=10"`

	// MaxPages limits the total pages crawled. Default: 100. Max: 500.
	MaxPages int `json:"maxPages,omitempty" binding:"omitempty,min=1,max=500"`

	// Scope: "domain" (same host), "subdomain" (same registrable domain),
	// "page" (the start URL only). Default: "subdomain".
	Scope string `json:"scope,omitempty" binding:"omitempty,oneof=domain subdomain page"`

	// ExcludePatterns are substrings of paths to skip.
	ExcludePatterns []string `json:"excludePatterns,omitempty"`

	// Options are the per-page peel settings.
	Options PeelRequest `json:"options,omitempty"`

	WebhookURL    string `json:"webhookUrl,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
}

// BatchRequest is the payload for POST /v1/batch.
type BatchRequest struct {
	URLs    []string    `json:"urls" binding:"required,min=1,max=100"`
	Options PeelRequest `json:"options,omitempty"`
}

// WatchRequest is the payload for POST /v1/watch: re-peel on an interval
// and report content changes.
type WatchRequest struct {
	URL        string      `json:"url" binding:"required"`
	IntervalMs int         `json:"intervalMs,omitempty" binding:"omitempty,min=10000"`
	Options    PeelRequest `json:"options,omitempty"`

	WebhookURL    string `json:"webhookUrl,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
}

// MapRequest is the payload for POST /v1/map: discover URLs for a domain.
type MapRequest struct {
	URL    string `json:"url" binding:"required"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty" binding:"omitempty,min=1,max=5000"`
}

// MapResponse is the response for POST /v1/map.
type MapResponse struct {
	Success bool     `json:"success"`
	URLs    []string `json:"urls"`
	Total   int      `json:"total"`
}

// SearchRequest is the payload for POST /v1/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Count int    `json:"count,omitempty" binding:"omitempty,min=1,max=50"`
}

// SearchHit is one web search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// AnswerRequest is the payload for POST /v1/answer.
type AnswerRequest struct {
	URL      string `json:"url" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// DeepFetchRequest is the payload for POST /v1/deep-fetch: peel the page
// and its most relevant outbound links, merged into one result set.
type DeepFetchRequest struct {
	URL      string      `json:"url" binding:"required"`
	MaxLinks int         `json:"maxLinks,omitempty" binding:"omitempty,min=1,max=10"`
	Options  PeelRequest `json:"options,omitempty"`
}

// JobResponse is the immediate response when starting an async job.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobStatusResponse reports progress of an async job and, once complete,
// its results.
type JobStatusResponse struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Status    string        `json:"status"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Results   []*PeelResult `json:"results,omitempty"`

	// Changes is populated for watch jobs.
	Changes []*ChangeTracking `json:"changes,omitempty"`
}

// AgentEvent is one tagged variant of the SSE stream emitted by agent
// endpoints: kind ∈ {"progress", "result", "error"}.
type AgentEvent struct {
	Kind    string      `json:"kind"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  *PeelResult `json:"result,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
