package models

// Fetch strategies, in escalation order. "cached" marks cache hits.
const (
	MethodSimple  = "simple"
	MethodBrowser = "browser"
	MethodStealth = "stealth"
	MethodCached  = "cached"
)

// Content types of a PeelResult.
const (
	ContentTypeHTML     = "html"
	ContentTypeJSON     = "json"
	ContentTypeXML      = "xml"
	ContentTypeText     = "text"
	ContentTypeDocument = "document"
)

// FetchOutcome is the internal handoff between the escalation fetcher
// and the content dispatcher. Exactly one of HTMLBody/BinaryBody is set.
type FetchOutcome struct {
	FinalURL    string
	Status      int
	ContentType string
	ElapsedMs   int64

	HTMLBody   string
	BinaryBody []byte

	// Method is the strategy that produced the bytes.
	Method string

	Screenshot []byte

	// AttemptedStrategies lists every strategy tried, in order.
	AttemptedStrategies []string
}

// Body returns the response body as bytes regardless of which field is set.
func (o *FetchOutcome) Body() []byte {
	if o.BinaryBody != nil {
		return o.BinaryBody
	}
	return []byte(o.HTMLBody)
}

// PeelResult is the output of one pipeline execution.
type PeelResult struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	Metadata    Metadata `json:"metadata"`

	// Links are absolute, http(s)-only, deduped and sorted.
	Links  []string `json:"links,omitempty"`
	Images []Image  `json:"images,omitempty"`

	Tokens    int     `json:"tokens"`
	Method    string  `json:"method"`
	Status    int     `json:"status"`
	ElapsedMs int64   `json:"elapsedMs"`
	Quality   float64 `json:"quality"`

	// Fingerprint is the first 16 hex chars of sha256(Content).
	Fingerprint string `json:"fingerprint"`

	Screenshot string         `json:"screenshot,omitempty"` // base64
	Extracted  map[string]any `json:"extracted,omitempty"`
	Summary    string         `json:"summary,omitempty"`

	Answer         *QuickAnswer    `json:"answer,omitempty"`
	ChangeTracking *ChangeTracking `json:"changeTracking,omitempty"`

	// CacheStatus is "hit", "miss", or empty when caching was bypassed.
	CacheStatus string `json:"cacheStatus,omitempty"`
}

// Metadata holds page-level fields extracted during peeling. The map
// form keeps it permissive; well-known keys are typed below.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Published   string `json:"published,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
	Language    string `json:"language,omitempty"`

	WordCount   int    `json:"wordCount,omitempty"`
	ReadingTime string `json:"readingTime,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`

	// Extra carries source-specific fields (e.g. pageCount for PDFs,
	// videoId for YouTube) without widening the struct per source.
	Extra map[string]any `json:"extra,omitempty"`
}

// Image is an image reference extracted from the page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// QuickAnswer is the LLM-free answer extracted for a question.
type QuickAnswer struct {
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Passages   []Passage `json:"passages,omitempty"`

	// QuestionType is one of: what, how_many, when, where, why, who, other.
	QuestionType string `json:"questionType,omitempty"`
}

// Passage is a top-ranked sentence with surrounding context.
type Passage struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ChangeTracking compares the current content with the previous peel
// of the same URL.
type ChangeTracking struct {
	// Change is "same", "similar", or "changed".
	Change string `json:"change"`

	PreviousFingerprint string `json:"previousFingerprint,omitempty"`

	// Distance is the SimHash Hamming distance to the previous content.
	Distance int `json:"distance"`
}
