// Package pipeline threads the peel stages together: normalise, cache,
// governor, fetch, dispatch, post-process, distill.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/distill"
	"github.com/webpeel/webpeel/governor"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/rank"
	"github.com/webpeel/webpeel/simhash"
	"github.com/webpeel/webpeel/youtube"
)

// simhashSimilarMax is the Hamming distance up to which two contents
// count as "similar" rather than "changed".
const simhashSimilarMax = 10

// Fetcher resolves a request into raw bytes via the escalation ladder.
type Fetcher interface {
	Fetch(ctx context.Context, req *models.PeelRequest) (*models.FetchOutcome, error)
}

// Router extracts a partial PeelResult from a FetchOutcome.
type Router interface {
	Route(outcome *models.FetchOutcome, req *models.PeelRequest) (*models.PeelResult, error)
}

// TranscriptSource provides YouTube transcripts; the generic HTML
// pipeline is bypassed for video URLs.
type TranscriptSource interface {
	Extract(ctx context.Context, videoID, lang string) (*youtube.Transcript, error)
}

// FieldExtractor is the LLM prompt+schema extraction mode.
type FieldExtractor interface {
	Extract(ctx context.Context, content string, cfg *models.ExtractConfig) (map[string]any, error)
}

// Pipeline is the orchestrator. All dependencies are process-wide
// services owned by the caller.
type Pipeline struct {
	fetcher  Fetcher
	router   Router
	cache    *cache.Cache
	governor *governor.Governor
	youtube  TranscriptSource
	llm      FieldExtractor
}

// New wires the orchestrator. cache, governor, youtube and llm may be
// nil; the corresponding stages are then skipped.
func New(fetcher Fetcher, router Router, c *cache.Cache, g *governor.Governor, yt TranscriptSource, llmClient FieldExtractor) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		router:   router,
		cache:    c,
		governor: g,
		youtube:  yt,
		llm:      llmClient,
	}
}

// Peel runs one full URL-to-result execution.
func (p *Pipeline) Peel(ctx context.Context, req *models.PeelRequest) (*models.PeelResult, error) {
	start := time.Now()

	req.Defaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := cache.Key(req)
	var prior *models.PeelResult
	if p.cache != nil {
		// The prior result feeds change tracking even when the cache
		// is bypassed for the response itself.
		prior, _ = p.cache.Get(key)
	}
	if prior != nil && !req.NoCache {
		hit := *prior
		hit.Method = models.MethodCached
		hit.CacheStatus = "hit"
		hit.ElapsedMs = time.Since(start).Milliseconds()
		return &hit, nil
	}

	var result *models.PeelResult
	var outcome *models.FetchOutcome
	var err error

	if videoID, ok := youtube.ParseVideoID(req.URL); ok && p.youtube != nil {
		result, err = p.peelYouTube(ctx, videoID, req)
	} else {
		outcome, result, err = p.peelGeneric(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	p.postProcess(ctx, result, outcome, req)

	result.URL = req.URL
	result.ElapsedMs = time.Since(start).Milliseconds()
	if !req.NoCache {
		result.CacheStatus = "miss"
	}

	result.Fingerprint = Fingerprint(result.Content)
	if prior != nil {
		result.ChangeTracking = trackChange(result, prior)
	}

	if p.cache != nil && !req.NoCache {
		p.cache.Set(key, result)
	}

	slog.Info("peel complete",
		"url", req.URL,
		"method", result.Method,
		"tokens", result.Tokens,
		"elapsedMs", result.ElapsedMs,
	)
	return result, nil
}

// peelGeneric is the standard fetch→dispatch path.
func (p *Pipeline) peelGeneric(ctx context.Context, req *models.PeelRequest) (*models.FetchOutcome, *models.PeelResult, error) {
	if p.governor != nil {
		if err := p.governor.Acquire(ctx, hostOf(req.URL)); err != nil {
			return nil, nil, err
		}
	}

	outcome, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	result, err := p.router.Route(outcome, req)
	if err != nil {
		return nil, nil, err
	}

	result.Method = outcome.Method
	result.Status = outcome.Status
	if len(outcome.Screenshot) > 0 {
		result.Screenshot = base64.StdEncoding.EncodeToString(outcome.Screenshot)
	}
	return outcome, result, nil
}

// postProcess applies the question filter, declarative extraction, the
// distillers, token accounting and the zero-token safety net.
func (p *Pipeline) postProcess(ctx context.Context, result *models.PeelResult, outcome *models.FetchOutcome, req *models.PeelRequest) {
	if req.Question != "" {
		filtered := rank.Filter(result.Content, req.Question)
		result.Content = filtered.Content
		result.Answer = rank.Answer(result.Content, req.Question, 3)
	}

	if req.Extract != nil && outcome != nil {
		result.Extracted = p.extract(ctx, result, outcome, req.Extract)
	}

	if req.Budget > 0 {
		result.Content = distill.Distill(result.Content, req.Budget)
	}
	if req.MaxTokens > 0 {
		result.Content = distill.Truncate(result.Content, req.MaxTokens)
	}

	result.Tokens = distill.EstimateTokens(result.Content)

	// Never hand an agent a zero-token success.
	if result.Tokens == 0 && outcome != nil && outcome.Status == 200 && len(outcome.Body()) > 0 {
		result.Content = fallbackContent(result, outcome)
		result.Tokens = distill.EstimateTokens(result.Content)
	}
}

// extract runs the declarative extraction modes: CSS selectors locally,
// prompt+schema through the LLM client.
func (p *Pipeline) extract(ctx context.Context, result *models.PeelResult, outcome *models.FetchOutcome, cfg *models.ExtractConfig) map[string]any {
	if len(cfg.Selectors) > 0 && outcome.HTMLBody != "" {
		return cleaner.ExtractFields(outcome.HTMLBody, cfg.Selectors)
	}
	if cfg.Prompt != "" && p.llm != nil {
		fields, err := p.llm.Extract(ctx, result.Content, cfg)
		if err != nil {
			slog.Warn("llm extraction failed", "url", result.URL, "error", err)
			return nil
		}
		return fields
	}
	return nil
}

// fallbackContent implements the zero-token safety net: the meta
// description when present, else the first 500 chars of visible text.
func fallbackContent(result *models.PeelResult, outcome *models.FetchOutcome) string {
	if desc := result.Metadata.Description; strings.TrimSpace(desc) != "" {
		return desc
	}
	text := outcome.HTMLBody
	if isHTML(outcome.ContentType) {
		text = cleaner.ToText(outcome.HTMLBody)
	}
	text = strings.TrimSpace(text)
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}

// Fingerprint is the stable content hash: the first 16 hex chars of
// sha256(content).
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// trackChange classifies the drift from the previous peel of the same
// URL+options: identical fingerprints are "same", small SimHash
// distances "similar", the rest "changed".
func trackChange(current, prior *models.PeelResult) *models.ChangeTracking {
	ct := &models.ChangeTracking{PreviousFingerprint: prior.Fingerprint}
	if current.Fingerprint == prior.Fingerprint {
		ct.Change = "same"
		return ct
	}
	ct.Distance = simhash.Distance(
		simhash.Fingerprint(current.Content),
		simhash.Fingerprint(prior.Content),
	)
	if ct.Distance <= simhashSimilarMax {
		ct.Change = "similar"
	} else {
		ct.Change = "changed"
	}
	return ct
}

// peelYouTube bypasses the generic pipeline for video URLs.
func (p *Pipeline) peelYouTube(ctx context.Context, videoID string, req *models.PeelRequest) (*models.PeelResult, error) {
	if p.governor != nil {
		if err := p.governor.Acquire(ctx, "www.youtube.com"); err != nil {
			return nil, err
		}
	}
	t, err := p.youtube.Extract(ctx, videoID, "en")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", t.Title)
	}
	if t.Author != "" {
		fmt.Fprintf(&b, "**Channel**: %s\n\n", t.Author)
	}
	if len(t.Chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, ch := range t.Chapters {
			fmt.Fprintf(&b, "- %s %s\n", formatTimestamp(ch.Start), ch.Title)
		}
		b.WriteString("\n")
	}
	if len(t.KeyPoints) > 0 {
		b.WriteString("## Key Points\n\n")
		for _, kp := range t.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", kp)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Transcript\n\n")
	b.WriteString(t.FullText)
	b.WriteString("\n")

	return &models.PeelResult{
		Title:       t.Title,
		Content:     b.String(),
		ContentType: models.ContentTypeText,
		Method:      models.MethodSimple,
		Status:      200,
		Quality:     0.9,
		Summary:     t.Summary,
		Metadata: models.Metadata{
			Title:  t.Title,
			Author: t.Author,
			Extra: map[string]any{
				"videoId":      t.VideoID,
				"language":     t.Language,
				"segmentCount": len(t.Segments),
			},
		},
	}, nil
}

func formatTimestamp(secs int) string {
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Hostname()
}
