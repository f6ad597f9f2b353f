package crawl

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/webhook"
)

// StartCrawl launches a BFS crawl and returns immediately with the job
// handle. Progress is observable via Status and, when a webhook is
// configured, per-page events.
func (m *Manager) StartCrawl(req *models.CrawlRequest) (*models.JobResponse, error) {
	if err := models.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	start := models.NormalizeURL(req.URL)
	if req.MaxDepth <= 0 {
		req.MaxDepth = defaultMaxDepth
	}
	if req.MaxPages <= 0 {
		req.MaxPages = defaultMaxPages
	}
	if req.Scope == "" {
		req.Scope = defaultScope
	}

	job := m.newJob(models.JobKindCrawl)
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	go m.runCrawl(ctx, job, start, req)

	return &models.JobResponse{ID: job.ID, Status: models.JobStatusProcessing}, nil
}

func (m *Manager) runCrawl(ctx context.Context, job *Job, start string, req *models.CrawlRequest) {
	defer job.cancel()

	startURL, err := url.Parse(start)
	if err != nil {
		job.finish(models.JobStatusFailed, 0)
		return
	}

	var (
		visited   sync.Map // normalized url -> struct{}
		attempted int
		frontier  = []string{start}
	)
	visited.Store(start, struct{}{})

	for depth := 0; depth <= req.MaxDepth && len(frontier) > 0; depth++ {
		if attempted >= req.MaxPages {
			break
		}
		if len(frontier) > req.MaxPages-attempted {
			frontier = frontier[:req.MaxPages-attempted]
		}
		attempted += len(frontier)

		next := m.crawlLevel(ctx, job, frontier, req)
		if ctx.Err() != nil {
			break
		}

		frontier = frontier[:0]
		for _, link := range next {
			if !inScope(startURL, link, req.Scope) || excluded(link, req.ExcludePatterns) {
				continue
			}
			if _, seen := visited.LoadOrStore(link, struct{}{}); !seen {
				frontier = append(frontier, link)
			}
		}
	}

	snap := job.snapshot()
	status := finishStatus(snap.Results, attempted)
	job.finish(status, attempted)
	logJobDone(job)

	if req.WebhookURL != "" {
		eventType := webhook.EventCrawlCompleted
		if status == models.JobStatusFailed {
			eventType = webhook.EventCrawlFailed
		}
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data: map[string]any{
				"status":    status,
				"completed": len(snap.Results),
				"total":     attempted,
			},
		})
	}
}

// crawlLevel peels one BFS level in parallel and returns the links
// discovered across all of its pages.
func (m *Manager) crawlLevel(ctx context.Context, job *Job, urls []string, req *models.CrawlRequest) []string {
	var (
		mu    sync.Mutex
		links []string
		wg    sync.WaitGroup
		sem   = make(chan struct{}, m.concurrency)
	)

	for _, pageURL := range urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			peelReq := req.Options
			peelReq.URL = pageURL
			res, err := m.peeler.Peel(ctx, &peelReq)
			if err != nil {
				slog.Warn("crawl page failed", "job", job.ID, "url", pageURL, "error", err)
				return
			}
			job.addResult(res)

			mu.Lock()
			links = append(links, res.Links...)
			mu.Unlock()

			if req.WebhookURL != "" {
				webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
					Type:      webhook.EventCrawlPage,
					JobID:     job.ID,
					Timestamp: time.Now().Unix(),
					Data:      res,
				})
			}
		}(pageURL)
	}
	wg.Wait()
	return links
}

// StartBatch peels up to 100 URLs in parallel as one job.
func (m *Manager) StartBatch(req *models.BatchRequest) (*models.JobResponse, error) {
	job := m.newJob(models.JobKindBatch)
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	go func() {
		defer cancel()

		var wg sync.WaitGroup
		sem := make(chan struct{}, m.concurrency)
		for _, u := range req.URLs {
			wg.Add(1)
			sem <- struct{}{}
			go func(u string) {
				defer wg.Done()
				defer func() { <-sem }()

				peelReq := req.Options
				peelReq.URL = u
				res, err := m.peeler.Peel(ctx, &peelReq)
				if err != nil {
					slog.Warn("batch url failed", "job", job.ID, "url", u, "error", err)
					return
				}
				job.addResult(res)
			}(u)
		}
		wg.Wait()

		snap := job.snapshot()
		job.finish(finishStatus(snap.Results, len(req.URLs)), len(req.URLs))
		logJobDone(job)
	}()

	return &models.JobResponse{ID: job.ID, Status: models.JobStatusProcessing}, nil
}

// inScope reports whether a link stays within the crawl scope relative
// to the start URL.
func inScope(start *url.URL, link, scope string) bool {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch scope {
	case "page":
		return false
	case "domain":
		return strings.EqualFold(u.Hostname(), start.Hostname())
	default: // subdomain
		return baseDomain(u.Hostname()) == baseDomain(start.Hostname())
	}
}

// baseDomain approximates the registrable domain as the last two labels.
func baseDomain(host string) string {
	parts := strings.Split(strings.ToLower(host), ".")
	if len(parts) <= 2 {
		return strings.ToLower(host)
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// excluded reports whether the link path matches any exclude pattern.
func excluded(link string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(u.Path, p) {
			return true
		}
	}
	return false
}
