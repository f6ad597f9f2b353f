package crawl

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/webpeel/webpeel/models"
)

const defaultMapLimit = 1000

// Map discovers URLs reachable from a start page: the page's own links
// plus one level of same-domain expansion, optionally filtered by a
// search substring.
func (m *Manager) Map(ctx context.Context, req *models.MapRequest) (*models.MapResponse, error) {
	if err := models.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	start := models.NormalizeURL(req.URL)
	limit := req.Limit
	if limit <= 0 {
		limit = defaultMapLimit
	}
	startURL, err := url.Parse(start)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeValidation, "invalid url: "+req.URL, err)
	}

	res, err := m.peeler.Peel(ctx, &models.PeelRequest{URL: start})
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{start: {}}
	var discovered []string
	add := func(link string) {
		if !inScope(startURL, link, "subdomain") {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		discovered = append(discovered, link)
	}
	for _, link := range res.Links {
		add(link)
	}

	// One parallel expansion level picks up section pages the start
	// page links to but does not enumerate.
	expansion := discovered
	if len(expansion) > m.concurrency*2 {
		expansion = expansion[:m.concurrency*2]
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, m.concurrency)
	for _, link := range expansion {
		if len(discovered) >= limit {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(link string) {
			defer wg.Done()
			defer func() { <-sem }()
			sub, err := m.peeler.Peel(ctx, &models.PeelRequest{URL: link})
			if err != nil {
				return
			}
			mu.Lock()
			for _, l := range sub.Links {
				add(l)
			}
			mu.Unlock()
		}(link)
	}
	wg.Wait()

	if req.Search != "" {
		needle := strings.ToLower(req.Search)
		filtered := discovered[:0]
		for _, link := range discovered {
			if strings.Contains(strings.ToLower(link), needle) {
				filtered = append(filtered, link)
			}
		}
		discovered = filtered
	}
	sort.Strings(discovered)
	if len(discovered) > limit {
		discovered = discovered[:limit]
	}

	return &models.MapResponse{Success: true, URLs: discovered, Total: len(discovered)}, nil
}

const defaultDeepFetchLinks = 5

// DeepFetch peels a page and its most relevant same-domain outbound
// links, returning the combined results with the start page first.
func (m *Manager) DeepFetch(ctx context.Context, req *models.DeepFetchRequest) ([]*models.PeelResult, error) {
	if err := models.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	start := models.NormalizeURL(req.URL)
	maxLinks := req.MaxLinks
	if maxLinks <= 0 {
		maxLinks = defaultDeepFetchLinks
	}
	startURL, err := url.Parse(start)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeValidation, "invalid url: "+req.URL, err)
	}

	peelReq := req.Options
	peelReq.URL = start
	root, err := m.peeler.Peel(ctx, &peelReq)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, link := range root.Links {
		if len(targets) >= maxLinks {
			break
		}
		if link != start && inScope(startURL, link, "subdomain") {
			targets = append(targets, link)
		}
	}

	results := make([]*models.PeelResult, len(targets))
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.concurrency)
	for i, link := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, link string) {
			defer wg.Done()
			defer func() { <-sem }()
			sub := req.Options
			sub.URL = link
			res, err := m.peeler.Peel(ctx, &sub)
			if err == nil {
				results[i] = res
			}
		}(i, link)
	}
	wg.Wait()

	out := []*models.PeelResult{root}
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
