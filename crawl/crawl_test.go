package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpeel/webpeel/models"
)

// sitePeeler serves a canned link graph without touching the network.
type sitePeeler struct {
	mu    sync.Mutex
	pages map[string]*models.PeelResult
	calls []string
	fail  map[string]bool
}

func (s *sitePeeler) Peel(_ context.Context, req *models.PeelRequest) (*models.PeelResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.URL)
	s.mu.Unlock()
	if s.fail[req.URL] {
		return nil, models.NewHTTPError(500, "boom")
	}
	if res, ok := s.pages[req.URL]; ok {
		cp := *res
		return &cp, nil
	}
	return &models.PeelResult{URL: req.URL, Content: "page " + req.URL, Status: 200}, nil
}

func (s *sitePeeler) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func page(u string, links ...string) *models.PeelResult {
	return &models.PeelResult{URL: u, Content: "content of " + u, Status: 200, Links: links}
}

func waitDone(t *testing.T, m *Manager, id string) *models.JobStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := m.Status(id)
		require.True(t, ok)
		if snap.Status != models.JobStatusProcessing {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestCrawl_FollowsLinksWithinScope(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com",
			"https://example.com/a",
			"https://blog.example.com/b",
			"https://other.org/external",
		),
		"https://example.com/a":      page("https://example.com/a"),
		"https://blog.example.com/b": page("https://blog.example.com/b"),
	}}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartCrawl(&models.CrawlRequest{URL: "https://example.com", Scope: "subdomain"})
	require.NoError(t, err)
	snap := waitDone(t, m, job.ID)

	assert.Equal(t, models.JobStatusCompleted, snap.Status)
	assert.Len(t, snap.Results, 3)
	for _, u := range p.called() {
		assert.NotContains(t, u, "other.org")
	}
}

func TestCrawl_DomainScopeExcludesSubdomains(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com",
			"https://example.com/a",
			"https://blog.example.com/b",
		),
	}}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartCrawl(&models.CrawlRequest{URL: "https://example.com", Scope: "domain"})
	require.NoError(t, err)
	snap := waitDone(t, m, job.ID)

	assert.Len(t, snap.Results, 2)
	for _, u := range p.called() {
		assert.NotContains(t, u, "blog.example.com")
	}
}

func TestCrawl_MaxPagesBoundsTheFrontier(t *testing.T) {
	links := make([]string, 20)
	for i := range links {
		links[i] = "https://example.com/p" + string(rune('a'+i))
	}
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com", links...),
	}}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartCrawl(&models.CrawlRequest{URL: "https://example.com", MaxPages: 5})
	require.NoError(t, err)
	snap := waitDone(t, m, job.ID)

	assert.Equal(t, 5, snap.Total)
	assert.LessOrEqual(t, len(snap.Results), 5)
}

func TestCrawl_ExcludePatterns(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com",
			"https://example.com/docs/guide",
			"https://example.com/admin/panel",
		),
	}}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartCrawl(&models.CrawlRequest{
		URL:             "https://example.com",
		ExcludePatterns: []string{"/admin"},
	})
	require.NoError(t, err)
	waitDone(t, m, job.ID)

	for _, u := range p.called() {
		assert.NotContains(t, u, "/admin")
	}
}

func TestCrawl_PartialOnPageFailures(t *testing.T) {
	p := &sitePeeler{
		pages: map[string]*models.PeelResult{
			"https://example.com": page("https://example.com", "https://example.com/bad"),
		},
		fail: map[string]bool{"https://example.com/bad": true},
	}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartCrawl(&models.CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)
	snap := waitDone(t, m, job.ID)

	assert.Equal(t, models.JobStatusPartial, snap.Status)
	assert.Len(t, snap.Results, 1)
}

func TestBatch_PeelsAllURLs(t *testing.T) {
	p := &sitePeeler{}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartBatch(&models.BatchRequest{URLs: []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://c.example.com",
	}})
	require.NoError(t, err)
	snap := waitDone(t, m, job.ID)

	assert.Equal(t, models.JobStatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Len(t, snap.Results, 3)
}

func TestMap_CollectsAndFilters(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com",
			"https://example.com/docs/intro",
			"https://example.com/blog/post",
			"https://other.org/away",
		),
	}}
	m := NewManager(p)
	defer m.Close()

	resp, err := m.Map(context.Background(), &models.MapRequest{URL: "https://example.com", Search: "docs"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "https://example.com/docs/intro", resp.URLs[0])
}

func TestDeepFetch_PeelsPageAndLinks(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com": page("https://example.com",
			"https://example.com/one",
			"https://example.com/two",
			"https://other.org/skip",
		),
	}}
	m := NewManager(p)
	defer m.Close()

	results, err := m.DeepFetch(context.Background(), &models.DeepFetchRequest{
		URL:      "https://example.com",
		MaxLinks: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "https://example.com", results[0].URL)
	for _, r := range results[1:] {
		assert.True(t, strings.HasPrefix(r.URL, "https://example.com/"))
	}
}

func TestWatch_RecordsChanges(t *testing.T) {
	p := &sitePeeler{pages: map[string]*models.PeelResult{
		"https://example.com/feed": {
			URL:     "https://example.com/feed",
			Content: "v1",
			Status:  200,
			ChangeTracking: &models.ChangeTracking{
				Change:              "changed",
				PreviousFingerprint: "deadbeefcafe0000",
				Distance:            22,
			},
		},
	}}
	m := NewManager(p)
	defer m.Close()

	job, err := m.StartWatch(&models.WatchRequest{URL: "https://example.com/feed", IntervalMs: 10000})
	require.NoError(t, err)

	// The ticker interval is long; drive one check directly.
	val, ok := m.jobs.Load(job.ID)
	require.True(t, ok)
	m.watchOnce(context.Background(), val.(*Job), &models.WatchRequest{URL: "https://example.com/feed"})

	snap, ok := m.Status(job.ID)
	require.True(t, ok)
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, "changed", snap.Changes[0].Change)
}

func TestStatus_UnknownJob(t *testing.T) {
	m := NewManager(&sitePeeler{})
	defer m.Close()
	_, ok := m.Status("crawl-missing")
	assert.False(t, ok)
}

func TestInScope(t *testing.T) {
	start, _ := url.Parse("https://www.example.com")
	assert.True(t, inScope(start, "https://www.example.com/a", "domain"))
	assert.False(t, inScope(start, "https://blog.example.com/a", "domain"))
	assert.True(t, inScope(start, "https://blog.example.com/a", "subdomain"))
	assert.False(t, inScope(start, "https://example.org/a", "subdomain"))
	assert.False(t, inScope(start, "https://www.example.com/a", "page"))
	assert.False(t, inScope(start, "mailto:hi@example.com", "subdomain"))
}
