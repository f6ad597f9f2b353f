package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/dispatch"
	"github.com/webpeel/webpeel/models"
)

const articleHTML = `<html><head>
<title>Go Pipelines</title>
<meta property="og:title" content="Go Pipelines">
<meta name="description" content="A long look at pipeline design.">
</head><body><article>
<h1>Go Pipelines</h1>
<p>Pipelines connect stages with channels. Each stage runs independently and
passes values downstream as soon as they are ready.</p>
<p>Hotel prices in the sample dataset averaged $120 per night, while hostel
beds averaged $35 per night across the same cities.</p>
<p>Cancellation flows upstream: closing the done channel tells every stage
to abandon its work and return.</p>
</article></body></html>`

type stubFetcher struct {
	outcome *models.FetchOutcome
	err     error
	calls   int
}

func (s *stubFetcher) Fetch(_ context.Context, _ *models.PeelRequest) (*models.FetchOutcome, error) {
	s.calls++
	return s.outcome, s.err
}

func htmlOutcome(body string) *models.FetchOutcome {
	return &models.FetchOutcome{
		FinalURL:    "https://example.com/article",
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		HTMLBody:    body,
		Method:      models.MethodSimple,
	}
}

func newTestPipeline(f Fetcher) *Pipeline {
	router := dispatch.New(cleaner.NewCleaner())
	c := cache.New(100, time.Minute)
	return New(f, router, c, nil, nil, nil)
}

func TestPeel_MarkdownSuccess(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)

	res, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "# Go Pipelines") {
		t.Errorf("content missing heading:\n%s", res.Content)
	}
	if res.Tokens == 0 {
		t.Error("tokens must be > 0 for a 200 with body")
	}
	if res.Method != models.MethodSimple {
		t.Errorf("method = %q", res.Method)
	}
	if len(res.Fingerprint) != 16 {
		t.Errorf("fingerprint = %q", res.Fingerprint)
	}
	if res.CacheStatus != "miss" {
		t.Errorf("cacheStatus = %q", res.CacheStatus)
	}
}

func TestPeel_CacheHit(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)
	req := &models.PeelRequest{URL: "https://example.com/article"}

	first, err := p.Peel(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Method != models.MethodCached || second.CacheStatus != "hit" {
		t.Errorf("method=%q cacheStatus=%q", second.Method, second.CacheStatus)
	}
	if second.Content != first.Content {
		t.Error("cache hit must byte-match the prior content")
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times", f.calls)
	}
}

func TestPeel_FingerprintStable(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)

	a, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article", NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article", NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint != b.Fingerprint || a.Content != b.Content {
		t.Error("identical inputs must yield identical content and fingerprint")
	}
	if Fingerprint(a.Content) != a.Fingerprint {
		t.Error("fingerprint is not sha256(content)[:16]")
	}
}

func TestPeel_QuestionFiltersAndAnswers(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)

	res, err := p.Peel(context.Background(), &models.PeelRequest{
		URL:      "https://example.com/article",
		Question: "how much do hotel prices average?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "$120") {
		t.Errorf("filtered content lost the relevant block:\n%s", res.Content)
	}
	if res.Answer == nil || res.Answer.Answer == "" {
		t.Fatal("expected a quick answer")
	}
	if !strings.Contains(res.Answer.Answer, "$120") {
		t.Errorf("answer = %q", res.Answer.Answer)
	}
}

func TestPeel_MaxTokensTruncates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><article><h1>Long</h1>")
	for i := 0; i < 200; i++ {
		sb.WriteString("<p>This paragraph pads the article with repeated filler text for the truncation check.</p>")
	}
	sb.WriteString("</article></body></html>")

	f := &stubFetcher{outcome: htmlOutcome(sb.String())}
	p := newTestPipeline(f)

	res, err := p.Peel(context.Background(), &models.PeelRequest{
		URL:       "https://example.com/long",
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Tokens > 120 {
		t.Errorf("tokens = %d, want ≈100", res.Tokens)
	}
	if !strings.Contains(res.Content, "[Content truncated") {
		t.Error("missing truncation notice")
	}
}

func TestPeel_ZeroTokenSafetyNet(t *testing.T) {
	empty := `<html><head><meta name="description" content="Fallback description text."></head>` +
		`<body><div class="nav"></div></body></html>`
	f := &stubFetcher{outcome: htmlOutcome(empty)}
	p := newTestPipeline(f)

	res, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/empty"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Tokens == 0 {
		t.Fatal("zero-token success must not escape the pipeline")
	}
	if !strings.Contains(res.Content, "Fallback description") {
		t.Errorf("content = %q", res.Content)
	}
}

func TestPeel_ChangeTrackingSame(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)

	if _, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article"}); err != nil {
		t.Fatal(err)
	}
	// noCache bypasses the cached response but still compares with it.
	res, err := p.Peel(context.Background(), &models.PeelRequest{URL: "https://example.com/article", NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.ChangeTracking == nil {
		t.Fatal("expected change tracking against the prior peel")
	}
	if res.ChangeTracking.Change != "same" {
		t.Errorf("change = %q", res.ChangeTracking.Change)
	}
}

func TestPeel_ValidationErrors(t *testing.T) {
	p := newTestPipeline(&stubFetcher{})
	for _, u := range []string{
		"",
		"ftp://example.com/x",
		"https://example.com/" + strings.Repeat("a", 3000),
		"https://example.com/\x01bad",
	} {
		_, err := p.Peel(context.Background(), &models.PeelRequest{URL: u})
		pe, ok := err.(*models.PeelError)
		if !ok || pe.Code != models.ErrCodeValidation {
			t.Errorf("url %q: err = %v", u, err)
		}
	}
}

func TestPeel_CSSExtraction(t *testing.T) {
	f := &stubFetcher{outcome: htmlOutcome(articleHTML)}
	p := newTestPipeline(f)

	res, err := p.Peel(context.Background(), &models.PeelRequest{
		URL: "https://example.com/article",
		Extract: &models.ExtractConfig{
			Selectors: map[string]string{"headline": "h1"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Extracted["headline"] != "Go Pipelines" {
		t.Errorf("extracted = %+v", res.Extracted)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(135); got != "2:15" {
		t.Errorf("got %q", got)
	}
	if got := formatTimestamp(3750); got != "1:02:30" {
		t.Errorf("got %q", got)
	}
}
