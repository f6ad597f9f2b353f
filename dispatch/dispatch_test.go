package dispatch

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/models"
)

func TestKind_Routing(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		body        string
		want        int
	}{
		{"text/html; charset=utf-8", "https://a.com/x", "", kindHTML},
		{"application/pdf", "https://a.com/doc", "", kindPDF},
		{"text/html", "https://a.com/report.pdf", "", kindPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "https://a.com/f", "", kindDOCX},
		{"text/html", "https://a.com/cv.docx?dl=1", "", kindDOCX},
		{"application/json", "https://a.com/api", "", kindJSON},
		{"application/ld+json", "https://a.com/api", "", kindJSON},
		{"application/rss+xml", "https://a.com/feed", "", kindFeed},
		{"application/atom+xml", "https://a.com/feed", "", kindFeed},
		{"text/xml", "https://a.com/feed", `<?xml version="1.0"?><rss version="2.0">`, kindFeed},
		{"text/xml", "https://a.com/sitemap", `<?xml version="1.0"?><urlset>`, kindText},
		{"text/plain", "https://a.com/readme", "", kindText},
		{"text/markdown", "https://a.com/readme.md", "", kindText},
	}
	for _, tt := range tests {
		o := &models.FetchOutcome{ContentType: tt.contentType, FinalURL: tt.url, HTMLBody: tt.body}
		if got := kind(o); got != tt.want {
			t.Errorf("kind(%q, %q) = %d, want %d", tt.contentType, tt.url, got, tt.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	body := `{"name":"thing","docs":"https://example.com/docs","n":1}`
	res, err := extractJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != models.ContentTypeJSON || res.Quality != 1.0 {
		t.Errorf("contentType=%q quality=%f", res.ContentType, res.Quality)
	}
	if !strings.Contains(res.Content, "\n  \"name\"") {
		t.Errorf("not pretty-printed:\n%s", res.Content)
	}
	if len(res.Links) != 1 || res.Links[0] != "https://example.com/docs" {
		t.Errorf("links = %v", res.Links)
	}
}

func TestExtractJSON_Malformed(t *testing.T) {
	if _, err := extractJSON("{nope"); err == nil {
		t.Error("malformed JSON accepted")
	}
}

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Blog</title>
<description>Posts about things.</description>
<item>
  <title>First Post</title>
  <link>https://blog.example.com/first</link>
  <description>` + "An opening description that runs on for a while so we can check the two hundred character clipping behaviour of the item summary renderer, padded with further words until it is definitely long enough to overflow the limit." + `</description>
</item>
<item>
  <title>Second Post</title>
  <link>https://blog.example.com/second</link>
  <description>Short one.</description>
</item>
</channel></rss>`

func TestExtractFeed(t *testing.T) {
	res, err := extractFeed(rssBody)
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Example Blog" || res.ContentType != models.ContentTypeXML {
		t.Errorf("title=%q contentType=%q", res.Title, res.ContentType)
	}
	if !strings.Contains(res.Content, "## First Post") ||
		!strings.Contains(res.Content, "## Second Post") {
		t.Errorf("items not rendered as level-2 sections:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "Short one.") {
		t.Error("short description missing")
	}
	// Long descriptions clip at 200 chars.
	for _, line := range strings.Split(res.Content, "\n") {
		if strings.HasPrefix(line, "An opening description") && len(line) > feedSummaryLen {
			t.Errorf("summary not clipped: %d chars", len(line))
		}
	}
	if len(res.Links) != 2 {
		t.Errorf("links = %v", res.Links)
	}
	if res.Metadata.Extra["itemCount"] != 2 {
		t.Errorf("itemCount = %v", res.Metadata.Extra["itemCount"])
	}
}

func TestExtractText(t *testing.T) {
	body := "Read the docs at https://docs.example.com/guide. Also https://docs.example.com/guide again."
	res := extractText(body)
	if res.Content != body {
		t.Error("text body modified")
	}
	if len(res.Links) != 1 || res.Links[0] != "https://docs.example.com/guide" {
		t.Errorf("links = %v", res.Links)
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Quarterly Report</w:t></w:r></w:p>
<w:p><w:r><w:t>Revenue grew in the </w:t></w:r><w:r><w:t>third quarter.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Outlook</w:t></w:r></w:p>
<w:p><w:r><w:t>Guidance is unchanged.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestExtractDOCX_Markdown(t *testing.T) {
	data := buildDOCX(t, docxBody)
	res, err := extractDOCX(data, "markdown")
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Quarterly Report" {
		t.Errorf("title = %q", res.Title)
	}
	for _, want := range []string{
		"# Quarterly Report",
		"Revenue grew in the third quarter.",
		"## Outlook",
		"Guidance is unchanged.",
	} {
		if !strings.Contains(res.Content, want) {
			t.Errorf("content missing %q:\n%s", want, res.Content)
		}
	}
	if res.ContentType != models.ContentTypeDocument {
		t.Errorf("contentType = %q", res.ContentType)
	}
}

func TestExtractDOCX_TextFormat(t *testing.T) {
	data := buildDOCX(t, docxBody)
	res, err := extractDOCX(data, "text")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Content, "#") {
		t.Errorf("text format contains markdown heading:\n%s", res.Content)
	}
}

func TestExtractDOCX_NotAZip(t *testing.T) {
	if _, err := extractDOCX([]byte("plain bytes"), "markdown"); err == nil {
		t.Error("non-zip accepted as DOCX")
	}
}

func TestExtractPDF_Garbage(t *testing.T) {
	if _, err := extractPDF([]byte("not a pdf at all")); err == nil {
		t.Error("garbage accepted as PDF")
	}
}

func TestRoute_HTMLDefault(t *testing.T) {
	d := New(cleaner.NewCleaner())
	outcome := &models.FetchOutcome{
		FinalURL:    "https://example.com/story",
		Status:      200,
		ContentType: "text/html",
		HTMLBody: `<html><head><title>Story</title></head><body><article>
		<h1>Story</h1>
		<p>A paragraph long enough to pass the readability minimums, with
		several clauses and plenty of ordinary words to count.</p>
		<p>A second paragraph that keeps the structure looking like a real
		article rather than a stub page.</p>
		</article></body></html>`,
	}
	res, err := d.Route(outcome, &models.PeelRequest{URL: outcome.FinalURL, Format: "markdown"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != models.ContentTypeHTML {
		t.Errorf("contentType = %q", res.ContentType)
	}
	if !strings.Contains(res.Content, "paragraph long enough") {
		t.Errorf("content missing:\n%s", res.Content)
	}
}
