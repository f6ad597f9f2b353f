package cleaner

import (
	"strings"
	"testing"
)

const articlePage = `<html><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<div class="cookie-banner">We use cookies. Accept?</div>
<article>
  <h1>Deep Sea Exploration</h1>
  <p>The ocean floor remains one of the least explored places on the planet,
  with vast trenches and ridges that have never been mapped in detail.</p>
  <p>Modern submersibles carry sonar arrays and sampling arms that let
  researchers catalogue species previously unknown to science.</p>
  <p>Funding for these expeditions has grown steadily over the past decade
  as interest in deep sea mining and conservation has increased.</p>
</article>
<aside class="sidebar"><a href="/x">Trending</a> <a href="/y">Popular</a></aside>
<footer>Copyright 2026</footer>
</body></html>`

func TestPrune_SelectsArticle(t *testing.T) {
	res, err := Prune(articlePage)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "Deep Sea Exploration") ||
		!strings.Contains(res.HTML, "sonar arrays") {
		t.Errorf("article content missing:\n%s", res.HTML)
	}
	if strings.Contains(res.HTML, "cookie-banner") || strings.Contains(res.HTML, "Trending") {
		t.Errorf("chrome survived pruning:\n%s", res.HTML)
	}
	if res.Score <= 0 {
		t.Errorf("score = %f", res.Score)
	}
}

func TestPrune_PrefersArticleOverDenserDiv(t *testing.T) {
	html := `<html><body>
	<div class="widget"><p>` + strings.Repeat("dense filler text here ", 50) + `</p></div>
	<article><p>` + strings.Repeat("the real story continues with detail ", 20) + `</p></article>
	</body></html>`

	res, err := Prune(html)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "real story") {
		t.Error("article not preferred over div")
	}
	if strings.Contains(res.HTML, "dense filler") {
		t.Error("widget div selected alongside article")
	}
}

func TestPrune_ContentClassProtectedFromRemoval(t *testing.T) {
	html := `<html><body><main>
	<div class="post-content related"><p>` +
		strings.Repeat("paragraph text with many ordinary words in it ", 10) + `</p></div>
	</main></body></html>`

	res, err := Prune(html)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "paragraph text") {
		t.Error("content-classed element was removed despite matching a chrome pattern")
	}
}

func TestPrune_HiddenElementsRemoved(t *testing.T) {
	html := `<html><body><article>
	<p>` + strings.Repeat("visible words ", 30) + `</p>
	<p hidden>secret tracking pixel text</p>
	<p style="display:none">also hidden</p>
	</article></body></html>`

	res, err := Prune(html)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.HTML, "secret tracking") || strings.Contains(res.HTML, "also hidden") {
		t.Errorf("hidden elements survived:\n%s", res.HTML)
	}
}

func TestPrune_SafetyFloorKeepsContent(t *testing.T) {
	// A page where chrome patterns match almost everything: removal
	// must stop before the body drops below 40% of its text.
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		b.WriteString(`<div class="related"><p>` +
			strings.Repeat("words that match a chrome class but are the page ", 5) + `</p></div>`)
	}
	b.WriteString("</body></html>")

	res, err := Prune(b.String())
	if err != nil {
		t.Fatal(err)
	}
	text := ToText(res.HTML)
	if len(text) < 200 {
		t.Errorf("safety floor violated, only %d chars of text left", len(text))
	}
}

func TestPrune_NoBodyPassthrough(t *testing.T) {
	frag := "<p>bare fragment</p>"
	res, err := Prune(frag)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "bare fragment") {
		t.Errorf("fragment lost: %q", res.HTML)
	}
}
