package cleaner

import (
	"strings"
	"testing"
)

const recipeHTML = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Chocolate Chip Cookies",
  "description": "Classic homemade cookies.",
  "prepTime": "PT20M",
  "cookTime": "PT12M",
  "recipeYield": "24 cookies",
  "recipeIngredient": ["2 cups flour", "1 cup butter", "2 eggs"],
  "recipeInstructions": [
    {"@type": "HowToStep", "text": "Preheat oven to 375\u00b0F."},
    {"@type": "HowToStep", "text": "Mix flour and butter."},
    {"@type": "HowToStep", "text": "Bake for 12 minutes."}
  ],
  "aggregateRating": {"@type": "AggregateRating", "ratingValue": "4.8", "ratingCount": "1234"}
}
</script>
</head><body><p>page chrome</p></body></html>`

func TestExtractJSONLD_Recipe(t *testing.T) {
	sc, ok := ExtractJSONLD(recipeHTML)
	if !ok {
		t.Fatal("recipe not extracted")
	}
	if sc.Type != "Recipe" || sc.Title != "Chocolate Chip Cookies" {
		t.Errorf("type=%q title=%q", sc.Type, sc.Title)
	}
	for _, want := range []string{
		"# Chocolate Chip Cookies",
		"2 cups flour",
		"Preheat oven",
		"20 min",
		"4.8",
		"1234",
	} {
		if !strings.Contains(sc.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, sc.Markdown)
		}
	}
}

func TestExtractJSONLD_GraphAndArrayForms(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@graph": [
	  {"@type": "WebSite", "name": "ignored"},
	  {"@type": "Product", "name": "Widget Pro",
	   "description": "A widget.",
	   "brand": {"@type": "Brand", "name": "Acme"},
	   "offers": {"@type": "Offer", "price": "19.99", "priceCurrency": "USD",
	              "availability": "https://schema.org/InStock"}}
	]}
	</script></head><body></body></html>`

	sc, ok := ExtractJSONLD(html)
	if !ok {
		t.Fatal("product not extracted from @graph")
	}
	for _, want := range []string{"# Widget Pro", "Acme", "19.99 USD", "InStock"} {
		if !strings.Contains(sc.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, sc.Markdown)
		}
	}
}

func TestExtractJSONLD_FAQ(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type": "FAQPage", "mainEntity": [
	  {"@type": "Question", "name": "What is it?",
	   "acceptedAnswer": {"@type": "Answer", "text": "<p>A thing.</p>"}},
	  {"@type": "Question", "name": "How much?",
	   "acceptedAnswer": {"@type": "Answer", "text": "Ten dollars."}}
	]}
	</script></head><body></body></html>`

	sc, ok := ExtractJSONLD(html)
	if !ok {
		t.Fatal("FAQ not extracted")
	}
	if !strings.Contains(sc.Markdown, "## What is it?") ||
		!strings.Contains(sc.Markdown, "A thing.") {
		t.Errorf("FAQ markdown wrong:\n%s", sc.Markdown)
	}
	if strings.Contains(sc.Markdown, "<p>") {
		t.Error("answer HTML tags not stripped")
	}
}

func TestExtractJSONLD_MalformedBlockIgnored(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">{not json</script>
	<script type="application/ld+json">{"@type": "Event", "name": "GopherCon",
	 "startDate": "2026-09-01", "location": {"@type": "Place", "name": "Denver"}}</script>
	</head><body></body></html>`

	sc, ok := ExtractJSONLD(html)
	if !ok {
		t.Fatal("valid block after malformed one not extracted")
	}
	if !strings.Contains(sc.Markdown, "GopherCon") || !strings.Contains(sc.Markdown, "Denver") {
		t.Errorf("event markdown wrong:\n%s", sc.Markdown)
	}
}

func TestExtractJSONLD_HeadlineOnlyArticleSkipped(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type": "NewsArticle", "headline": "SEO Headline Only"}
	</script></head><body></body></html>`

	if _, ok := ExtractJSONLD(html); ok {
		t.Error("articleBody-less entity should fall through to the DOM path")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct{ in, want string }{
		{"PT20M", "20 min"},
		{"PT1H30M", "1 h 30 min"},
		{"PT45S", "45 s"},
		{"P1DT2H", "1 d 2 h"},
		{"garbage", "garbage"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
