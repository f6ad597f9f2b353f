package rank

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("**The quick** brown-fox, jumps over `x` the http://a.b lazy dog!")
	for _, tok := range got {
		if tok != strings.ToLower(tok) {
			t.Errorf("token %q not lowercased", tok)
		}
		if len(tok) < 2 {
			t.Errorf("token %q shorter than 2", tok)
		}
	}
	joined := strings.Join(got, " ")
	for _, want := range []string{"quick", "brown", "fox", "jumps", "lazy", "dog"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing token %q in %v", want, got)
		}
	}
}

func TestSplitBlocks(t *testing.T) {
	md := "# Title\n\nIntro paragraph under the title.\n\n" +
		"```go\nfunc main() {}\n```\n\n" +
		"- item one\n- item two\n\n" +
		"| a | b |\n| - | - |\n| 1 | 2 |\n\n" +
		"Closing paragraph."

	blocks := SplitBlocks(md)
	if len(blocks) != 5 {
		t.Fatalf("got %d blocks, want 5: %#v", len(blocks), blocks)
	}
	if !strings.Contains(blocks[0].Text, "# Title") || !strings.Contains(blocks[0].Text, "Intro paragraph") {
		t.Errorf("heading not merged with its paragraph: %q", blocks[0].Text)
	}
	if !strings.HasPrefix(blocks[1].Text, "```go") || !strings.HasSuffix(blocks[1].Text, "```") {
		t.Errorf("code fence split wrong: %q", blocks[1].Text)
	}
	if !strings.Contains(blocks[2].Text, "item two") {
		t.Errorf("list not contiguous: %q", blocks[2].Text)
	}
	if strings.Count(blocks[3].Text, "|") < 6 {
		t.Errorf("table not contiguous: %q", blocks[3].Text)
	}
	for i, b := range blocks {
		if b.Index != i {
			t.Errorf("block %d has index %d", i, b.Index)
		}
	}
}

func TestCorpusIDF(t *testing.T) {
	c := newCorpus([]string{
		"hotels are expensive in paris",
		"hotels near the beach",
		"museums are free on sunday",
	})
	// "hotels" appears in 2 of 3 docs, "museums" in 1: rarer term scores
	// higher IDF.
	if c.idf("museums") <= c.idf("hotels") {
		t.Errorf("idf(museums)=%f should exceed idf(hotels)=%f", c.idf("museums"), c.idf("hotels"))
	}
	if c.idf("absent") <= 0 {
		t.Errorf("idf of unseen term should stay positive, got %f", c.idf("absent"))
	}
}

func TestFilter_KeepsRelevantBlocks(t *testing.T) {
	md := strings.Join([]string{
		"# Travel Guide",
		"",
		"Hotel prices in the city center average 200 euros per night, with hotel rates dropping in winter.",
		"",
		"The local museum opens at nine and closes at five on weekdays.",
		"",
		"Budget hotel options start at 80 euros, and hostel prices are lower still.",
		"",
		"The river cruise departs from the old harbor twice daily.",
	}, "\n")

	res := Filter(md, "hotel prices")
	if res.TotalBlocks == 0 || res.KeptBlocks == 0 {
		t.Fatalf("unexpected empty result: %+v", res)
	}
	if res.KeptBlocks >= res.TotalBlocks {
		t.Errorf("nothing filtered: kept %d of %d", res.KeptBlocks, res.TotalBlocks)
	}
	if !strings.Contains(res.Content, "200 euros per night") {
		t.Error("top hotel-price block dropped")
	}
	if !strings.Contains(res.Content, "80 euros") {
		t.Error("second hotel-price block dropped")
	}
	if strings.Contains(res.Content, "river cruise") {
		t.Error("irrelevant block survived")
	}
	if res.ReductionPercent <= 0 {
		t.Errorf("reduction percent = %f", res.ReductionPercent)
	}
}

func TestFilter_PreservesDocumentOrder(t *testing.T) {
	md := "First block talks about prices of rooms and rates in hotels.\n\n" +
		"Unrelated cooking paragraph about pasta and sauces and butter.\n\n" +
		"Second block compares hotel prices across seasons and rates."
	res := Filter(md, "hotel prices rates")
	first := strings.Index(res.Content, "First block")
	second := strings.Index(res.Content, "Second block")
	if first == -1 || second == -1 {
		t.Fatalf("relevant blocks missing: %q", res.Content)
	}
	if first > second {
		t.Error("document order not preserved")
	}
}

func TestFilter_EmptyQueryUnchanged(t *testing.T) {
	md := "A paragraph.\n\nAnother paragraph."
	res := Filter(md, "")
	if res.Content != md {
		t.Errorf("empty query modified content: %q", res.Content)
	}
	if res.KeptBlocks != res.TotalBlocks {
		t.Errorf("kept %d != total %d", res.KeptBlocks, res.TotalBlocks)
	}
}

func TestFilter_NoMatchFallsBackToTopThree(t *testing.T) {
	md := "Alpha paragraph one here with words.\n\n" +
		"Beta paragraph two here with words.\n\n" +
		"Gamma paragraph three here with words.\n\n" +
		"Delta paragraph four here with words."
	res := Filter(md, "zzzzz qqqqq")
	if res.KeptBlocks != 3 {
		t.Errorf("fallback kept %d blocks, want 3", res.KeptBlocks)
	}
	if res.Content == "" {
		t.Error("fallback produced empty content")
	}
}
