// Package rank scores content blocks and sentences against a query
// with Okapi BM25 plus question-aware heuristics.
package rank

import (
	"math"
	"sort"
	"strings"
)

// Okapi BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// corpus holds tokenized documents with the statistics BM25 needs.
type corpus struct {
	docs      [][]string
	docFreq   map[string]int
	avgDocLen float64
}

func newCorpus(texts []string) *corpus {
	c := &corpus{docFreq: make(map[string]int)}
	total := 0
	for _, t := range texts {
		tokens := Tokenize(t)
		c.docs = append(c.docs, tokens)
		total += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				c.docFreq[tok]++
			}
		}
	}
	if len(texts) > 0 {
		c.avgDocLen = float64(total) / float64(len(texts))
	}
	return c
}

// idf = log((N - n + 0.5) / (n + 0.5) + 1)
func (c *corpus) idf(term string) float64 {
	n := float64(c.docFreq[term])
	N := float64(len(c.docs))
	return math.Log((N-n+0.5)/(n+0.5) + 1)
}

// score computes the BM25 score of document i against the query terms.
func (c *corpus) score(i int, queryTerms []string) float64 {
	doc := c.docs[i]
	if len(doc) == 0 || c.avgDocLen == 0 {
		return 0
	}
	tf := make(map[string]int, len(doc))
	for _, tok := range doc {
		tf[tok]++
	}
	dl := float64(len(doc))
	var total float64
	for _, term := range queryTerms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		idf := c.idf(term)
		total += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/c.avgDocLen))
	}
	return total
}

// FilterResult reports what the query filter kept.
type FilterResult struct {
	Content          string
	KeptBlocks       int
	TotalBlocks      int
	ReductionPercent float64
}

// Filter keeps the blocks relevant to query. The threshold is half the
// mean positive score; if everything would be dropped the top three
// blocks survive. Document order is preserved.
func Filter(markdown, query string) FilterResult {
	blocks := SplitBlocks(markdown)
	queryTerms := Tokenize(query)
	if len(blocks) == 0 || len(queryTerms) == 0 {
		return FilterResult{
			Content:     markdown,
			KeptBlocks:  len(blocks),
			TotalBlocks: len(blocks),
		}
	}

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	c := newCorpus(texts)

	scores := make([]float64, len(blocks))
	var sum float64
	for i := range blocks {
		scores[i] = c.score(i, queryTerms)
		sum += scores[i]
	}
	threshold := 0.5 * sum / float64(len(blocks))

	var kept []Block
	for i, b := range blocks {
		if scores[i] >= threshold && scores[i] > 0 {
			kept = append(kept, b)
		}
	}

	// Never return empty: fall back to the top three blocks by score.
	if len(kept) == 0 {
		order := make([]int, len(blocks))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
		top := order
		if len(top) > 3 {
			top = top[:3]
		}
		sort.Ints(top)
		for _, i := range top {
			kept = append(kept, blocks[i])
		}
	}

	var parts []string
	for _, b := range kept {
		parts = append(parts, b.Text)
	}
	reduction := 0.0
	if len(blocks) > 0 {
		reduction = 100 * float64(len(blocks)-len(kept)) / float64(len(blocks))
	}
	return FilterResult{
		Content:          strings.Join(parts, "\n\n"),
		KeptBlocks:       len(kept),
		TotalBlocks:      len(blocks),
		ReductionPercent: reduction,
	}
}
