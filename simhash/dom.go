package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// domShingleSize groups tag names into trigrams so local reorderings
// still shift the fingerprint.
const domShingleSize = 3

// FingerprintDOM hashes the tag skeleton of an HTML document, ignoring
// text content and attributes. A plain fetch and a rendered fetch of
// the same page land close together when JavaScript did not materially
// change the structure.
func FingerprintDOM(doc string) uint64 {
	tags := tagSequence(doc)
	if len(tags) == 0 {
		return 0
	}
	if len(tags) < domShingleSize {
		// Too few tags to shingle; hash the sequence directly.
		return fromTokens(tags)
	}

	shingles := make([]string, 0, len(tags)-domShingleSize+1)
	for i := 0; i+domShingleSize <= len(tags); i++ {
		shingles = append(shingles, strings.Join(tags[i:i+domShingleSize], ">"))
	}
	return fromTokens(shingles)
}

// tagSequence returns the opening tag names of doc in document order.
func tagSequence(doc string) []string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}
