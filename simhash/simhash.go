// Package simhash computes locality-sensitive 64-bit fingerprints.
// Change tracking uses them to grade content drift between peels; the
// fetch ladder uses the DOM variant to judge whether a render changed
// the page a lower rung already saw.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint hashes text into a SimHash over its whitespace tokens.
// Near-duplicate texts land within a small Hamming distance of each
// other; unrelated texts average 32 bits apart.
func Fingerprint(text string) uint64 {
	return fromTokens(strings.Fields(text))
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// fromTokens folds each token's FNV-64a hash into a signed per-bit
// tally; the sign of each tally becomes the fingerprint bit.
func fromTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var tally [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for bit := range tally {
			if sum>>uint(bit)&1 == 1 {
				tally[bit]++
			} else {
				tally[bit]--
			}
		}
	}

	var fp uint64
	for bit, w := range tally {
		if w > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}
