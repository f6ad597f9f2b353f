package cleaner

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// QualityScore rates a markdown conversion in [0, 1] from four
// signals: compression ratio vs the original HTML (sweet spot 5-40%),
// text-to-formatting density, structural richness (a heading and more
// than two paragraphs), and overall length.
func QualityScore(markdown, originalHTML string) float64 {
	if strings.TrimSpace(markdown) == "" {
		return 0
	}

	score := 0.0

	// Compression ratio: too low means the page was eaten, too high
	// means nothing was cleaned.
	if len(originalHTML) > 0 {
		ratio := float64(len(markdown)) / float64(len(originalHTML))
		switch {
		case ratio >= 0.05 && ratio <= 0.40:
			score += 0.35
		case ratio > 0.40 && ratio <= 0.80:
			score += 0.20
		case ratio > 0 && ratio < 0.05:
			score += 0.10
		}
	} else {
		score += 0.20
	}

	// Text density: alphanumeric characters vs markdown formatting.
	alnum, format := 0, 0
	for _, r := range markdown {
		switch {
		case r == '#' || r == '*' || r == '_' || r == '`' || r == '|' ||
			r == '[' || r == ']' || r == '(' || r == ')':
			format++
		case r > ' ':
			alnum++
		}
	}
	if alnum > 0 {
		density := float64(alnum) / float64(alnum+format)
		score += 0.25 * density
	}

	// Structure: at least one heading and more than two paragraphs.
	paragraphs := 0
	for _, block := range strings.Split(markdown, "\n\n") {
		if len(strings.TrimSpace(block)) > 40 {
			paragraphs++
		}
	}
	if headingRe.MatchString(markdown) {
		score += 0.10
	}
	if paragraphs > 2 {
		score += 0.10
	}

	// Length window: very short output rarely represents the page.
	switch n := len(markdown); {
	case n >= 500 && n <= 500_000:
		score += 0.20
	case n >= 200:
		score += 0.10
	}

	if score > 1 {
		score = 1
	}
	return score
}
