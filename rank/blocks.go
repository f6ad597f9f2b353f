package rank

import (
	"regexp"
	"strings"
)

// Block is one BM25 document: a code fence, a heading merged with its
// following paragraph, a contiguous list or table, or a lone paragraph.
type Block struct {
	Text string
	// Index is the block's position in the original document order.
	Index int
}

var listItemRe = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s`)

// SplitBlocks splits markdown into logical blocks.
func SplitBlocks(markdown string) []Block {
	lines := strings.Split(markdown, "\n")
	var blocks []Block

	add := func(text string) {
		text = strings.TrimSpace(text)
		if text != "" {
			blocks = append(blocks, Block{Text: text, Index: len(blocks)})
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++

		case strings.HasPrefix(trimmed, "```"):
			// Code fence: one block up to and including the closing fence.
			start := i
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
				i++
			}
			if i < len(lines) {
				i++
			}
			add(strings.Join(lines[start:i], "\n"))

		case strings.HasPrefix(trimmed, "#"):
			// Heading merged with the paragraph that follows it.
			start := i
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
				i++
			}
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "```") ||
					listItemRe.MatchString(lines[i]) || strings.HasPrefix(t, "|") {
					break
				}
				i++
			}
			add(strings.Join(lines[start:i], "\n"))

		case listItemRe.MatchString(line):
			start := i
			for i < len(lines) && (listItemRe.MatchString(lines[i]) ||
				strings.HasPrefix(lines[i], "  ") && strings.TrimSpace(lines[i]) != "") {
				i++
			}
			add(strings.Join(lines[start:i], "\n"))

		case strings.HasPrefix(trimmed, "|"):
			start := i
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
				i++
			}
			add(strings.Join(lines[start:i], "\n"))

		default:
			start := i
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "```") ||
					listItemRe.MatchString(lines[i]) || strings.HasPrefix(t, "|") {
					break
				}
				i++
			}
			add(strings.Join(lines[start:i], "\n"))
		}
	}
	return blocks
}

var mdFormattingRe = regexp.MustCompile("[*_`#>\\[\\]()|\\\\]")
var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Tokenize lowercases, strips markdown formatting and punctuation, and
// returns whitespace-separated tokens of length >= 2.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = mdFormattingRe.ReplaceAllString(text, " ")
	text = punctRe.ReplaceAllString(text, " ")
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
