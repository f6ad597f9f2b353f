// Package distill compresses content to a token budget.
package distill

import (
	"fmt"
	"regexp"
	"strings"
)

// EstimateTokens returns the rough token count: ceil(chars / 4).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Truncate hard-cuts content to roughly maxTokens. The first heading is
// always kept; lines accumulate in order until adding one would exceed
// the budget, then a truncation notice is appended.
func Truncate(content string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(content) <= maxTokens {
		return content
	}

	budget := maxTokens * 4
	lines := strings.Split(content, "\n")
	var out []string
	used := 0
	headingKept := false

	for _, line := range lines {
		cost := len(line) + 1
		if !headingKept && strings.HasPrefix(strings.TrimSpace(line), "#") {
			out = append(out, line)
			used += cost
			headingKept = true
			continue
		}
		if used+cost > budget {
			break
		}
		out = append(out, line)
		used += cost
	}

	notice := fmt.Sprintf("\n[Content truncated to ~%d tokens]", maxTokens)
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + notice
}

// maxTableRows is the number of data rows kept per table by Distill.
const maxTableRows = 5

// boilerplateLineRe matches short nav-like lines that repeat across
// pages and carry no content (cookie notices, skip links, share rows).
var boilerplateLineRe = regexp.MustCompile(`(?i)^(skip to (main )?content|accept( all)? cookies?|share (this|on)|follow us( on)?|sign (in|up)|subscribe( now)?|advertisement|sponsored( content)?|related (articles|posts|stories)|read more|back to top|copyright ©.*|all rights reserved\.?)\s*$`)

var tableRowRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)
var tableSepRe = regexp.MustCompile(`^\s*\|[\s:|-]+\|\s*$`)

// Distill is the smart pass: strip boilerplate lines, compress tables
// to header + first rows, drop low-density paragraphs, and finally
// hard-truncate if the content is still over budget.
func Distill(content string, budget int) string {
	if budget <= 0 || EstimateTokens(content) <= budget {
		return content
	}

	lines := strings.Split(content, "\n")
	lines = stripBoilerplate(lines)
	lines = compressTables(lines)

	if EstimateTokens(strings.Join(lines, "\n")) > budget {
		lines = dropLowDensity(lines, budget)
	}

	result := collapseBlank(strings.Join(lines, "\n"))
	return Truncate(result, budget)
}

func stripBoilerplate(lines []string) []string {
	out := lines[:0:0]
	for _, line := range lines {
		if boilerplateLineRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// compressTables keeps the header, the separator, and the first
// maxTableRows data rows of each markdown table.
func compressTables(lines []string) []string {
	var out []string
	i := 0
	for i < len(lines) {
		if !tableRowRe.MatchString(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}
		start := i
		for i < len(lines) && tableRowRe.MatchString(lines[i]) {
			i++
		}
		table := lines[start:i]

		kept := 0
		var dataRows int
		for _, row := range table {
			if tableSepRe.MatchString(row) || kept < 2 {
				out = append(out, row)
				kept++
				continue
			}
			if dataRows < maxTableRows {
				out = append(out, row)
				dataRows++
			}
		}
		if total := len(table); total > kept+dataRows {
			out = append(out, fmt.Sprintf("| … %d more rows … |", total-kept-dataRows))
		}
	}
	return out
}

// dropLowDensity removes paragraphs whose alphanumeric density is poor,
// smallest-value paragraphs first, until the budget is plausible.
// Headings, code fences, and list items are never dropped.
func dropLowDensity(lines []string, budget int) []string {
	type para struct {
		start, end int
		density    float64
	}

	var paras []para
	inFence := false
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			i++
			continue
		}
		if inFence || line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") ||
			strings.HasPrefix(line, "|") || strings.HasPrefix(line, ">") {
			i++
			continue
		}
		start := i
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			i++
		}
		text := strings.Join(lines[start:i], " ")
		paras = append(paras, para{start: start, end: i, density: alnumDensity(text)})
	}

	drop := make(map[int]bool)
	current := EstimateTokens(strings.Join(lines, "\n"))
	for current > budget {
		best := -1
		for idx, p := range paras {
			if drop[idx] {
				continue
			}
			if best == -1 || p.density < paras[best].density {
				best = idx
			}
		}
		// Keep at least one paragraph; the hard cut handles the rest.
		if best == -1 || len(drop) >= len(paras)-1 {
			break
		}
		if paras[best].density >= 0.7 {
			break // remaining paragraphs are real prose
		}
		drop[best] = true
		for j := paras[best].start; j < paras[best].end; j++ {
			current -= EstimateTokens(lines[j])
		}
	}

	var out []string
	for idx, line := range lines {
		skip := false
		for pIdx, p := range paras {
			if drop[pIdx] && idx >= p.start && idx < p.end {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, line)
		}
	}
	return out
}

func alnumDensity(s string) float64 {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func collapseBlank(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}
