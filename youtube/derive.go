package youtube

import (
	"regexp"
	"strconv"
	"strings"
)

// chapterLineRe matches description lines like "0:00 Intro" or
// "1:02:30 Closing thoughts".
var chapterLineRe = regexp.MustCompile(`^(\d+):(\d{2})(?::(\d{2}))?\s+(.+)$`)

// ParseChapters extracts chapter markers from a video description. At
// least two timestamped lines are required; fewer usually means a lone
// timestamp reference, not a chapter list.
func ParseChapters(description string) []Chapter {
	var chapters []Chapter
	for _, line := range strings.Split(description, "\n") {
		m := chapterLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		start := a*60 + b
		if m[3] != "" {
			c, _ := strconv.Atoi(m[3])
			start = a*3600 + b*60 + c
		}
		chapters = append(chapters, Chapter{Start: start, Title: strings.TrimSpace(m[4])})
	}
	if len(chapters) < 2 {
		return nil
	}
	return chapters
}

// keyPointBlockSecs groups segments into 2-minute blocks when the
// video has no chapters.
const keyPointBlockSecs = 120

var sentenceSplitRe = regexp.MustCompile(`([.!?])\s+`)

// KeyPoints picks the first substantive sentence (>= 5 words) per
// chapter, or per 2-minute block when no chapters exist.
func KeyPoints(segments []Segment, chapters []Chapter) []string {
	if len(segments) == 0 {
		return nil
	}

	var boundaries []float64
	if len(chapters) > 0 {
		for _, ch := range chapters {
			boundaries = append(boundaries, float64(ch.Start))
		}
	} else {
		end := segments[len(segments)-1].Start
		for t := 0.0; t <= end; t += keyPointBlockSecs {
			boundaries = append(boundaries, t)
		}
	}

	var points []string
	for i, start := range boundaries {
		end := segments[len(segments)-1].Start + 1
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		var block []string
		for _, seg := range segments {
			if seg.Start >= start && seg.Start < end {
				block = append(block, seg.Text)
			}
		}
		if point := firstSubstantiveSentence(strings.Join(block, " ")); point != "" {
			points = append(points, point)
		}
	}
	return points
}

// firstSubstantiveSentence returns the first sentence with at least 5
// words, or "" when none qualifies.
func firstSubstantiveSentence(text string) string {
	marked := sentenceSplitRe.ReplaceAllString(text, "$1\x01")
	for _, s := range strings.Split(marked, "\x01") {
		s = strings.TrimSpace(s)
		if len(strings.Fields(s)) >= 5 {
			return s
		}
	}
	return ""
}

// summaryWordCap bounds the generated summary.
const summaryWordCap = 200

// Summarize returns roughly the first 200 words of the transcript.
func Summarize(fullText string) string {
	words := strings.Fields(fullText)
	if len(words) <= summaryWordCap {
		return fullText
	}
	return strings.Join(words[:summaryWordCap], " ") + "…"
}
