package rank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// Question types drive the sentence-scoring boosts.
const (
	QuestionWhat    = "what"
	QuestionHowMany = "how_many"
	QuestionWhen    = "when"
	QuestionWhere   = "where"
	QuestionWhy     = "why"
	QuestionWho     = "who"
	QuestionOther   = "other"
)

var questionTypeRes = []struct {
	re *regexp.Regexp
	t  string
}{
	{regexp.MustCompile(`(?i)^\s*how (many|much)\b`), QuestionHowMany},
	{regexp.MustCompile(`(?i)^\s*when\b|\bwhat (year|date|time)\b`), QuestionWhen},
	{regexp.MustCompile(`(?i)^\s*where\b`), QuestionWhere},
	{regexp.MustCompile(`(?i)^\s*why\b`), QuestionWhy},
	{regexp.MustCompile(`(?i)^\s*who(se|m)?\b`), QuestionWho},
	{regexp.MustCompile(`(?i)^\s*what\b|^\s*which\b|^\s*define\b`), QuestionWhat},
}

// ClassifyQuestion returns the question type for boost selection.
func ClassifyQuestion(question string) string {
	for _, qt := range questionTypeRes {
		if qt.re.MatchString(question) {
			return qt.t
		}
	}
	return QuestionOther
}

// Sentence splitting. URLs, common abbreviations, and decimal numbers
// must not produce false splits, so those dots are masked first.
var (
	urlRe      = regexp.MustCompile(`https?://\S+`)
	abbrevRe   = regexp.MustCompile(`\b(Mr|Mrs|Ms|Dr|Prof|Sr|Jr|St|vs|etc|e\.g|i\.e|approx|Inc|Ltd|Co|Corp|U\.S|U\.K)\.`)
	decimalRe  = regexp.MustCompile(`(\d)\.(\d)`)
	sentEndRe  = regexp.MustCompile(`([.!?])\s+`)
)

// Sentinels used while masking protected dots and marking boundaries.
const (
	dotMask   = "\x00"
	sentBreak = "\x01"
)

// SplitSentences splits text into sentences, protecting URLs,
// abbreviations, and decimals from false boundaries.
func SplitSentences(text string) []string {
	masked := urlRe.ReplaceAllStringFunc(text, func(u string) string {
		return strings.ReplaceAll(u, ".", dotMask)
	})
	masked = abbrevRe.ReplaceAllStringFunc(masked, func(a string) string {
		return strings.ReplaceAll(a, ".", dotMask)
	})
	masked = decimalRe.ReplaceAllString(masked, "$1"+dotMask+"$2")

	marked := sentEndRe.ReplaceAllString(masked, "$1"+sentBreak)
	parts := strings.Split(marked, sentBreak)

	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, dotMask, "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Type-specific boost patterns.
var (
	definitionRe = regexp.MustCompile(`(?i)\b(is|are|was|were|refers to|means|defined as|known as)\b`)
	dateRe       = regexp.MustCompile(`\b(\d{4}|\d{1,2}/\d{1,2}/\d{2,4}|(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2})\b`)
	numberRe     = regexp.MustCompile(`\b\d[\d,.]*\b`)
	byPersonRe   = regexp.MustCompile(`(?i)\b(by|founded by|created by|written by|invented by|led by|ceo|president|author)\b`)
	placeRe      = regexp.MustCompile(`(?i)\b(in|at|located|headquartered|based in|near)\b`)
	becauseRe    = regexp.MustCompile(`(?i)\b(because|due to|as a result|therefore|caused by|reason)\b`)
)

// Direct-pattern extraction: infobox rows and definition sentences are
// trusted above BM25 for who/when/what questions.
var infoboxRe = regexp.MustCompile(`(?m)^\s*\**([A-Z][\w\s()]{1,40}?)\**\s*[:·|]\s+(.{2,120})$`)

// directPattern tries the high-confidence extractors before BM25.
func directPattern(content, question, qType string) *models.QuickAnswer {
	queryTerms := Tokenize(question)
	if len(queryTerms) == 0 {
		return nil
	}

	// Infobox rows: "Field: Value" where the field overlaps the question.
	for _, m := range infoboxRe.FindAllStringSubmatch(content, -1) {
		field := strings.ToLower(m[1])
		for _, term := range queryTerms {
			if strings.Contains(field, term) {
				return &models.QuickAnswer{
					Answer:       strings.TrimSpace(m[1]) + ": " + strings.TrimSpace(m[2]),
					Confidence:   0.92,
					QuestionType: qType,
				}
			}
		}
	}

	// Definition sentences for "what is X": "X is ...".
	if qType == QuestionWhat || qType == QuestionWho || qType == QuestionWhen {
		for _, sent := range SplitSentences(content) {
			if !definitionRe.MatchString(sent) {
				continue
			}
			lower := strings.ToLower(sent)
			matched := 0
			for _, term := range queryTerms {
				if strings.Contains(lower, term) {
					matched++
				}
			}
			if matched >= len(queryTerms)/2+1 && len(Tokenize(sent)) >= 5 {
				return &models.QuickAnswer{
					Answer:       sent,
					Confidence:   0.88,
					QuestionType: qType,
				}
			}
		}
	}
	return nil
}

// Answer runs quick-answer extraction over content for question.
// topN bounds the returned passages.
func Answer(content, question string, topN int) *models.QuickAnswer {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(content) == "" {
		return nil
	}
	if topN <= 0 {
		topN = 3
	}
	qType := ClassifyQuestion(question)

	if direct := directPattern(content, question, qType); direct != nil {
		return direct
	}

	sentences := SplitSentences(content)
	if len(sentences) == 0 {
		return nil
	}
	queryTerms := Tokenize(question)
	c := newCorpus(sentences)

	scores := make([]float64, len(sentences))
	var sum float64
	for i, sent := range sentences {
		s := c.score(i, queryTerms)
		s += typeBoost(sent, qType)
		s += positionBias(i, len(sentences))
		if definitionRe.MatchString(sent) {
			s += 0.15
		}
		scores[i] = s
		sum += s
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	mean := sum / float64(len(sentences))
	top := scores[order[0]]
	confidence := 0.0
	if top > 0 {
		confidence = (top - mean) / top
		if confidence > 0.85 {
			confidence = 0.85
		}
		if confidence < 0.1 {
			confidence = 0.1
		}
	}

	var passages []models.Passage
	used := make(map[int]bool)
	for _, i := range order {
		if len(passages) >= topN {
			break
		}
		if used[i] || scores[i] <= 0 {
			continue
		}
		// Context window: previous + current + next, without overlap
		// between passages.
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi >= len(sentences) {
			hi = len(sentences) - 1
		}
		for used[lo] && lo < i {
			lo++
		}
		for used[hi] && hi > i {
			hi--
		}
		var parts []string
		for j := lo; j <= hi; j++ {
			used[j] = true
			parts = append(parts, sentences[j])
		}
		passages = append(passages, models.Passage{
			Text:  strings.Join(parts, " "),
			Score: scores[i],
		})
	}
	if len(passages) == 0 {
		return nil
	}

	return &models.QuickAnswer{
		Answer:       passages[0].Text,
		Confidence:   confidence,
		Passages:     passages,
		QuestionType: qType,
	}
}

func typeBoost(sentence, qType string) float64 {
	switch qType {
	case QuestionWhat:
		if definitionRe.MatchString(sentence) {
			return 0.3
		}
	case QuestionWhen:
		if dateRe.MatchString(sentence) {
			return 0.4
		}
	case QuestionHowMany:
		if numberRe.MatchString(sentence) {
			return 0.4
		}
	case QuestionWho:
		if byPersonRe.MatchString(sentence) {
			return 0.35
		}
	case QuestionWhere:
		if placeRe.MatchString(sentence) {
			return 0.3
		}
	case QuestionWhy:
		if becauseRe.MatchString(sentence) {
			return 0.4
		}
	}
	return 0
}

// positionBias gives early sentences a boost: +0.4 within the first
// 10% of the document, decaying linearly to 0 at the halfway mark.
func positionBias(i, total int) float64 {
	if total == 0 {
		return 0
	}
	pos := float64(i) / float64(total)
	switch {
	case pos <= 0.1:
		return 0.4
	case pos >= 0.5:
		return 0
	default:
		return 0.4 * (0.5 - pos) / 0.4
	}
}
