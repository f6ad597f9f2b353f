package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FilterTags applies tag-level include/exclude filtering.
//
// Order: excluded selectors are removed first, then the document is
// reduced to the included selectors (when any match). With both slices
// empty the input passes through unchanged.
func FilterTags(rawHTML string, includeTags, excludeTags []string) string {
	if len(includeTags) == 0 && len(excludeTags) == 0 {
		return rawHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	for _, selector := range excludeTags {
		doc.Find(selector).Remove()
	}

	if len(includeTags) > 0 {
		combined := strings.Join(includeTags, ", ")
		matches := doc.Find(combined)
		if matches.Length() > 0 {
			var buf strings.Builder
			matches.Each(func(_ int, s *goquery.Selection) {
				if h, err := goquery.OuterHtml(s); err == nil {
					buf.WriteString(h)
				}
			})
			return buf.String()
		}
		// Nothing matched the include list; fall through with the
		// exclude-filtered document.
	}

	result, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return result
}
