package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractFields resolves a field→CSS-selector mapping against the raw
// HTML. A selector with one match yields its trimmed text; multiple
// matches yield a string slice; no match yields nil so the caller can
// tell "absent" from "empty".
func ExtractFields(rawHTML string, selectors map[string]string) map[string]any {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	fields := make(map[string]any, len(selectors))
	for name, sel := range selectors {
		matches := doc.Find(sel)
		switch matches.Length() {
		case 0:
			fields[name] = nil
		case 1:
			fields[name] = strings.TrimSpace(matches.Text())
		default:
			var values []string
			matches.Each(func(_ int, s *goquery.Selection) {
				if v := strings.TrimSpace(s.Text()); v != "" {
					values = append(values, v)
				}
			})
			fields[name] = values
		}
	}
	return fields
}
