package cleaner

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"github.com/webpeel/webpeel/models"
)

// Safety caps on the conversion path.
const (
	// MaxHTMLInput rejects pathological pages before they hit the
	// parser.
	MaxHTMLInput = 10 << 20 // 10 MiB
	// MaxMarkdownOutput hard-truncates runaway conversions.
	MaxMarkdownOutput = 1 << 20 // 1 MiB
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta,
//     link, input, textarea, HTML comments.
//   - commonmark plugin: ATX headings, fenced code blocks, `-` bullets,
//     `_` emphasis, `**` strong.
//   - table plugin: keeps table structure with minimal cell padding,
//     which saves 20-40% of table tokens over aligned columns.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts an HTML fragment to markdown. The domain resolves
// relative URLs in links and images so the output is self-contained.
func ToMarkdown(conv *converter.Converter, htmlContent, domain string) (string, error) {
	if len(htmlContent) > MaxHTMLInput {
		return "", models.NewPeelError(models.ErrCodeValidation,
			"HTML input exceeds 10 MiB cap", nil)
	}
	md, err := conv.ConvertString(htmlContent, converter.WithDomain(domain))
	if err != nil {
		return "", err
	}
	md = CollapseNewlines(md)
	if len(md) > MaxMarkdownOutput {
		md = md[:MaxMarkdownOutput]
	}
	return md, nil
}

// ToText extracts visible text: headings, paragraphs, list items, and
// table cells, separated by blank lines.
func ToText(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}
	var parts []string
	doc.Find("h1,h2,h3,h4,h5,h6,p,li,td,th,blockquote,pre").Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is covered by a nested match.
		if s.Find("p,li").Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}

var newlineRunRe = regexp.MustCompile(`\n{3,}`)

// CollapseNewlines normalises runs of three or more newlines to two.
func CollapseNewlines(s string) string {
	return newlineRunRe.ReplaceAllString(s, "\n\n")
}
