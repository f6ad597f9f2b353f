package dispatch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/webpeel/webpeel/models"
)

var whitespaceRunRe = regexp.MustCompile(`[ \t]{2,}`)

// extractPDF pulls plain text out of a PDF body. Pages that fail to
// decode are skipped rather than failing the document.
func extractPDF(data []byte) (*models.PeelResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeDocument, "failed to parse PDF", err)
	}

	numPages := reader.NumPage()
	var pages []string
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	content := strings.Join(pages, "\n\n")
	content = whitespaceRunRe.ReplaceAllString(content, " ")
	if strings.TrimSpace(content) == "" {
		return nil, models.NewPeelError(models.ErrCodeDocument,
			fmt.Sprintf("PDF has no extractable text (%d pages)", numPages), nil)
	}

	words := len(strings.Fields(content))
	return &models.PeelResult{
		Content:     content,
		ContentType: models.ContentTypeDocument,
		Metadata: models.Metadata{
			WordCount: words,
			Extra:     map[string]any{"pageCount": numPages},
		},
		Quality: documentQuality(words),
	}, nil
}

// documentQuality rates a parsed document purely by how much text came
// out: empty docs score 0, substantial ones approach 1.
func documentQuality(words int) float64 {
	switch {
	case words == 0:
		return 0
	case words < 50:
		return 0.3
	case words < 200:
		return 0.6
	default:
		return 0.9
	}
}
