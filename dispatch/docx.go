package dispatch

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// DOCX is a zip archive; the document body lives in word/document.xml
// as WordprocessingML. The decoder below walks paragraphs (w:p),
// reading their style (w:pStyle) for heading levels and their runs
// (w:t) for text. No corpus library covers DOCX, so this stays on
// archive/zip and encoding/xml.

// extractDOCX converts a DOCX body to markdown (or plain text when
// format == "text").
func extractDOCX(data []byte, format string) (*models.PeelResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeDocument, "not a valid DOCX archive", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, models.NewPeelError(models.ErrCodeDocument, "failed to open document.xml", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, models.NewPeelError(models.ErrCodeDocument, "failed to read document.xml", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, models.NewPeelError(models.ErrCodeDocument, "DOCX has no word/document.xml", nil)
	}

	paragraphs, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeDocument, "malformed document.xml", err)
	}
	if len(paragraphs) == 0 {
		return nil, models.NewPeelError(models.ErrCodeDocument, "DOCX has no extractable text", nil)
	}

	var parts []string
	title := ""
	for _, p := range paragraphs {
		if p.text == "" {
			continue
		}
		if format == "text" || p.headingLevel == 0 {
			parts = append(parts, p.text)
		} else {
			parts = append(parts, strings.Repeat("#", p.headingLevel)+" "+p.text)
		}
		if title == "" && p.headingLevel == 1 {
			title = p.text
		}
	}

	content := strings.Join(parts, "\n\n")
	words := len(strings.Fields(content))
	return &models.PeelResult{
		Title:       title,
		Content:     content,
		ContentType: models.ContentTypeDocument,
		Metadata: models.Metadata{
			Title:     title,
			WordCount: words,
			Extra:     map[string]any{"paragraphCount": len(paragraphs)},
		},
		Quality: documentQuality(words),
	}, nil
}

type docxParagraph struct {
	text string
	// headingLevel is 1-6 for Heading styles, 0 for body text.
	headingLevel int
}

// parseDocumentXML streams through WordprocessingML collecting
// paragraph text and heading styles. Namespace prefixes are ignored;
// only local element names matter.
func parseDocumentXML(data []byte) ([]docxParagraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		paragraphs []docxParagraph
		current    *docxParagraph
		inText     bool
		buf        strings.Builder
	)

	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(buf.String())
			paragraphs = append(paragraphs, *current)
			current = nil
			buf.Reset()
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				flush()
				current = &docxParagraph{}
			case "pStyle":
				if current != nil {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							current.headingLevel = headingLevelFromStyle(attr.Value)
						}
					}
				}
			case "t":
				inText = current != nil
			case "tab":
				if current != nil {
					buf.WriteByte('\t')
				}
			case "br":
				if current != nil {
					buf.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	flush()
	return paragraphs, nil
}

// headingLevelFromStyle maps style names like "Heading1" / "heading 2"
// to markdown levels, capped at 6.
func headingLevelFromStyle(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if !strings.HasPrefix(s, "heading") {
		if s == "title" {
			return 1
		}
		return 0
	}
	var level int
	if _, err := fmt.Sscanf(s, "heading%d", &level); err != nil || level < 1 {
		return 0
	}
	if level > 6 {
		level = 6
	}
	return level
}
