package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// captionXML mirrors the legacy timedtext XML format:
// <transcript><text start="1.2" dur="3.4">words</text>...</transcript>
type captionXML struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// json3Body mirrors the json3 timedtext format used by the player
// itself: events[].segs[].utf8 with millisecond offsets.
type json3Body struct {
	Events []struct {
		TStartMs    float64 `json:"tStartMs"`
		DDurationMs float64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// fetchCaptions downloads and decodes one caption track.
func fetchCaptions(ctx context.Context, client *http.Client, baseURL string) ([]Segment, error) {
	body, err := get(ctx, client, baseURL)
	if err != nil {
		return nil, err
	}
	segs := decodeCaptions(body)
	if len(segs) > 0 {
		return segs, nil
	}

	// Some tracks only answer in json3.
	sep := "&"
	if !strings.Contains(baseURL, "?") {
		sep = "?"
	}
	body, err = get(ctx, client, baseURL+sep+"fmt=json3")
	if err != nil {
		return nil, err
	}
	if segs = decodeCaptions(body); len(segs) > 0 {
		return segs, nil
	}
	return nil, models.NewPeelError(models.ErrCodeParse, "caption track decoded to zero segments", nil)
}

// decodeCaptions sniffs the payload format and decodes it. Returns nil
// when neither format yields segments.
func decodeCaptions(body []byte) []Segment {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return decodeJSON3(body)
	}
	return decodeXML(body)
}

func decodeXML(body []byte) []Segment {
	var doc captionXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}
	var segs []Segment
	for _, t := range doc.Texts {
		text := cleanCaptionText(t.Body)
		if text == "" {
			continue
		}
		segs = append(segs, Segment{Start: t.Start, Dur: t.Dur, Text: text})
	}
	return segs
}

func decodeJSON3(body []byte) []Segment {
	var doc json3Body
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	var segs []Segment
	for _, ev := range doc.Events {
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.UTF8)
		}
		text := cleanCaptionText(b.String())
		if text == "" {
			continue
		}
		segs = append(segs, Segment{
			Start: ev.TStartMs / 1000,
			Dur:   ev.DDurationMs / 1000,
			Text:  text,
		})
	}
	return segs
}

var inlineTagRe = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// cleanCaptionText decodes HTML entities (caption XML double-encodes
// them), strips inline styling tags, and normalises whitespace.
func cleanCaptionText(s string) string {
	s = html.UnescapeString(html.UnescapeString(s))
	s = inlineTagRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeNetwork, "building caption request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeNetwork, "fetching captions", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewHTTPError(resp.StatusCode, "caption fetch failed")
	}
	return io.ReadAll(resp.Body)
}
