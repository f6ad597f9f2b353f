package youtube

import (
	"encoding/json"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// playerResponse is the subset of ytInitialPlayerResponse the
// extractor needs.
type playerResponse struct {
	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
}

// captionTrack is one entry of captionTracks. Kind "asr" marks
// auto-generated tracks.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

func (t captionTrack) isAuto() bool { return t.Kind == "asr" }

// playerResponseMarkers are the assignments that precede the embedded
// JSON on the watch page. Layout shifts occasionally; both forms are
// seen in the wild.
var playerResponseMarkers = []string{
	"var ytInitialPlayerResponse =",
	"ytInitialPlayerResponse =",
}

// extractPlayerResponse locates the ytInitialPlayerResponse object in
// watch-page HTML and decodes it. The object is found with a brace
// walker rather than a regex so truncated or trailing script content
// cannot derail the match.
func extractPlayerResponse(watchHTML string) (*playerResponse, error) {
	for _, marker := range playerResponseMarkers {
		idx := strings.Index(watchHTML, marker)
		if idx < 0 {
			continue
		}
		raw, ok := walkBraces(watchHTML[idx+len(marker):])
		if !ok {
			continue
		}
		var pr playerResponse
		if err := json.Unmarshal([]byte(raw), &pr); err != nil {
			continue
		}
		return &pr, nil
	}
	return nil, models.NewPeelError(models.ErrCodeParse,
		"ytInitialPlayerResponse not found in watch page", nil)
}

// walkBraces returns the balanced {...} object starting at the first
// '{' in s, honouring string literals and escapes.
func walkBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// selectTrack picks the best caption track for lang using the priority
// manual-in-lang > auto-in-lang > any-manual > first.
func selectTrack(tracks []captionTrack, lang string) *captionTrack {
	if len(tracks) == 0 {
		return nil
	}
	if lang != "" {
		for i := range tracks {
			if tracks[i].LanguageCode == lang && !tracks[i].isAuto() {
				return &tracks[i]
			}
		}
		for i := range tracks {
			if tracks[i].LanguageCode == lang {
				return &tracks[i]
			}
		}
	}
	for i := range tracks {
		if !tracks[i].isAuto() {
			return &tracks[i]
		}
	}
	return &tracks[0]
}
