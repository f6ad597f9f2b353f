// Package youtube extracts video transcripts without an API key. The
// cheap path scrapes the watch page for the embedded player response
// and fetches a caption track directly; a browser-based fallback
// intercepts the player's own timedtext requests when caption URLs are
// session-scoped.
package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

// videoIDRe matches the canonical 11-character video ID.
var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the video ID from any recognised YouTube URL
// form: watch?v=, youtu.be/, /embed/, /v/, /shorts/. Returns false for
// non-YouTube URLs and malformed IDs.
func ParseVideoID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/embed/"), "/")
		case strings.HasPrefix(u.Path, "/v/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/v/"), "/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/live/"), "/")
		}
	default:
		return "", false
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}

// IsYouTubeURL reports whether the URL belongs to the YouTube pipeline.
func IsYouTubeURL(rawURL string) bool {
	_, ok := ParseVideoID(rawURL)
	return ok
}

// Segment is one caption cue.
type Segment struct {
	// Start and Dur are in seconds.
	Start float64 `json:"start"`
	Dur   float64 `json:"dur"`
	Text  string  `json:"text"`
}

// Chapter is a timestamped section parsed from the video description.
type Chapter struct {
	// Start is the chapter offset in seconds.
	Start int    `json:"start"`
	Title string `json:"title"`
}

// Transcript is the full extraction result for one video.
type Transcript struct {
	VideoID     string    `json:"videoId"`
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`

	// FullText joins the segments with normalised whitespace.
	FullText string `json:"fullText"`

	Chapters  []Chapter `json:"chapters,omitempty"`
	KeyPoints []string  `json:"keyPoints,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}
