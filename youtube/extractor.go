package youtube

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/webpeel/webpeel/models"
)

// watchURL is the page carrying the embedded player response.
const watchURL = "https://www.youtube.com/watch?v="

// browserUA keeps the watch page from serving the consent wall served
// to unknown clients.
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// TimedTextSource is the browser-based fallback: it plays the video
// far enough for the player to request timedtext and returns the first
// non-trivial response body. Implemented by the browser package.
type TimedTextSource interface {
	CaptureTimedText(ctx context.Context, videoID string) ([]byte, error)
}

// Extractor fetches transcripts. The browser source is optional; with
// a nil source only the cheap path runs.
type Extractor struct {
	client  *http.Client
	browser TimedTextSource
}

// NewExtractor builds an Extractor. client may be nil, in which case
// http.DefaultClient is used.
func NewExtractor(client *http.Client, browser TimedTextSource) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Extractor{client: client, browser: browser}
}

// Extract returns the transcript for a video. lang is a BCP-47 code
// ("en"); empty means best available. When the video has no captions
// at all the description is returned as content if present, otherwise
// the error says "No captions available".
func (e *Extractor) Extract(ctx context.Context, videoID, lang string) (*Transcript, error) {
	page, err := e.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	pr, err := extractPlayerResponse(page)
	if err != nil {
		return nil, err
	}

	t := &Transcript{
		VideoID:     videoID,
		Title:       pr.VideoDetails.Title,
		Author:      pr.VideoDetails.Author,
		Description: pr.VideoDetails.ShortDescription,
	}
	t.Chapters = ParseChapters(t.Description)

	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return e.noCaptions(t)
	}

	track := selectTrack(tracks, lang)
	t.Language = track.LanguageCode

	segs, err := fetchCaptions(ctx, e.client, track.BaseURL)
	if err != nil && e.browser != nil {
		// Session-scoped caption URLs 404 outside the player; let the
		// player fetch them itself and capture the response.
		slog.Debug("caption fetch failed, trying browser intercept",
			"videoId", videoID, "error", err,
		)
		if body, berr := e.browser.CaptureTimedText(ctx, videoID); berr == nil {
			if got := decodeCaptions(body); len(got) > 0 {
				segs, err = got, nil
			}
		}
	}
	if err != nil {
		return e.noCaptions(t)
	}

	t.Segments = segs
	var parts []string
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	t.FullText = strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	t.KeyPoints = KeyPoints(segs, t.Chapters)
	t.Summary = Summarize(t.FullText)
	return t, nil
}

// noCaptions degrades to the description when the video has one, and
// errors otherwise.
func (e *Extractor) noCaptions(t *Transcript) (*Transcript, error) {
	if strings.TrimSpace(t.Description) != "" {
		t.FullText = t.Description
		t.Summary = Summarize(t.Description)
		return t, nil
	}
	return nil, models.NewPeelError(models.ErrCodeNotFound, "No captions available", nil)
}

func (e *Extractor) fetchWatchPage(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL+videoID, nil)
	if err != nil {
		return "", models.NewPeelError(models.ErrCodeNetwork, "building watch-page request", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", models.NewPeelError(models.ErrCodeNetwork, "fetching watch page", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", models.NewHTTPError(resp.StatusCode, "watch page fetch failed")
	}

	// Watch pages run ~1 MB; 8 MiB caps runaway responses.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", models.NewPeelError(models.ErrCodeNetwork, "reading watch page", err)
	}
	return string(body), nil
}
