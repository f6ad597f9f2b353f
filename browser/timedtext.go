package browser

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/webpeel/webpeel/models"
)

// timedTextWait bounds how long we let the player run before giving up
// on a caption request appearing.
const timedTextWait = 20 * time.Second

// CaptureTimedText loads a video watch page in the browser, nudges the
// player into requesting captions, and returns the first substantial
// timedtext response body. Session-scoped caption URLs only resolve for
// the player that minted them, so the player has to make the request.
func (b *Browser) CaptureTimedText(ctx context.Context, videoID string) ([]byte, error) {
	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to acquire page from pool", err)
	}
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed for timedtext capture", "error", err)
	}

	captured := make(chan []byte, 1)

	router := page.HijackRequests()
	_ = router.Add("*api/timedtext*", "", func(h *rod.Hijack) {
		if err := h.LoadResponse(http.DefaultClient, true); err != nil {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		body := []byte(h.Response.Body())
		// Empty and near-empty bodies are the player probing track
		// availability, not captions.
		if len(body) > 64 {
			select {
			case captured <- body:
			default:
			}
		}
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)
	if err := p.Navigate(watchURL(videoID)); err != nil {
		return nil, categorizeError(err, "navigation to watch page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("watch page did not stabilise", "videoId", videoID, "error", err)
	}

	// Start playback and turn captions on. Both calls are best effort;
	// autoplay often covers the first.
	_, _ = p.Eval(`() => {
		const video = document.querySelector('video');
		if (video) video.play().catch(() => {});
		const cc = document.querySelector('.ytp-subtitles-button');
		if (cc && cc.getAttribute('aria-pressed') !== 'true') cc.click();
	}`)

	select {
	case body := <-captured:
		return body, nil
	case <-time.After(timedTextWait):
		return nil, models.NewPeelError(models.ErrCodeNotFound, "no caption request observed", nil)
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "timedtext capture interrupted")
	}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
