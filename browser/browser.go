// Package browser owns the headless-browser lifecycle: a warmed page
// pool for regular renders, stealth patches, resource blocking, and
// exclusively-locked persistent profiles.
package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

// Browser manages the shared rod instance and its page pool. Safe for
// concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	activePages atomic.Int32
	startTime   time.Time

	// profileLocks serialises access to persistent profile dirs.
	profileLocks sync.Map // map[string]*sync.Mutex
}

// New launches a headless browser and initialises the page pool.
func New(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	applyStealthFlags(l)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewPeelError(models.ErrCodeInternal, "failed to connect to browser", err)
	}

	pool := rod.NewPagePool(cfg.PoolSize)
	slog.Info("page pool created", "poolSize", cfg.PoolSize)

	return &Browser{
		browser:   b,
		pagePool:  pool,
		cfg:       cfg,
		startTime: time.Now(),
	}, nil
}

// applyStealthFlags sets the launch flags that hide the most common
// automation tells before any page exists.
func applyStealthFlags(l *launcher.Launcher) {
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
}

// PoolStats is a snapshot of pool utilisation for /health.
type PoolStats struct {
	PoolSize    int `json:"poolSize"`
	ActivePages int `json:"activePages"`
}

// Stats reports current pool utilisation.
func (b *Browser) Stats() PoolStats {
	return PoolStats{
		PoolSize:    b.cfg.PoolSize,
		ActivePages: int(b.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("browser shutting down: closing browser")
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

// lockProfile acquires the exclusive lock for a persistent profile
// directory. The returned func releases it.
func (b *Browser) lockProfile(dir string) func() {
	muAny, _ := b.profileLocks.LoadOrStore(dir, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
