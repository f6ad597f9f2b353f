package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/webpeel/webpeel/browser"
	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/crawl"
	"github.com/webpeel/webpeel/dispatch"
	"github.com/webpeel/webpeel/dnscache"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/governor"
	"github.com/webpeel/webpeel/llm"
	"github.com/webpeel/webpeel/pipeline"
	"github.com/webpeel/webpeel/search"
	"github.com/webpeel/webpeel/youtube"
)

// stack is the assembled service: pipeline plus everything it owns.
type stack struct {
	pipeline *pipeline.Pipeline
	jobs     *crawl.Manager
	search   *search.Client

	browser  *browser.Browser
	fetcher  *fetch.Fetcher
	governor *governor.Governor
	resolver *dnscache.Resolver
}

// buildStack wires the full pipeline. withBrowser controls whether the
// rod rungs are launched; without them the ladder runs simple-only.
func buildStack(cfg *config.Config, withBrowser bool) (*stack, error) {
	resolver := dnscache.New(cfg.DNS.Hosts, cfg.DNS.RefreshInterval)
	resolver.Start(context.Background())

	simple := fetch.NewHTTPEngine(resolver.DialContext)

	var br *browser.Browser
	var browserEng, stealthEng fetch.Engine
	if withBrowser {
		var err error
		br, err = browser.New(cfg.Browser)
		if err != nil {
			// The simple rung still works without Chrome; render and
			// stealth requests will fail with a clear error.
			slog.Warn("browser unavailable, running simple-only", "error", err)
		} else {
			browserEng = fetch.NewBrowserEngine(br)
			stealthEng = fetch.NewStealthEngine(br)
		}
	}

	fetcher := fetch.New(cfg.Fetcher, simple, browserEng, stealthEng)

	cl := cleaner.NewCleaner()
	router := dispatch.New(cl)

	resultCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	gov := governor.New(governor.Limits{
		RequestsPerSecond: cfg.Governor.RequestsPerSecond,
		Burst:             cfg.Governor.Burst,
	}, cfg.Governor.Overrides)

	var timedText youtube.TimedTextSource
	if br != nil {
		timedText = br
	}
	yt := youtube.NewExtractor(&http.Client{Timeout: 30 * time.Second}, timedText)
	llmClient := llm.NewClient(nil)

	p := pipeline.New(fetcher, router, resultCache, gov, yt, llmClient)

	return &stack{
		pipeline: p,
		jobs:     crawl.NewManager(p),
		search:   search.New(nil),
		browser:  br,
		fetcher:  fetcher,
		governor: gov,
		resolver: resolver,
	}, nil
}

func (s *stack) close() {
	s.jobs.Close()
	s.fetcher.Close()
	if s.browser != nil {
		s.browser.Close()
	}
	s.governor.Stop()
	s.resolver.Stop()
}

// initLogger configures slog from LogConfig. The CLI forces text to
// stderr so stdout stays clean for piped output.
func initLogger(cfg config.LogConfig, forceTextStderr bool) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch {
	case forceTextStderr:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case cfg.Format == "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
