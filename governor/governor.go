// Package governor rate-limits outbound fetches per target host.
package governor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits is a per-host refill rate and bucket size.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
}

// Governor hands out fetch permits per host using token buckets.
// It is safe for concurrent use.
type Governor struct {
	mu        sync.Mutex
	buckets   map[string]*hostBucket
	defaults  Limits
	overrides map[string]Limits
	done      chan struct{}
}

type hostBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Governor. overrides maps host → "rps:burst" strings
// (the config wire format); malformed entries are ignored.
func New(defaults Limits, overrides map[string]string) *Governor {
	g := &Governor{
		buckets:   make(map[string]*hostBucket),
		defaults:  defaults,
		overrides: parseOverrides(overrides),
		done:      make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

// Acquire blocks until a token is available for host or ctx is done.
func (g *Governor) Acquire(ctx context.Context, host string) error {
	return g.limiterFor(host).Wait(ctx)
}

// Allow reports whether a token is immediately available for host,
// consuming it if so.
func (g *Governor) Allow(host string) bool {
	return g.limiterFor(host).Allow()
}

// Stop terminates the background cleanup goroutine.
func (g *Governor) Stop() {
	close(g.done)
}

func (g *Governor) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[host]
	if !ok {
		limits := g.defaults
		if o, ok := g.overrides[host]; ok {
			limits = o
		}
		b = &hostBucket{
			limiter: rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.Burst),
		}
		g.buckets[host] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// cleanupLoop evicts buckets unused for an hour, every 10 minutes.
func (g *Governor) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-1 * time.Hour)
			g.mu.Lock()
			for host, b := range g.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(g.buckets, host)
				}
			}
			g.mu.Unlock()
		}
	}
}

func parseOverrides(raw map[string]string) map[string]Limits {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]Limits, len(raw))
	for host, spec := range raw {
		rps, burst, ok := strings.Cut(spec, ":")
		if !ok {
			continue
		}
		r, err1 := strconv.ParseFloat(rps, 64)
		b, err2 := strconv.Atoi(burst)
		if err1 != nil || err2 != nil || r <= 0 || b <= 0 {
			continue
		}
		out[strings.ToLower(host)] = Limits{RequestsPerSecond: r, Burst: b}
	}
	return out
}
