// Package dnscache pre-resolves popular hosts on a schedule so the
// first fetch against them skips the DNS round trip.
package dnscache

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Resolver caches host → IP mappings and refreshes them periodically.
// Lookup failures are silent: a miss falls through to the system
// resolver and never blocks a request.
type Resolver struct {
	mu      sync.RWMutex
	entries map[string][]net.IP

	hosts    []string
	interval time.Duration
	resolver *net.Resolver
	done     chan struct{}
}

// New creates a Resolver that pre-warms the given hosts every interval.
// Call Start to begin resolution and Stop to tear it down.
func New(hosts []string, interval time.Duration) *Resolver {
	return &Resolver{
		entries:  make(map[string][]net.IP),
		hosts:    hosts,
		interval: interval,
		resolver: net.DefaultResolver,
		done:     make(chan struct{}),
	}
}

// Start performs an immediate warm-up pass and launches the refresh loop.
func (r *Resolver) Start(ctx context.Context) {
	r.refresh(ctx)
	go r.loop()
}

// Stop terminates the refresh loop.
func (r *Resolver) Stop() {
	close(r.done)
}

// LookupAll returns every cached IP for host, in the "all results"
// getaddrinfo convention. ok is false on a cache miss.
func (r *Resolver) LookupAll(host string) (ips []net.IP, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cached, ok := r.entries[host]
	if !ok || len(cached) == 0 {
		return nil, false
	}
	out := make([]net.IP, len(cached))
	copy(out, cached)
	return out, true
}

// Lookup returns the first cached IP for host, in the "first result"
// convention. ok is false on a cache miss.
func (r *Resolver) Lookup(host string) (ip net.IP, ok bool) {
	ips, ok := r.LookupAll(host)
	if !ok {
		return nil, false
	}
	return ips[0], true
}

// DialContext is a net.Dialer-compatible dial function that consults
// the cache before falling back to the system resolver.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return dialer.DialContext(ctx, network, addr)
	}
	if ip, ok := r.Lookup(host); ok {
		if conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port)); err == nil {
			return conn, nil
		}
		// Cached IP went stale; fall through to a fresh resolution.
	}
	return dialer.DialContext(ctx, network, addr)
}

func (r *Resolver) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			r.refresh(ctx)
			cancel()
		}
	}
}

// refresh resolves every configured host, keeping prior entries on failure.
func (r *Resolver) refresh(ctx context.Context) {
	for _, host := range r.hosts {
		addrs, err := r.resolver.LookupIPAddr(ctx, host)
		if err != nil || len(addrs) == 0 {
			slog.Debug("dnscache: resolution failed", "host", host, "error", err)
			continue
		}
		ips := make([]net.IP, 0, len(addrs))
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
		r.mu.Lock()
		r.entries[host] = ips
		r.mu.Unlock()
	}
}

// Put seeds the cache directly. Used by tests and by callers that learn
// addresses out of band.
func (r *Resolver) Put(host string, ips []net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[host] = ips
}
