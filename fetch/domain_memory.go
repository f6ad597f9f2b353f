package fetch

import (
	"sync"
	"time"
)

type memoryEntry struct {
	strategy  string
	expiresAt time.Time
}

// DomainMemory remembers the rung that last produced real content for
// each host, so repeat fetches skip rungs already known to fail.
// Entries expire after the configured TTL.
type DomainMemory struct {
	store sync.Map // host -> *memoryEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewDomainMemory starts a DomainMemory with an hourly prune loop.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{ttl: ttl, done: make(chan struct{})}
	go dm.pruneLoop()
	return dm
}

// Get returns the remembered strategy for a host, or "".
func (dm *DomainMemory) Get(host string) string {
	val, ok := dm.store.Load(host)
	if !ok {
		return ""
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		dm.store.Delete(host)
		return ""
	}
	return entry.strategy
}

// Set records the strategy that succeeded for a host.
func (dm *DomainMemory) Set(host, strategy string) {
	dm.store.Store(host, &memoryEntry{
		strategy:  strategy,
		expiresAt: time.Now().Add(dm.ttl),
	})
}

// Delete forgets a host, e.g. after the remembered rung stops working.
func (dm *DomainMemory) Delete(host string) {
	dm.store.Delete(host)
}

// Stop terminates the prune loop.
func (dm *DomainMemory) Stop() {
	close(dm.done)
}

func (dm *DomainMemory) pruneLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				if now.After(value.(*memoryEntry).expiresAt) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}
