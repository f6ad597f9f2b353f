package governor

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquire_PacesSameHost(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	g := New(Limits{RequestsPerSecond: 5, Burst: 1}, nil)
	defer g.Stop()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background(), "example.com"); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	// 20 requests at 5/s with burst 1: 19 tokens must be waited for,
	// so the batch cannot complete in under ~3.8s.
	if elapsed := time.Since(start); elapsed < 3800*time.Millisecond {
		t.Errorf("20 acquisitions finished in %v, want >= 3.8s", elapsed)
	}
}

func TestAcquire_OtherHostNotThrottled(t *testing.T) {
	g := New(Limits{RequestsPerSecond: 1, Burst: 1}, nil)
	defer g.Stop()

	// Drain example.com's bucket.
	if !g.Allow("example.com") {
		t.Fatal("first token should be available")
	}

	start := time.Now()
	if err := g.Acquire(context.Background(), "other.org"); err != nil {
		t.Fatalf("Acquire other host: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("different host throttled: waited %v", elapsed)
	}
}

func TestAcquire_CancelledContext(t *testing.T) {
	g := New(Limits{RequestsPerSecond: 0.1, Burst: 1}, nil)
	defer g.Stop()

	g.Allow("slow.example") // drain

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.Acquire(ctx, "slow.example"); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestOverrides(t *testing.T) {
	g := New(Limits{RequestsPerSecond: 1, Burst: 1},
		map[string]string{"Fast.Example": "100:50", "bad": "nope"})
	defer g.Stop()

	for i := 0; i < 40; i++ {
		if !g.Allow("fast.example") {
			t.Fatalf("override burst exhausted at %d", i)
		}
	}
}
