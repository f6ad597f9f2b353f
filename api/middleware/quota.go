package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
)

// QuotaStore tracks per-identity usage. The billing plane would back
// this with Postgres; the built-in implementation is in-memory.
type QuotaStore interface {
	// Consume records one request and reports whether the identity is
	// still within quota.
	Consume(identity string) bool
}

type quotaWindow struct {
	count      int
	resetAfter time.Time
}

// MemoryQuota is a weekly fixed-window in-memory QuotaStore.
type MemoryQuota struct {
	mu      sync.Mutex
	limit   int
	windows map[string]*quotaWindow
}

// NewMemoryQuota builds a store allowing limit requests per identity
// per week. limit <= 0 means unlimited.
func NewMemoryQuota(limit int) *MemoryQuota {
	return &MemoryQuota{limit: limit, windows: make(map[string]*quotaWindow)}
}

func (q *MemoryQuota) Consume(identity string) bool {
	if q.limit <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	w, ok := q.windows[identity]
	if !ok || time.Now().After(w.resetAfter) {
		w = &quotaWindow{resetAfter: time.Now().Add(7 * 24 * time.Hour)}
		q.windows[identity] = w
	}
	w.count++
	return w.count <= q.limit
}

// Usage reports requests consumed in the identity's current window.
func (q *MemoryQuota) Usage(identity string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.windows[identity]; ok && time.Now().Before(w.resetAfter) {
		return w.count
	}
	return 0
}

// Quota rejects requests once the identity's quota is exhausted.
func Quota(store QuotaStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.Consume(Identity(c)) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, models.ErrorDetail{
				Code:      models.ErrCodeQuota,
				Message:   "weekly quota exhausted",
				RequestID: GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
