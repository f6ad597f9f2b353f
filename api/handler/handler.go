// Package handler implements the v1 HTTP endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/crawl"
	"github.com/webpeel/webpeel/models"
)

// Peeler is the single-URL pipeline behind the synchronous endpoints.
type Peeler interface {
	Peel(ctx context.Context, req *models.PeelRequest) (*models.PeelResult, error)
}

// Searcher answers web search queries.
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) ([]models.SearchHit, error)
}

// Handler carries the service dependencies for all endpoints.
type Handler struct {
	peeler   Peeler
	jobs     *crawl.Manager
	searcher Searcher
	quota    *middleware.MemoryQuota
	limit    int
}

// New builds the endpoint handler set. quota may be nil when quotas are
// disabled.
func New(p Peeler, jobs *crawl.Manager, s Searcher, quota *middleware.MemoryQuota, limit int) *Handler {
	return &Handler{peeler: p, jobs: jobs, searcher: s, quota: quota, limit: limit}
}

// Usage handles GET /v1/usage: requests consumed in the caller's
// current quota window.
func (h *Handler) Usage(c *gin.Context) {
	identity := middleware.Identity(c)
	used := 0
	if h.quota != nil {
		used = h.quota.Usage(identity)
	}
	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"used":     used,
		"limit":    h.limit,
	})
}

// statusFor maps internal error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeValidation:
		return http.StatusBadRequest
	case models.ErrCodeAuth:
		return http.StatusUnauthorized
	case models.ErrCodeQuota:
		return http.StatusPaymentRequired
	case models.ErrCodeFeatureGated:
		return http.StatusForbidden
	case models.ErrCodeTimeout:
		return http.StatusRequestTimeout
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeRobots:
		return http.StatusUnavailableForLegalReasons
	case models.ErrCodeBlocked, models.ErrCodeHTTP, models.ErrCodeNetwork:
		return http.StatusBadGateway
	case models.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the uniform error shape.
func writeError(c *gin.Context, err error) {
	requestID := middleware.GetRequestID(c)

	var pe *models.PeelError
	if !errors.As(err, &pe) {
		pe = models.NewPeelError(models.ErrCodeInternal, "internal error", err)
	}
	status := statusFor(pe.Code)
	if pe.Code == models.ErrCodeRateLimited {
		c.Header("Retry-After", strconv.Itoa(30))
	}
	c.JSON(status, pe.ToDetail(requestID))
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeError(c, models.NewPeelError(models.ErrCodeValidation, err.Error(), nil))
		return false
	}
	return true
}

// Fetch handles POST /v1/fetch.
func (h *Handler) Fetch(c *gin.Context) {
	var req models.PeelRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.peeler.Peel(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search handles POST /v1/search.
func (h *Handler) Search(c *gin.Context) {
	var req models.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	hits, err := h.searcher.Search(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": hits,
		"total":   len(hits),
		"data":    firecrawlHits(hits),
	})
}

// Answer handles POST /v1/answer: a fetch with the question filter,
// returning only the quick answer.
func (h *Handler) Answer(c *gin.Context) {
	var req models.AnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.peeler.Peel(c.Request.Context(), &models.PeelRequest{
		URL:      req.URL,
		Question: req.Question,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":    res.Answer,
		"url":       res.URL,
		"requestId": middleware.GetRequestID(c),
	})
}

// Extract handles POST /v1/extract: a fetch where the extract config is
// mandatory, returning only the extracted fields.
func (h *Handler) Extract(c *gin.Context) {
	var req models.PeelRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Extract == nil {
		writeError(c, models.NewPeelError(models.ErrCodeValidation, "extract config is required", nil))
		return
	}
	res, err := h.peeler.Peel(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"extracted": res.Extracted,
		"url":       res.URL,
	})
}

// Health handles GET /health. It sits outside auth.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
