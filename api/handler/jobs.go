package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
)

// Crawl handles POST /v1/crawl: start an async BFS crawl.
func (h *Handler) Crawl(c *gin.Context) {
	var req models.CrawlRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.StartCrawl(&req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      job.ID,
		"status":  job.Status,
		"url":     req.URL,
	})
}

// CrawlStatus handles GET /v1/crawl/:id.
func (h *Handler) CrawlStatus(c *gin.Context) {
	h.jobStatus(c, c.Param("id"))
}

// JobStatus handles GET /v1/jobs/:id for any job kind.
func (h *Handler) JobStatus(c *gin.Context) {
	h.jobStatus(c, c.Param("id"))
}

func (h *Handler) jobStatus(c *gin.Context, id string) {
	snap, ok := h.jobs.Status(id)
	if !ok {
		writeError(c, models.NewPeelError(models.ErrCodeNotFound, "unknown job id: "+id, nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        snap.ID,
		"kind":      snap.Kind,
		"status":    models.FirecrawlJobStatus(snap.Status),
		"completed": snap.Completed,
		"total":     snap.Total,
		"results":   snap.Results,
		"changes":   snap.Changes,
		"data":      snap.Results,
	})
}

// Batch handles POST /v1/batch: peel up to 100 URLs as one job.
func (h *Handler) Batch(c *gin.Context) {
	var req models.BatchRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.StartBatch(&req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Watch handles POST /v1/watch: monitor a URL for content changes.
func (h *Handler) Watch(c *gin.Context) {
	var req models.WatchRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.StartWatch(&req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Map handles POST /v1/map: synchronous URL discovery.
func (h *Handler) Map(c *gin.Context) {
	var req models.MapRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.jobs.Map(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": resp.Success,
		"urls":    resp.URLs,
		"links":   resp.URLs,
		"total":   resp.Total,
	})
}

// DeepFetch handles POST /v1/deep-fetch: a page plus its most relevant
// outbound links, peeled synchronously.
func (h *Handler) DeepFetch(c *gin.Context) {
	var req models.DeepFetchRequest
	if !bindJSON(c, &req) {
		return
	}
	results, err := h.jobs.DeepFetch(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}
