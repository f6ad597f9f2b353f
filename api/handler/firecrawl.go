package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
)

// Firecrawl-compat layer. POST /v1/scrape takes the Firecrawl request
// shape; the shared crawl/search/map endpoints return supersets that
// include the {success, data} envelope Firecrawl clients expect.

// Scrape handles POST /v1/scrape in the Firecrawl shape.
func (h *Handler) Scrape(c *gin.Context) {
	var req models.FirecrawlScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeFirecrawlError(c, models.NewPeelError(models.ErrCodeValidation, err.Error(), nil))
		return
	}

	res, err := h.peeler.Peel(c.Request.Context(), req.ToPeelRequest())
	if err != nil {
		writeFirecrawlError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FirecrawlResponse{
		Success: true,
		Data:    models.ToFirecrawlDocument(res),
	})
}

// writeFirecrawlError renders the Firecrawl error envelope.
func writeFirecrawlError(c *gin.Context, err error) {
	pe, ok := err.(*models.PeelError)
	if !ok {
		pe = models.NewPeelError(models.ErrCodeInternal, "internal error", err)
	}
	c.JSON(statusFor(pe.Code), models.FirecrawlResponse{Success: false, Error: pe.Message})
}

// firecrawlHits maps search hits to Firecrawl's result shape.
func firecrawlHits(hits []models.SearchHit) []gin.H {
	out := make([]gin.H, len(hits))
	for i, hit := range hits {
		out[i] = gin.H{"title": hit.Title, "url": hit.URL, "description": hit.Snippet}
	}
	return out
}
