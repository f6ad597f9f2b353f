// Package api wires the gin router: middleware chain, v1 endpoints and
// the Firecrawl-compatible facade.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/api/handler"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/crawl"
)

// NewRouter assembles the HTTP surface. Mode follows cfg.Server.Mode.
func NewRouter(cfg *config.Config, p handler.Peeler, jobs *crawl.Manager, s handler.Searcher) *gin.Engine {
	gin.SetMode(ginMode(cfg.Server.Mode))

	quota := middleware.NewMemoryQuota(cfg.Auth.WeeklyQuota)
	h := handler.New(p, jobs, s, quota, cfg.Auth.WeeklyQuota)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	v1.Use(middleware.Auth(cfg.Auth))
	v1.Use(middleware.RateLimit(cfg.RateLimit))
	v1.Use(middleware.Quota(quota))
	{
		v1.POST("/fetch", h.Fetch)
		v1.POST("/search", h.Search)
		v1.POST("/crawl", h.Crawl)
		v1.GET("/crawl/:id", h.CrawlStatus)
		v1.POST("/map", h.Map)
		v1.POST("/batch", h.Batch)
		v1.POST("/watch", h.Watch)
		v1.POST("/answer", h.Answer)
		v1.POST("/extract", h.Extract)
		v1.POST("/deep-fetch", h.DeepFetch)
		v1.POST("/agent", h.Agent)
		v1.GET("/jobs/:id", h.JobStatus)
		v1.GET("/usage", h.Usage)

		// Firecrawl facade. crawl/search/map share the native routes
		// above and reply with the {success, data} superset.
		v1.POST("/scrape", h.Scrape)
	}
	return r
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}
