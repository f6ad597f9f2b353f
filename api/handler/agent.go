package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/models"
)

// Agent handles POST /v1/agent: a peel streamed as SSE tagged events so
// agent frontends can show progress. Every event is a models.AgentEvent
// with kind "progress", "result" or "error".
func (h *Handler) Agent(c *gin.Context) {
	var req models.PeelRequest
	if !bindJSON(c, &req) {
		return
	}
	req.AgentMode = true

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	send := func(ev *models.AgentEvent) {
		c.SSEvent("message", ev)
		c.Writer.Flush()
	}

	send(&models.AgentEvent{Kind: "progress", Stage: "fetch", Message: "fetching " + req.URL})

	res, err := h.peeler.Peel(c.Request.Context(), &req)
	if err != nil {
		var pe *models.PeelError
		if !errors.As(err, &pe) {
			pe = models.NewPeelError(models.ErrCodeInternal, "internal error", err)
		}
		send(&models.AgentEvent{Kind: "error", Error: pe.ToDetail(middleware.GetRequestID(c))})
		return
	}

	send(&models.AgentEvent{Kind: "progress", Stage: "distill", Message: "content ready"})
	send(&models.AgentEvent{Kind: "result", Result: res})
}
