package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/booth"
	obscontext "github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/context"
)

type triggerRequest struct {
	Source     string `json:"source"`
	DurationMS int64  `json:"durationMs"`
}

// Trigger accepts a capture request. The response is always an immediate
// "accepted"; success or failure arrives asynchronously on the event stream.
func (s *Server) Trigger(c *gin.Context) {
	if !s.limiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError("malformed trigger request"))
			return
		}
	}
	if req.DurationMS < 0 || req.DurationMS > 60_000 {
		AbortWithError(c, invalidRequestError("durationMs out of range"))
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}

	ctx := obscontext.WithTriggerSource(c.Request.Context(), source)
	s.booth.Trigger(ctx, booth.TriggerRequest{
		Source:            source,
		CountdownOverride: time.Duration(req.DurationMS) * time.Millisecond,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"requestId": obscontext.RequestIDFromGin(c),
	})
}
