package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/logger"
)

const sseHeartbeatInterval = 15 * time.Second

// StreamEvents serves the capture event feed as server-sent events. Each
// client gets its own broker subscription; slow clients drop events rather
// than stall captures.
func (s *Server) StreamEvents(c *gin.Context) {
	log := logger.FromContext(c.Request.Context()).Named("sse")

	events, cancel := s.broker.Subscribe(c.Request.Context())
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	log.Debug("event stream opened")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind()), ev)
			return true
		case <-heartbeat.C:
			// Comment line keeps intermediaries from closing idle streams.
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Debug("event stream closed")
}
