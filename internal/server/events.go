package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleDesignEvents streams change notifications for one editor as server-sent events.
// The stream opens with the current version so clients can resynchronize after reconnecting.
func (h *httpHandler) handleDesignEvents(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, editor.ID())
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(RealtimeEventDesignChanged, RealtimeMessage{
		EditorID:  editor.ID(),
		Version:   editor.View().Version,
		Timestamp: time.Now().UTC(),
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(realtimeHeartbeatInterval)
	defer heartbeat.Stop()
	h.logger.Debug("design event stream opened", zap.String("editor_id", editor.ID()))
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.EventType, message)
			c.Writer.Flush()
			if message.EventType == RealtimeEventClosed {
				return
			}
		case tick := <-heartbeat.C:
			editor.Touch()
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": tick.UTC()})
			c.Writer.Flush()
		}
	}
}
