package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/foreman/internal/planner"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 15 * time.Second

// handleSSE streams planner updates as server-sent events for clients
// that cannot hold a websocket.
func handleSSE(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		updates := make(chan planner.Update, 32)
		unsubscribe := s.pl.Subscribe(func(u planner.Update) {
			select {
			case updates <- u:
			default:
			}
		})
		defer unsubscribe()

		snap := s.pl.Snapshot()
		writeSSE(c.Writer, "connected", map[string]any{
			"score": snap.Analysis.Score,
			"tasks": len(snap.Tasks),
		})
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": s.now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case u := <-updates:
				writeSSE(c.Writer, u.Type, u)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
