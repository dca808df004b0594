package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/trainer/internal/trainer"
)

// Stream intervals. Vars so tests can shorten them.
var (
	tickInterval      = time.Second
	heartbeatInterval = 15 * time.Second
)

// elapsedEvent refreshes the session timer.
type elapsedEvent struct {
	BranchID       string `json:"branchId"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
}

// handleEvents streams controller events, a once-a-second elapsed tick while
// a session is focused, and a periodic heartbeat.
func (s *server) handleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := make(chan trainer.Event, 64)
	cancel := s.ctrl.Subscribe(func(ev trainer.Event) {
		select {
		case events <- ev:
		default:
			// Slow client; the next snapshot request resyncs it.
		}
	})
	defer cancel()

	writeSSE(c.Writer, "connected", gin.H{"type": "connected", "phase": s.ctrl.Phase()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(tickInterval)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			writeSSE(c.Writer, string(ev.Kind), ev)
			c.Writer.Flush()
		case <-ticker.C:
			id := s.ctrl.CurrentBranchID()
			if id == "" {
				continue
			}
			writeSSE(c.Writer, "elapsed", elapsedEvent{
				BranchID:       id,
				ElapsedSeconds: int64(s.ctrl.Elapsed() / time.Second),
			})
			c.Writer.Flush()
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
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
