package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// keepAliveInterval must stay below typical reverse proxy idle
// timeouts, commonly 60s.
const keepAliveInterval = 30 * time.Second

// ConnectedEvent is the first frame a subscriber receives.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
}

// ServeSSE runs one event-stream connection. It registers the client,
// streams hub events until the request context ends, then unregisters.
// Called from the admin API's events handler.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("[SSE] Streaming not supported", map[string]interface{}{
			"client_id": clientID,
		})
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// The stream outlives any server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("[SSE] Could not clear write deadline", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx must not buffer the stream

	client := NewClient(clientID)
	hub.Register(client)
	defer hub.Unregister(client)

	hello, _ := json.Marshal(ConnectedEvent{ClientID: clientID})
	_, _ = fmt.Fprintf(w, "event: %s\n", EventTypeConnected)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", hello)
	flusher.Flush()

	logger.Debug("[SSE] Client connected", map[string]interface{}{
		"client_id":   clientID,
		"remote_addr": r.RemoteAddr,
	})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("[SSE] Client disconnected", map[string]interface{}{
				"client_id": clientID,
				"reason":    ctx.Err().Error(),
			})
			return

		case event, ok := <-client.Events():
			if !ok {
				// Hub shut down or unregistered us.
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()

		case <-keepAlive.C:
			// SSE comment line, ignored by clients but keeps
			// intermediaries from closing the idle connection.
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}
