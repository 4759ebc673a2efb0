package sse

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants for the live feed.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeSessionUp is sent when a client bot session comes up.
	EventTypeSessionUp = "session_up"

	// EventTypeSessionDown is sent when a client bot session ends.
	EventTypeSessionDown = "session_down"

	// EventTypeTargetState is sent when a target connection changes state.
	EventTypeTargetState = "target_state"

	// EventTypeCounters carries updated per-session message counters.
	EventTypeCounters = "counters"

	// EventTypeReload is sent after the route table was reloaded.
	EventTypeReload = "reload"

	// EventTypeShutdown is sent when the server begins graceful shutdown.
	EventTypeShutdown = "shutdown"
)

// DashboardPattern matches every dashboard subscriber.
const DashboardPattern = "dashboard:*"

// Event is one feed entry as delivered to dashboard clients.
type Event struct {
	Type         string         `json:"type"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Time         time.Time      `json:"time"`
	Data         map[string]any `json:"data,omitempty"`
}

// DashboardClientID mints a client ID under the dashboard namespace.
func DashboardClientID() string {
	return "dashboard:" + uuid.NewString()
}
