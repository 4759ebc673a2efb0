package sse

import (
	"encoding/json"
	"time"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// Feed publishes proxy state changes to dashboard subscribers. A Feed
// over a nil Broadcaster drops everything, so callers do not have to
// guard the disabled case.
type Feed struct {
	b Broadcaster
}

// NewFeed creates a feed over the given broadcaster, usually the hub.
func NewFeed(b Broadcaster) *Feed {
	return &Feed{b: b}
}

// Publish marshals one event and broadcasts it to all dashboard clients.
func (f *Feed) Publish(eventType, connectionID string, data map[string]any) {
	if f == nil || f.b == nil {
		return
	}
	payload, err := json.Marshal(Event{
		Type:         eventType,
		ConnectionID: connectionID,
		Time:         time.Now(),
		Data:         data,
	})
	if err != nil {
		logger.Error("[SSE] Event marshal failed", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
		return
	}
	f.b.BroadcastToPattern(DashboardPattern, payload)
}

// SessionUp reports a new client bot session.
func (f *Feed) SessionUp(connectionID, selfID string) {
	f.Publish(EventTypeSessionUp, connectionID, map[string]any{"self_id": selfID})
}

// SessionDown reports a closed client bot session.
func (f *Feed) SessionDown(connectionID, reason string) {
	f.Publish(EventTypeSessionDown, connectionID, map[string]any{"reason": reason})
}

// TargetState reports a target connection going up or down.
func (f *Feed) TargetState(connectionID string, targetIndex int, online bool) {
	f.Publish(EventTypeTargetState, connectionID, map[string]any{
		"target_index": targetIndex,
		"online":       online,
	})
}

// Counters reports updated message counters for a session.
func (f *Feed) Counters(connectionID string, received, sent int64) {
	f.Publish(EventTypeCounters, connectionID, map[string]any{
		"received": received,
		"sent":     sent,
	})
}

// Reload reports a completed route table reload.
func (f *Feed) Reload(routes int) {
	f.Publish(EventTypeReload, "", map[string]any{"routes": routes})
}

// Shutdown tells subscribers the server is going away so dashboards can
// distinguish a planned stop from a dropped stream.
func (f *Feed) Shutdown() {
	f.Publish(EventTypeShutdown, "", nil)
}
