package sse

// Broadcaster fans event data out to subscribed clients. The Feed
// publishes through this rather than a concrete Hub, so tests can
// capture broadcasts and a disabled hub costs nothing.
type Broadcaster interface {
	// BroadcastToPattern sends data to all clients whose subscription
	// matches the glob-style pattern (e.g. "dashboard:*").
	BroadcastToPattern(pattern string, data []byte)
}
