package proxy

import (
	"sync"
	"time"

	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/onebot"
)

const (
	// echoTTL is how long a pending call waits for its response before a
	// sweep may discard it.
	echoTTL = 120 * time.Second

	// echoSweepEvery triggers a sweep whenever the cache size reaches a
	// multiple of it; a growing cache means responses are not coming back.
	echoSweepEvery = 100
)

// pendingCall is one relayed API request awaiting its response. The
// request is kept so a successful send can be recorded as outbound
// message history.
type pendingCall struct {
	request      *onebot.Event
	targetIndex  int
	originalEcho string
	createdAt    time.Time
}

// echoCache correlates relayed API requests with their responses, keyed
// by the rewritten echo value.
type echoCache struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
	log     *logger.Logger
	now     func() time.Time
}

func newEchoCache(log *logger.Logger) *echoCache {
	return &echoCache{
		entries: make(map[string]*pendingCall),
		log:     log,
		now:     time.Now,
	}
}

// register stores a pending call under its rewritten echo. Frameworks
// that reuse echo values overwrite their previous entry.
func (c *echoCache) register(key string, call *pendingCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.log.Warn("Echo key already pending, overwriting", logger.Fields("echo", key))
	}
	call.createdAt = c.now()
	c.entries[key] = call

	if len(c.entries)%echoSweepEvery == 0 {
		c.log.Warn("Echo cache keeps growing, sweeping stale entries", logger.Fields("size", len(c.entries)))
		c.sweepLocked()
	}
}

// take removes and returns the pending call for a response echo.
func (c *echoCache) take(key string) (*pendingCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return call, ok
}

func (c *echoCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *echoCache) sweepLocked() {
	cutoff := c.now().Add(-echoTTL)
	removed := 0
	for key, call := range c.entries {
		if call.createdAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug("Swept stale echo entries", logger.Fields("removed", removed, "remaining", len(c.entries)))
	}
}
