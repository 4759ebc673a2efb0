package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/Anyuluo996/BotShepherd/component"
)

// Component runs the hub under the component lifecycle so the live
// feed starts and stops with the rest of the server.
type Component struct {
	hub  *Hub
	wg   sync.WaitGroup
	mu   sync.Mutex
	path string
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the component with a fresh hub. path is the
// route the stream is served on, shown in the startup summary.
func NewComponent(path string) *Component {
	return &Component{
		hub:  NewHub(),
		path: path,
	}
}

// Hub returns the hub for broadcasting and for the events handler.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start launches the hub's delivery loop.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()

	return nil
}

// Stop shuts the hub down and waits for the delivery loop to exit.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hub.Stop()
	c.wg.Wait()
	return nil
}

// Health reports the subscriber count. The hub has no failure mode of
// its own, so the status is always healthy.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", c.hub.ClientCount()),
	}
}

// Describe returns summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Live Feed",
		Type:    "sse",
		Details: fmt.Sprintf("streaming on %s", c.path),
	}
}
