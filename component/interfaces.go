package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed piece of the process. The database,
// archiver, proxy, event hub and HTTP server all implement it and are
// driven by the bootstrap registry.
type Component interface {
	// Name returns the unique name used for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health reports current health. The /health endpoint aggregates
	// these across all registered components.
	Health(ctx context.Context) Health
}

// Description is what a Describable component reports about itself for
// the startup display.
type Description struct {
	// Name is the display name (e.g. "HTTP Server", "SQLite"). Empty
	// falls back to the component's Name().
	Name string
	// Type categorizes the component: "database", "server", "proxy", "events".
	Type string
	// Details is a one-liner shown in the startup summary, for example
	// "/app/data/botshepherd.db pool=4" or "2 connections, 3 targets".
	Details string
	// Port is the primary port, 0 if not applicable.
	Port int
}

// Describable is optionally implemented by components. Registered
// components that implement it appear in the infrastructure section of
// the startup summary without manual TrackInfrastructure calls.
type Describable interface {
	Describe() Description
}

// Route holds a single HTTP route for the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider is optionally implemented by server components to
// auto-report registered HTTP routes for the startup summary.
type RouteProvider interface {
	Routes() []Route
}
