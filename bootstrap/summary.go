package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Anyuluo996/BotShepherd/component"
)

// InfrastructureInfo holds detailed infrastructure component information.
type InfrastructureInfo struct {
	Name    string
	Type    string // e.g. "database", "server", "proxy", "events"
	Status  string
	Details string
	Port    int
	Healthy bool
}

// RouteInfo represents a registered HTTP route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// Summary tracks and displays the application bootstrap process.
// Infrastructure and routes are auto-collected from components implementing
// component.Describable and component.RouteProvider; the Track methods exist
// for anything that is not a registered component.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	infrastructure  []InfrastructureInfo
	routes          []RouteInfo
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName:    serviceName,
		version:        version,
		infrastructure: make([]InfrastructureInfo, 0),
		routes:         make([]RouteInfo, 0),
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackInfrastructure adds an infrastructure entry with detailed metadata.
func (s *Summary) TrackInfrastructure(name, componentType, status, details string, port int, healthy bool) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name:    name,
		Type:    componentType,
		Status:  status,
		Details: details,
		Port:    port,
		Healthy: healthy,
	})
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// collect gathers infrastructure and route info from self-describing components.
func (s *Summary) collect(registry *component.Registry, health []component.Health) (infra []InfrastructureInfo, routes []RouteInfo) {
	healthByName := make(map[string]component.Health, len(health))
	for _, h := range health {
		healthByName[h.Name] = h
	}

	infra = append(infra, s.infrastructure...)
	routes = append(routes, s.routes...)

	if registry == nil {
		return infra, routes
	}

	for _, c := range registry.All() {
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			name := desc.Name
			if name == "" {
				name = c.Name()
			}
			h, known := healthByName[c.Name()]
			healthy := !known || h.Status == component.StatusHealthy
			status := "active"
			if known {
				status = string(h.Status)
			}
			infra = append(infra, InfrastructureInfo{
				Name:    name,
				Type:    desc.Type,
				Status:  status,
				Details: desc.Details,
				Port:    desc.Port,
				Healthy: healthy,
			})
		}
		if rp, ok := c.(component.RouteProvider); ok {
			for _, r := range rp.Routes() {
				routes = append(routes, RouteInfo{
					Method:  r.Method,
					Path:    r.Path,
					Handler: r.Handler,
				})
			}
		}
	}
	return infra, routes
}

// DisplaySummary prints the bootstrap summary including live health from the registry.
func (s *Summary) DisplaySummary(registry *component.Registry) {
	var health []component.Health
	if registry != nil {
		health = registry.HealthAll(context.Background())
	}
	infrastructure, routes := s.collect(registry, health)

	// Header
	fmt.Printf("\n")
	fmt.Printf("🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	// Infrastructure
	if len(infrastructure) > 0 {
		fmt.Printf("📊 Infrastructure\n")
		for i, inf := range infrastructure {
			prefix := "├──"
			if i == len(infrastructure)-1 {
				prefix = "└──"
			}
			icon := statusIcon(inf.Status, inf.Healthy)
			details := inf.Details
			if inf.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, inf.Port)
			}
			fmt.Printf("   %s %s %s: %s\n", prefix, icon, inf.Name, details)
		}
		fmt.Printf("\n")
	} else {
		fmt.Printf("   └── No components registered\n")
	}

	// Routes
	if len(routes) > 0 {
		fmt.Printf("🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			prefix := "├──"
			if i == len(routes)-1 {
				prefix = "└──"
			}
			fmt.Printf("   %s %-7s %s → %s\n", prefix, r.Method, r.Path, r.Handler)
		}
	}

	// Live health check
	if len(health) > 0 {
		fmt.Printf("\n🏥 Health Check\n")
		healthy := 0
		for i, h := range health {
			prefix := "├──"
			if i == len(health)-1 {
				prefix = "└──"
			}
			icon := healthStatusIcon(h.Status)
			msg := ""
			if h.Message != "" {
				msg = fmt.Sprintf(" — %s", h.Message)
			}
			fmt.Printf("   %s %s %s: %s%s\n", prefix, icon, h.Name, strings.ToLower(string(h.Status)), msg)
			if h.Status == component.StatusHealthy {
				healthy++
			}
		}
		if healthy == len(health) {
			fmt.Printf("\n✅ All components healthy (%d/%d)\n", healthy, len(health))
		} else {
			fmt.Printf("\n⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(health))
		}
	}

	fmt.Printf("\n")
}

func statusIcon(status string, healthy bool) string {
	if !healthy {
		return "❌"
	}
	switch status {
	case "active", "initialized", "connected", "healthy":
		return "✅"
	case "inactive", "disabled":
		return "⏸️"
	case "error", "failed":
		return "❌"
	default:
		return "⚠️"
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
