package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Anyuluo996/BotShepherd/security"
	"github.com/Anyuluo996/BotShepherd/validation"
)

// ConnectionConfig defines one proxy connection: a client endpoint the
// proxy listens on and the target endpoints events are forwarded to.
type ConnectionConfig struct {
	// ID is the map key in connections.yaml, filled in by the loader.
	ID string `yaml:"-" json:"id"`

	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`

	// ClientEndpoint is the ws:// URL the bot client connects to.
	// The path registers in the route table; a port other than the main
	// server port gets its own listener.
	ClientEndpoint string `yaml:"client_endpoint" json:"client_endpoint"`

	TargetEndpoints []*TargetEndpoint `yaml:"target_endpoints" json:"target_endpoints"`
}

// TargetEndpoint is one forwarding destination. In YAML it can be a
// plain URL string or an object with extra settings.
type TargetEndpoint struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// SakoyaProtocol marks the target as speaking the sakoya dialect;
	// frames are translated by the sakoya adapter.
	SakoyaProtocol bool `yaml:"sakoya_protocol,omitempty" json:"sakoya_protocol,omitempty"`

	// Disabled skips the target without removing it from config.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	TLS *security.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// UnmarshalYAML accepts either a URL string or a full endpoint object.
func (t *TargetEndpoint) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var u string
		if err := value.Decode(&u); err != nil {
			return err
		}
		*t = TargetEndpoint{URL: u}
		return nil
	}
	type plain TargetEndpoint
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TargetEndpoint(p)
	return nil
}

// MarshalYAML writes a bare string when no extra settings are present,
// keeping hand-edited files round-trippable.
func (t *TargetEndpoint) MarshalYAML() (any, error) {
	if len(t.Headers) == 0 && !t.SakoyaProtocol && !t.Disabled && t.TLS == nil {
		return t.URL, nil
	}
	type plain TargetEndpoint
	return (*plain)(t), nil
}

// Validate checks a connection definition. All problems are collected
// so an admin editing a connection sees them in one round trip.
func (c *ConnectionConfig) Validate() error {
	v := validation.New()
	v.Required("client_endpoint", c.ClientEndpoint)
	if c.ClientEndpoint != "" {
		if _, _, _, err := ParseClientEndpoint(c.ClientEndpoint); err != nil {
			v.AddError("client_endpoint", err.Error())
		}
	}
	v.Custom("target_endpoints", len(c.TargetEndpoints) > 0, "at least one target endpoint is required")
	for i, target := range c.TargetEndpoints {
		field := fmt.Sprintf("target_endpoints[%d]", i)
		if target.URL == "" {
			v.AddError(field, "url is required")
			continue
		}
		u, err := url.Parse(target.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			v.AddError(field, fmt.Sprintf("%q is not a ws:// or wss:// URL", target.URL))
		}
		if err := target.TLS.Validate(); err != nil {
			v.AddError(field, err.Error())
		}
	}
	return v.Validate()
}

// Clone returns a deep copy safe to hand across goroutines.
func (c *ConnectionConfig) Clone() *ConnectionConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.TargetEndpoints = make([]*TargetEndpoint, len(c.TargetEndpoints))
	for i, target := range c.TargetEndpoints {
		out.TargetEndpoints[i] = target.Clone()
	}
	return &out
}

// Clone returns a deep copy of the target endpoint.
func (t *TargetEndpoint) Clone() *TargetEndpoint {
	if t == nil {
		return nil
	}
	out := *t
	if t.Headers != nil {
		out.Headers = make(map[string]string, len(t.Headers))
		for k, v := range t.Headers {
			out.Headers[k] = v
		}
	}
	if t.TLS != nil {
		tlsCopy := *t.TLS
		out.TLS = &tlsCopy
	}
	return &out
}

// ParseClientEndpoint splits a ws:// client endpoint into host, port
// and path. The path defaults to "/" when absent.
func ParseClientEndpoint(endpoint string) (host string, port int, path string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", 0, "", fmt.Errorf("invalid client_endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" {
		return "", 0, "", fmt.Errorf("unsupported client_endpoint scheme %q (only ws:// is accepted)", u.Scheme)
	}
	host = u.Hostname()
	if host == "" {
		return "", 0, "", fmt.Errorf("client_endpoint %q has no host", endpoint)
	}
	portStr := u.Port()
	if portStr == "" {
		return "", 0, "", fmt.Errorf("client_endpoint %q has no port", endpoint)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, "", fmt.Errorf("client_endpoint %q has invalid port %q", endpoint, portStr)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return host, port, path, nil
}

// RouteTable maps listening port to path to connection ID.
type RouteTable map[int]map[string]string

// Lookup resolves a request path on a port to a connection ID. The path
// is normalized the same way BuildRoutes normalizes route paths.
func (t RouteTable) Lookup(port int, path string) (string, bool) {
	paths, ok := t[port]
	if !ok {
		return "", false
	}
	id, ok := paths[normalizePath(path)]
	return id, ok
}

// Count returns the number of routed paths across all ports.
func (t RouteTable) Count() int {
	n := 0
	for _, paths := range t {
		n += len(paths)
	}
	return n
}

// Serves reports whether any route points at the given connection ID.
func (t RouteTable) Serves(id string) bool {
	for _, paths := range t {
		for _, routed := range paths {
			if routed == id {
				return true
			}
		}
	}
	return false
}

// RouteIssue describes a connection that could not be routed.
type RouteIssue struct {
	ConnectionID string
	Port         int
	Path         string
	Reason       string
}

// BuildRoutes derives the route table from connection definitions.
// Disabled and invalid connections are skipped and reported as issues.
// When two connections claim the same port and path, the first in
// ID order wins and later ones are reported.
func BuildRoutes(conns map[string]*ConnectionConfig) (RouteTable, []RouteIssue) {
	table := make(RouteTable)
	var issues []RouteIssue

	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		conn := conns[id]
		if !conn.Enabled {
			continue
		}
		_, port, path, err := ParseClientEndpoint(conn.ClientEndpoint)
		if err != nil {
			issues = append(issues, RouteIssue{
				ConnectionID: id,
				Reason:       err.Error(),
			})
			continue
		}
		path = normalizePath(path)
		if table[port] == nil {
			table[port] = make(map[string]string)
		}
		if existing, ok := table[port][path]; ok {
			issues = append(issues, RouteIssue{
				ConnectionID: id,
				Port:         port,
				Path:         path,
				Reason:       fmt.Sprintf("path already routed to connection %s", existing),
			})
			continue
		}
		table[port][path] = id
	}

	return table, issues
}

// normalizePath strips a trailing slash so /ws/client and /ws/client/
// route identically. The root path stays "/".
func normalizePath(p string) string {
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" {
		p = "/"
	}
	return p
}
