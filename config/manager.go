package config

import (
	"sort"
	"sync"

	"github.com/Anyuluo996/BotShepherd/errors"
)

// Manager owns the loaded configuration and serializes access from the
// admin API, the proxy and the command system. Connection edits are
// persisted to connections.yaml immediately.
type Manager struct {
	mu    sync.RWMutex
	dir   string
	cfg   *Config
	conns map[string]*ConnectionConfig
}

// NewManager loads global and connection configuration from configDir.
func NewManager(configDir, dataDir, logsDir string) (*Manager, error) {
	cfg, err := Load(configDir, dataDir, logsDir)
	if err != nil {
		return nil, err
	}
	conns, err := LoadConnections(configDir)
	if err != nil {
		return nil, err
	}
	return &Manager{dir: configDir, cfg: cfg, conns: conns}, nil
}

// Global returns the global configuration. The returned value is shared;
// treat it as read-only.
func (m *Manager) Global() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Connections returns a snapshot of all connection definitions,
// sorted by ID.
func (m *Manager) Connections() []*ConnectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ConnectionConfig, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, conn.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connection returns a copy of one connection definition.
func (m *Manager) Connection(id string) (*ConnectionConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[id]
	if !ok {
		return nil, false
	}
	return conn.Clone(), true
}

// SetConnection validates, stores and persists a connection definition.
// An existing connection with the same ID is replaced.
func (m *Manager) SetConnection(conn *ConnectionConfig) error {
	if conn == nil || conn.ID == "" {
		return errors.MissingField("id")
	}
	if err := conn.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn.Clone()
	return SaveConnections(m.dir, m.conns)
}

// DeleteConnection removes a connection definition and persists the
// change. Deleting an unknown ID is an error.
func (m *Manager) DeleteConnection(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[id]; !ok {
		return errors.NotFound("connection", id)
	}
	delete(m.conns, id)
	return SaveConnections(m.dir, m.conns)
}

// Routes derives the current route table from enabled connections.
func (m *Manager) Routes() (RouteTable, []RouteIssue) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BuildRoutes(m.conns)
}

// ConnectionMap returns a snapshot keyed by connection ID, used by the
// proxy when (re)building sessions.
func (m *Manager) ConnectionMap() map[string]*ConnectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*ConnectionConfig, len(m.conns))
	for id, conn := range m.conns {
		out[id] = conn.Clone()
	}
	return out
}
