// Package config loads and persists BotShepherd configuration.
//
// Configuration lives in a single directory (default /app/config) and is
// split across two files: global.yaml for service-wide settings and
// connections.yaml for proxy connection definitions. An optional .env
// file in the same directory is loaded first.
//
// Environment variables with the BS_ prefix override file values using
// underscore-separated paths (e.g. BS_SERVER_PORT, BS_SECURITY_MAX_ATTEMPTS).
//
// Missing files are created with defaults on first run. A Manager wraps
// the loaded state and serializes concurrent access from the admin API
// and the proxy.
//
// # Usage
//
//	mgr, err := config.NewManager("/app/config", "/app/data")
//	cfg := mgr.Global()
//	table, issues := mgr.Routes()
package config
