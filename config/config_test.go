package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Anyuluo996/BotShepherd/security"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 5111 {
		t.Errorf("expected port 5111, got %d", cfg.Server.Port)
	}
	if cfg.CommandPrefix != "bs" {
		t.Errorf("expected prefix bs, got %q", cfg.CommandPrefix)
	}
	if cfg.Security.MaxAttempts != 3 {
		t.Errorf("expected max_attempts 3, got %d", cfg.Security.MaxAttempts)
	}
	if cfg.Security.BanDuration != 30 {
		t.Errorf("expected ban_duration 30, got %d", cfg.Security.BanDuration)
	}
	if cfg.Security.AuthEnabled {
		t.Error("expected auth disabled by default")
	}
	if cfg.Web.SessionTTL != "24h" {
		t.Errorf("expected session_ttl 24h, got %q", cfg.Web.SessionTTL)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"port zero", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"max_attempts zero", func(c *Config) { c.Security.MaxAttempts = 0 }, "security.max_attempts"},
		{"ban_duration zero", func(c *Config) { c.Security.BanDuration = 0 }, "security.ban_duration"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestParseClientEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantPort int
		wantPath string
		wantErr  bool
	}{
		{"full endpoint", "ws://0.0.0.0:5111/ws/client", "0.0.0.0", 5111, "/ws/client", false},
		{"no path defaults to root", "ws://127.0.0.1:6700", "127.0.0.1", 6700, "/", false},
		{"extra port", "ws://0.0.0.0:6088/onebot", "0.0.0.0", 6088, "/onebot", false},
		{"wss rejected", "wss://0.0.0.0:5111/ws", "", 0, "", true},
		{"http rejected", "http://0.0.0.0:5111/ws", "", 0, "", true},
		{"no port", "ws://0.0.0.0/ws", "", 0, "", true},
		{"no host", "ws://:5111/ws", "", 0, "", true},
		{"garbage", "not a url", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, path, err := ParseClientEndpoint(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost || port != tt.wantPort || path != tt.wantPath {
				t.Errorf("got (%q, %d, %q), want (%q, %d, %q)",
					host, port, path, tt.wantHost, tt.wantPort, tt.wantPath)
			}
		})
	}
}

func TestTargetEndpointUnmarshalYAML(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		var target TargetEndpoint
		if err := yaml.Unmarshal([]byte(`"ws://127.0.0.1:8080/ws"`), &target); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if target.URL != "ws://127.0.0.1:8080/ws" {
			t.Errorf("expected URL, got %q", target.URL)
		}
		if target.SakoyaProtocol {
			t.Error("expected sakoya_protocol false")
		}
	})

	t.Run("object form", func(t *testing.T) {
		data := []byte("url: wss://gsuid.example.com/ws/Bot\nsakoya_protocol: true\nheaders:\n  Authorization: Bearer abc\ntls:\n  skip_verify: true\n")
		var target TargetEndpoint
		if err := yaml.Unmarshal(data, &target); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if target.URL != "wss://gsuid.example.com/ws/Bot" {
			t.Errorf("unexpected URL %q", target.URL)
		}
		if !target.SakoyaProtocol {
			t.Error("expected sakoya_protocol true")
		}
		if target.Headers["Authorization"] != "Bearer abc" {
			t.Errorf("unexpected headers %v", target.Headers)
		}
		if target.TLS == nil || !target.TLS.SkipVerify {
			t.Error("expected tls.skip_verify true")
		}
	})

	t.Run("string round-trips as string", func(t *testing.T) {
		target := &TargetEndpoint{URL: "ws://127.0.0.1:8080/ws"}
		out, err := yaml.Marshal(target)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if strings.Contains(string(out), "url:") {
			t.Errorf("expected bare string, got %q", string(out))
		}
	})
}

func TestConnectionConfigValidate(t *testing.T) {
	valid := func() *ConnectionConfig {
		return &ConnectionConfig{
			ID:             "main",
			Enabled:        true,
			ClientEndpoint: "ws://0.0.0.0:5111/ws/client",
			TargetEndpoints: []*TargetEndpoint{
				{URL: "ws://127.0.0.1:8080/onebot/v11/ws"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{"valid", func(c *ConnectionConfig) {}, ""},
		{"missing client endpoint", func(c *ConnectionConfig) { c.ClientEndpoint = "" }, "client_endpoint: is required"},
		{"bad client endpoint", func(c *ConnectionConfig) { c.ClientEndpoint = "tcp://0.0.0.0:1/x" }, "scheme"},
		{"no targets", func(c *ConnectionConfig) { c.TargetEndpoints = nil }, "at least one target"},
		{"bad target scheme", func(c *ConnectionConfig) {
			c.TargetEndpoints = []*TargetEndpoint{{URL: "http://example.com/ws"}}
		}, "not a ws:// or wss:// URL"},
		{"tls cert without key", func(c *ConnectionConfig) {
			c.TargetEndpoints[0].TLS = &security.TLSConfig{CertFile: "cert.pem"}
		}, "cert_file and key_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := valid()
			tt.mutate(conn)
			err := conn.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestBuildRoutes(t *testing.T) {
	conns := map[string]*ConnectionConfig{
		"alpha": {
			ID: "alpha", Enabled: true,
			ClientEndpoint:  "ws://0.0.0.0:5111/ws/client",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t1/ws"}},
		},
		"beta": {
			ID: "beta", Enabled: true,
			ClientEndpoint:  "ws://0.0.0.0:6088/ws/other",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t2/ws"}},
		},
		"gamma": {
			ID: "gamma", Enabled: false,
			ClientEndpoint:  "ws://0.0.0.0:5111/ws/disabled",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t3/ws"}},
		},
	}

	table, issues := BuildRoutes(conns)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if got := table[5111]["/ws/client"]; got != "alpha" {
		t.Errorf("expected alpha on 5111 /ws/client, got %q", got)
	}
	if got := table[6088]["/ws/other"]; got != "beta" {
		t.Errorf("expected beta on 6088 /ws/other, got %q", got)
	}
	if _, ok := table[5111]["/ws/disabled"]; ok {
		t.Error("disabled connection must not be routed")
	}
}

func TestBuildRoutesConflictFirstWins(t *testing.T) {
	conns := map[string]*ConnectionConfig{
		"aaa": {
			ID: "aaa", Enabled: true,
			ClientEndpoint:  "ws://0.0.0.0:5111/ws/client",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t1/ws"}},
		},
		"bbb": {
			ID: "bbb", Enabled: true,
			ClientEndpoint:  "ws://0.0.0.0:5111/ws/client/",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t2/ws"}},
		},
	}

	table, issues := BuildRoutes(conns)
	if got := table[5111]["/ws/client"]; got != "aaa" {
		t.Errorf("expected first connection in ID order to win, got %q", got)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 conflict issue, got %d", len(issues))
	}
	if issues[0].ConnectionID != "bbb" {
		t.Errorf("expected bbb reported, got %q", issues[0].ConnectionID)
	}
	if !strings.Contains(issues[0].Reason, "aaa") {
		t.Errorf("expected reason naming the winner, got %q", issues[0].Reason)
	}
}

func TestBuildRoutesInvalidEndpoint(t *testing.T) {
	conns := map[string]*ConnectionConfig{
		"bad": {
			ID: "bad", Enabled: true,
			ClientEndpoint:  "ws://0.0.0.0/no-port",
			TargetEndpoints: []*TargetEndpoint{{URL: "ws://t1/ws"}},
		},
	}
	table, issues := BuildRoutes(conns)
	if len(table) != 0 {
		t.Errorf("expected empty table, got %v", table)
	}
	if len(issues) != 1 || issues[0].ConnectionID != "bad" {
		t.Fatalf("expected one issue for bad, got %v", issues)
	}
}

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	dataDir := t.TempDir()

	cfg, err := Load(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 5111 {
		t.Errorf("expected default port 5111, got %d", cfg.Server.Port)
	}
	if cfg.Web.PasswordHash == "" {
		t.Error("expected generated password hash")
	}
	if cfg.Web.JWTSecret == "" {
		t.Error("expected generated jwt secret")
	}
	if cfg.Database.Path != filepath.Join(dataDir, "botshepherd.db") {
		t.Errorf("unexpected database path %q", cfg.Database.Path)
	}

	if _, err := os.Stat(filepath.Join(dir, "global.yaml")); err != nil {
		t.Errorf("expected global.yaml written: %v", err)
	}

	// Second load must reuse the generated credentials.
	cfg2, err := Load(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if cfg2.Web.PasswordHash != cfg.Web.PasswordHash {
		t.Error("expected password hash to be stable across loads")
	}
	if cfg2.Web.JWTSecret != cfg.Web.JWTSecret {
		t.Error("expected jwt secret to be stable across loads")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	dataDir := t.TempDir()

	t.Setenv("BS_SERVER_PORT", "6100")
	t.Setenv("BS_SECURITY_MAX_ATTEMPTS", "5")

	cfg, err := Load(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 6100 {
		t.Errorf("expected env override port 6100, got %d", cfg.Server.Port)
	}
	if cfg.Security.MaxAttempts != 5 {
		t.Errorf("expected env override max_attempts 5, got %d", cfg.Security.MaxAttempts)
	}
}

func TestLoadConnectionsFirstRun(t *testing.T) {
	dir := t.TempDir()

	conns, err := LoadConnections(dir)
	if err != nil {
		t.Fatalf("LoadConnections failed: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("expected one example connection, got %d", len(conns))
	}
	example, ok := conns["example"]
	if !ok {
		t.Fatal("expected example connection")
	}
	if example.Enabled {
		t.Error("example connection must start disabled")
	}

	if _, err := os.Stat(filepath.Join(dir, "connections.yaml")); err != nil {
		t.Errorf("expected connections.yaml written: %v", err)
	}
}

func TestLoadConnectionsPreservesKeyCase(t *testing.T) {
	dir := t.TempDir()
	content := "MyBot:\n  enabled: true\n  client_endpoint: ws://0.0.0.0:5111/ws/mybot\n  target_endpoints:\n    - ws://127.0.0.1:8080/ws\n"
	if err := os.WriteFile(filepath.Join(dir, "connections.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	conns, err := LoadConnections(dir)
	if err != nil {
		t.Fatalf("LoadConnections failed: %v", err)
	}
	conn, ok := conns["MyBot"]
	if !ok {
		t.Fatalf("expected key case preserved, got %v", conns)
	}
	if conn.ID != "MyBot" {
		t.Errorf("expected ID filled from key, got %q", conn.ID)
	}
	if len(conn.TargetEndpoints) != 1 || conn.TargetEndpoints[0].URL != "ws://127.0.0.1:8080/ws" {
		t.Errorf("unexpected targets %v", conn.TargetEndpoints)
	}
}

func TestManagerSetAndDeleteConnection(t *testing.T) {
	dir := t.TempDir()
	dataDir := t.TempDir()

	mgr, err := NewManager(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	conn := &ConnectionConfig{
		ID:             "main",
		Enabled:        true,
		ClientEndpoint: "ws://0.0.0.0:5111/ws/client",
		TargetEndpoints: []*TargetEndpoint{
			{URL: "ws://127.0.0.1:8080/onebot/v11/ws"},
		},
	}
	if err := mgr.SetConnection(conn); err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}

	got, ok := mgr.Connection("main")
	if !ok {
		t.Fatal("expected connection main")
	}
	if got.ClientEndpoint != conn.ClientEndpoint {
		t.Errorf("unexpected endpoint %q", got.ClientEndpoint)
	}

	// Mutating the returned copy must not affect the stored config.
	got.Enabled = false
	again, _ := mgr.Connection("main")
	if !again.Enabled {
		t.Error("expected stored connection unchanged after mutating a copy")
	}

	// The edit must persist across a reload.
	mgr2, err := NewManager(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, ok := mgr2.Connection("main"); !ok {
		t.Error("expected main to survive reload")
	}

	if err := mgr.DeleteConnection("main"); err != nil {
		t.Fatalf("DeleteConnection failed: %v", err)
	}
	if _, ok := mgr.Connection("main"); ok {
		t.Error("expected main gone after delete")
	}
	if err := mgr.DeleteConnection("main"); err == nil {
		t.Error("expected error deleting unknown connection")
	}
}

func TestManagerSetConnectionRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	dataDir := t.TempDir()

	mgr, err := NewManager(dir, dataDir, filepath.Join(dataDir, "logs"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if err := mgr.SetConnection(&ConnectionConfig{ID: "bad"}); err == nil {
		t.Error("expected validation error for empty connection")
	}
	if err := mgr.SetConnection(&ConnectionConfig{}); err == nil {
		t.Error("expected error for missing ID")
	}
}

func TestRouteTableLookup(t *testing.T) {
	table := RouteTable{
		5111: {"/ws/client": "main", "/": "root"},
		6000: {"/ws/ext": "ext"},
	}

	tests := []struct {
		name string
		port int
		path string
		want string
		ok   bool
	}{
		{"exact match", 5111, "/ws/client", "main", true},
		{"trailing slash normalized", 5111, "/ws/client/", "main", true},
		{"root path", 5111, "/", "root", true},
		{"other port", 6000, "/ws/ext", "ext", true},
		{"unknown path", 5111, "/nope", "", false},
		{"unknown port", 7000, "/ws/client", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Lookup(tt.port, tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Lookup(%d, %q) = %q, %v; want %q, %v", tt.port, tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRouteTableCountAndServes(t *testing.T) {
	table := RouteTable{
		5111: {"/ws/client": "main", "/": "root"},
		6000: {"/ws/ext": "ext"},
	}

	if got := table.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if !table.Serves("main") {
		t.Error("expected main to be served")
	}
	if !table.Serves("ext") {
		t.Error("expected ext to be served")
	}
	if table.Serves("ghost") {
		t.Error("expected ghost to not be served")
	}

	empty := RouteTable{}
	if got := empty.Count(); got != 0 {
		t.Errorf("empty Count() = %d, want 0", got)
	}
	if empty.Serves("main") {
		t.Error("expected empty table to serve nothing")
	}
}
