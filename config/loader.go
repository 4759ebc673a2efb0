package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Anyuluo996/BotShepherd/auth/password"
)

const (
	// EnvPrefix scopes environment variable overrides, e.g. BS_SERVER_PORT.
	EnvPrefix = "BS_"

	globalFile      = "global.yaml"
	connectionsFile = "connections.yaml"
)

// Load reads global.yaml from configDir, applying .env and BS_-prefixed
// environment overrides, then defaults and validation. Missing files and
// credentials are generated on first run and written back to disk.
// logsDir is used when the config does not name a log directory.
func Load(configDir, dataDir, logsDir string) (*Config, error) {
	envFile := filepath.Join(configDir, ".env")
	if fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Printf("[config] warning: failed to load .env file %s: %v\n", envFile, err)
		}
	}

	v := viper.New()
	globalPath := filepath.Join(configDir, globalFile)
	firstRun := !fileExists(globalPath)
	if !firstRun {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", globalPath, err)
		}
	}

	bindEnvOverrides(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", globalPath, err)
	}

	cfg.ConfigDir = configDir
	cfg.DataDir = dataDir
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = logsDir
	}
	cfg.ApplyDefaults()

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(dataDir, "botshepherd.db")
	}

	generated, err := bootstrapCredentials(cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if firstRun || generated {
		if err := SaveGlobal(configDir, cfg); err != nil {
			return nil, fmt.Errorf("write %s: %w", globalPath, err)
		}
		if firstRun {
			fmt.Printf("[config] wrote default global config to %s\n", globalPath)
		}
	}

	return cfg, nil
}

// bootstrapCredentials generates the admin password and JWT secret when
// absent. The plaintext password is printed exactly once; only the
// bcrypt hash is stored.
func bootstrapCredentials(cfg *Config) (bool, error) {
	generated := false

	if cfg.Web.PasswordHash == "" {
		plaintext, err := password.GenerateToken(8)
		if err != nil {
			return false, fmt.Errorf("generate admin password: %w", err)
		}
		hash, err := password.NewBcryptHasher().Hash(plaintext)
		if err != nil {
			return false, fmt.Errorf("hash admin password: %w", err)
		}
		cfg.Web.PasswordHash = hash
		generated = true
		fmt.Printf("[config] generated admin password: %s (shown once, only the hash is stored)\n", plaintext)
	}

	if cfg.Web.JWTSecret == "" {
		secret, err := password.GenerateToken(32)
		if err != nil {
			return false, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Web.JWTSecret = secret
		generated = true
	}

	return generated, nil
}

// SaveGlobal writes the global configuration to configDir/global.yaml.
func SaveGlobal(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := []byte("# BotShepherd global configuration.\n# Environment variables with the BS_ prefix override these values.\n")
	return os.WriteFile(filepath.Join(configDir, globalFile), append(header, data...), 0o600)
}

// LoadConnections reads connections.yaml from configDir. A missing file
// is created with a disabled example connection. Map keys become
// connection IDs; key case is preserved.
func LoadConnections(configDir string) (map[string]*ConnectionConfig, error) {
	path := filepath.Join(configDir, connectionsFile)
	if !fileExists(path) {
		conns := defaultConnections()
		if err := SaveConnections(configDir, conns); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("[config] wrote example connections to %s\n", path)
		return conns, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	conns := make(map[string]*ConnectionConfig)
	if err := yaml.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for id, conn := range conns {
		if conn == nil {
			conn = &ConnectionConfig{}
			conns[id] = conn
		}
		conn.ID = id
	}
	return conns, nil
}

// SaveConnections writes the connection definitions to
// configDir/connections.yaml.
func SaveConnections(configDir string, conns map[string]*ConnectionConfig) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(conns)
	if err != nil {
		return err
	}
	header := []byte("# BotShepherd proxy connections.\n# Each key is a connection ID; target_endpoints entries are URLs or objects.\n")
	return os.WriteFile(filepath.Join(configDir, connectionsFile), append(header, data...), 0o600)
}

func defaultConnections() map[string]*ConnectionConfig {
	return map[string]*ConnectionConfig{
		"example": {
			ID:             "example",
			Name:           "Example connection",
			Description:    "Disabled sample. Point your bot client at the client endpoint and your framework at a target.",
			Enabled:        false,
			ClientEndpoint: "ws://0.0.0.0:5111/ws/client",
			TargetEndpoints: []*TargetEndpoint{
				{URL: "ws://127.0.0.1:8080/onebot/v11/ws"},
			},
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// bindEnvOverrides maps BS_-prefixed environment variables into viper
// keys, generating nested-key variants so BS_SECURITY_MAX_ATTEMPTS can
// address security.max_attempts.
func bindEnvOverrides(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		for _, variant := range envKeyVariants(strings.TrimPrefix(key, EnvPrefix)) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants creates possible nested key spellings for an
// environment variable name.
// Example: SECURITY_MAX_ATTEMPTS -> [security_max_attempts,
// security.max.attempts, security.max_attempts, security_max.attempts].
func envKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")
	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}
	return dedupe(variants)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
