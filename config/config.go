package config

import (
	"fmt"

	"github.com/Anyuluo996/BotShepherd/database"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/observability"
	"github.com/Anyuluo996/BotShepherd/util"
	"github.com/Anyuluo996/BotShepherd/validation"
)

// Config is the global service configuration loaded from global.yaml.
type Config struct {
	Server        ServerConfig         `yaml:"server" mapstructure:"server"`
	CommandPrefix string               `yaml:"command_prefix" mapstructure:"command_prefix"`
	Security      SecurityConfig       `yaml:"security" mapstructure:"security"`
	Web           WebConfig            `yaml:"web" mapstructure:"web"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	// ConfigDir and DataDir are set by the loader, not serialized.
	ConfigDir string `yaml:"-" mapstructure:"-"`
	DataDir   string `yaml:"-" mapstructure:"-"`
}

// ServerConfig configures the main HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// SecurityConfig configures bot key authentication.
type SecurityConfig struct {
	// AuthEnabled requires bots to authenticate with a temporary key
	// before their messages are forwarded.
	AuthEnabled bool `yaml:"auth_enabled" mapstructure:"auth_enabled"`

	// MaxAttempts is how many failed key attempts trigger a ban.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// BanDuration is the ban length in minutes.
	BanDuration int `yaml:"ban_duration" mapstructure:"ban_duration"`
}

// WebConfig configures the admin API.
type WebConfig struct {
	// PasswordHash is the bcrypt hash of the admin password.
	// Generated on first run if empty.
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`

	// JWTSecret signs admin session tokens. Generated on first run if empty.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`

	// SessionTTL is how long admin sessions stay valid (e.g. "24h").
	SessionTTL string `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	c.Server.Host = util.Coalesce(c.Server.Host, "0.0.0.0")
	c.Server.Port = util.Coalesce(c.Server.Port, 5111)
	c.CommandPrefix = util.Coalesce(c.CommandPrefix, "bs")
	c.Security.MaxAttempts = util.Coalesce(c.Security.MaxAttempts, 3)
	c.Security.BanDuration = util.Coalesce(c.Security.BanDuration, 30)
	c.Web.SessionTTL = util.Coalesce(c.Web.SessionTTL, "24h")
	c.Observability.ServiceName = util.Coalesce(c.Observability.ServiceName, "botshepherd")
	c.Logging.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks the configuration for consistency. Called after
// ApplyDefaults; a failure aborts startup.
func (c *Config) Validate() error {
	v := validation.New()
	v.Range("server.port", c.Server.Port, 1, 65535)
	v.Min("security.max_attempts", c.Security.MaxAttempts, 1)
	v.Min("security.ban_duration", c.Security.BanDuration, 1)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
