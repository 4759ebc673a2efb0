package logger

import "fmt"

// Config contains logging configuration.
type Config struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Format      string `yaml:"format" mapstructure:"format"`
	Output      string `yaml:"output" mapstructure:"output"`
	NoColor     bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp   bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller      bool   `yaml:"caller" mapstructure:"caller"`
	FileEnabled bool   `yaml:"file_enabled" mapstructure:"file_enabled"`
	// Dir is the root directory for per-component log files.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// KeepDays is how many days of rotated files to retain.
	KeepDays int `yaml:"keep_days" mapstructure:"keep_days"`
	// MaxFileSize is a human-readable size limit per file, e.g. "10MB".
	MaxFileSize string `yaml:"max_file_size" mapstructure:"max_file_size"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.KeepDays == 0 {
		c.KeepDays = 7
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = "10MB"
	}
	c.Timestamp = true
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal", "trace"}
	if !contains(validLevels, c.Level) {
		return fmt.Errorf("logging.level must be one of %v (got: %s)", validLevels, c.Level)
	}
	validFormats := []string{"json", "console"}
	if !contains(validFormats, c.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", validFormats, c.Format)
	}
	if c.KeepDays < 0 {
		return fmt.Errorf("logging.keep_days must not be negative (got: %d)", c.KeepDays)
	}
	return nil
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
