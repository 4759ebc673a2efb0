package database

import (
	"fmt"
	"testing"
)

// TestConfig_ApplyDefaults_MaxOpenConns tests default for MaxOpenConns
func TestConfig_ApplyDefaults_MaxOpenConns(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1", cfg.MaxOpenConns)
	}
}

// TestConfig_ApplyDefaults_MaxIdleConns tests default for MaxIdleConns
func TestConfig_ApplyDefaults_MaxIdleConns(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.MaxIdleConns != 1 {
		t.Errorf("MaxIdleConns = %d, want 1", cfg.MaxIdleConns)
	}
}

// TestConfig_ApplyDefaults_ConnMaxLifetime tests default for ConnMaxLifetime
func TestConfig_ApplyDefaults_ConnMaxLifetime(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.ConnMaxLifetime != "1h" {
		t.Errorf("ConnMaxLifetime = %q, want %q", cfg.ConnMaxLifetime, "1h")
	}
}

// TestConfig_ApplyDefaults_MaxRetries tests default for MaxRetries
func TestConfig_ApplyDefaults_MaxRetries(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

// TestConfig_ApplyDefaults_SlowQueryThreshold tests default for SlowQueryThreshold
func TestConfig_ApplyDefaults_SlowQueryThreshold(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.SlowQueryThreshold != "200ms" {
		t.Errorf("SlowQueryThreshold = %q, want %q", cfg.SlowQueryThreshold, "200ms")
	}
}

// TestConfig_ApplyDefaults_LogLevel tests default for LogLevel
func TestConfig_ApplyDefaults_LogLevel(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

// TestConfig_ApplyDefaults_PreservesExistingValues tests that non-zero values are preserved
func TestConfig_ApplyDefaults_PreservesExistingValues(t *testing.T) {
	cfg := Config{
		Path:               "/tmp/test.db",
		MaxOpenConns:       4,
		MaxIdleConns:       2,
		ConnMaxLifetime:    "2h",
		MaxRetries:         10,
		SlowQueryThreshold: "500ms",
		LogLevel:           "info",
		KeepDays:           14,
	}
	cfg.ApplyDefaults()

	if cfg.Path != "/tmp/test.db" {
		t.Errorf("Path = %q, want /tmp/test.db", cfg.Path)
	}
	if cfg.MaxOpenConns != 4 {
		t.Errorf("MaxOpenConns = %d, want 4", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 2 {
		t.Errorf("MaxIdleConns = %d, want 2", cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "2h" {
		t.Errorf("ConnMaxLifetime = %q, want %q", cfg.ConnMaxLifetime, "2h")
	}
	if cfg.MaxRetries != 10 {
		t.Errorf("MaxRetries = %d, want 10", cfg.MaxRetries)
	}
	if cfg.SlowQueryThreshold != "500ms" {
		t.Errorf("SlowQueryThreshold = %q, want %q", cfg.SlowQueryThreshold, "500ms")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.KeepDays != 14 {
		t.Errorf("KeepDays = %d, want 14", cfg.KeepDays)
	}
}

// TestConfig_Validate_DisabledSkipsValidation tests that disabled config doesn't validate
func TestConfig_Validate_DisabledSkipsValidation(t *testing.T) {
	cfg := Config{
		Enabled: false,
		// All fields empty - would fail if validation ran
	}

	err := cfg.Validate()
	if err != nil {
		t.Errorf("Validate() should skip when Enabled=false, got error: %v", err)
	}
}

// TestConfig_Validate_Success tests successful validation
func TestConfig_Validate_Success(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    "1h",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "warn",
	}

	err := cfg.Validate()
	if err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

// TestConfig_Validate_MissingPath tests validation fails with missing Path
func TestConfig_Validate_MissingPath(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               "",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    "1h",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "warn",
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail with empty Path")
	}

	expectedMsg := "database path is required"
	if err.Error() != expectedMsg {
		t.Errorf("Error message = %q, want %q", err.Error(), expectedMsg)
	}
}

// TestConfig_Validate_MaxIdleGreaterThanMaxOpen tests validation fails when idle > open
func TestConfig_Validate_MaxIdleGreaterThanMaxOpen(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       2,
		ConnMaxLifetime:    "1h",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "warn",
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail when MaxIdleConns > MaxOpenConns")
	}

	expectedMsg := fmt.Sprintf("max_idle_conns (%d) must be <= max_open_conns (%d)", 2, 1)
	if err.Error() != expectedMsg {
		t.Errorf("Error message = %q, want %q", err.Error(), expectedMsg)
	}
}

// TestConfig_Validate_InvalidConnMaxLifetime tests validation fails with invalid ConnMaxLifetime
func TestConfig_Validate_InvalidConnMaxLifetime(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    "invalid-duration",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "warn",
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail with invalid ConnMaxLifetime")
	}
}

// TestConfig_Validate_InvalidLogLevel tests validation rejects unknown log levels
func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    "1h",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "debug",
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail with LogLevel debug")
	}
}

// TestConfig_Validate_ValidLogLevels tests all accepted log levels
func TestConfig_Validate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"silent", "error", "warn", "info"} {
		cfg := Config{
			Enabled:            true,
			Path:               ":memory:",
			MaxOpenConns:       1,
			MaxIdleConns:       1,
			ConnMaxLifetime:    "1h",
			MaxRetries:         3,
			SlowQueryThreshold: "200ms",
			LogLevel:           level,
		}

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() failed for LogLevel %q: %v", level, err)
		}
	}
}

// TestConfig_Validate_NegativeKeepDays tests validation rejects negative retention
func TestConfig_Validate_NegativeKeepDays(t *testing.T) {
	cfg := Config{
		Enabled:            true,
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    "1h",
		MaxRetries:         3,
		SlowQueryThreshold: "200ms",
		LogLevel:           "warn",
		KeepDays:           -1,
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("Validate() should fail with negative KeepDays")
	}
}

// TestConfig_Validate_ZeroValuesAllowedByApplyDefaults tests ApplyDefaults fills required fields
func TestConfig_Validate_ZeroValuesAllowedByApplyDefaults(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Path:    ":memory:",
	}
	cfg.ApplyDefaults()

	// After ApplyDefaults, validation should succeed
	err := cfg.Validate()
	if err != nil {
		t.Errorf("Validate() failed after ApplyDefaults: %v", err)
	}
}

// TestConfig_ApplyDefaults_Idempotent tests that ApplyDefaults is idempotent
func TestConfig_ApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	first := cfg
	cfg.ApplyDefaults()
	second := cfg

	if first != second {
		t.Error("ApplyDefaults should be idempotent")
	}
}

// TestConfig_Validate_AllErrorCasesCovered tests multiple error conditions
func TestConfig_Validate_AllErrorCasesCovered(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "Valid config",
			cfg: Config{
				Enabled:            true,
				Path:               ":memory:",
				MaxOpenConns:       1,
				MaxIdleConns:       1,
				ConnMaxLifetime:    "1h",
				MaxRetries:         3,
				SlowQueryThreshold: "200ms",
				LogLevel:           "warn",
			},
			wantErr: false,
		},
		{
			name: "Missing path",
			cfg: Config{
				Enabled:            true,
				MaxOpenConns:       1,
				MaxIdleConns:       1,
				ConnMaxLifetime:    "1h",
				MaxRetries:         3,
				SlowQueryThreshold: "200ms",
				LogLevel:           "warn",
			},
			wantErr: true,
		},
		{
			name: "Invalid MaxOpenConns",
			cfg: Config{
				Enabled:            true,
				Path:               ":memory:",
				MaxOpenConns:       -5,
				MaxIdleConns:       1,
				ConnMaxLifetime:    "1h",
				MaxRetries:         3,
				SlowQueryThreshold: "200ms",
				LogLevel:           "warn",
			},
			wantErr: true,
		},
		{
			name: "Invalid SlowQueryThreshold",
			cfg: Config{
				Enabled:            true,
				Path:               ":memory:",
				MaxOpenConns:       1,
				MaxIdleConns:       1,
				ConnMaxLifetime:    "1h",
				MaxRetries:         3,
				SlowQueryThreshold: "abc",
				LogLevel:           "warn",
			},
			wantErr: true,
		},
		{
			name: "Invalid MaxRetries",
			cfg: Config{
				Enabled:            true,
				Path:               ":memory:",
				MaxOpenConns:       1,
				MaxIdleConns:       1,
				ConnMaxLifetime:    "1h",
				MaxRetries:         -1,
				SlowQueryThreshold: "200ms",
				LogLevel:           "warn",
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
