package util

import (
	"strconv"
	"strings"
)

// ParseSize converts a human-readable size such as "10MB" or "512kb"
// into bytes. Log rotation and request body limits are configured this
// way. Unparseable or negative input falls back to defaultBytes.
func ParseSize(s string, defaultBytes int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBytes
	}

	var unit int64 = 1
	for _, u := range []struct {
		suffix string
		bytes  int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
	} {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, unit = rest, u.bytes
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return defaultBytes
	}
	return n * unit
}

// MaskSecret keeps the first visiblePrefix characters of a secret and
// hides the rest, so auth keys can appear in logs without leaking.
// Secrets at or under the visible length are masked entirely.
func MaskSecret(s string, visiblePrefix int) string {
	if len(s) <= visiblePrefix {
		return "***"
	}
	return s[:visiblePrefix] + "***"
}
