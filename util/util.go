package util

import (
	"strings"
	"unicode"
)

// Ptr returns a pointer to v. Used for optional struct fields assigned
// from computed values.
func Ptr[T any](v T) *T {
	return &v
}

// Coalesce returns the first non-zero value, or the zero value if all
// are zero. Config defaulting is the main caller.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// SanitizeString trims whitespace and removes control characters from s.
// Chat-sourced command input passes through here before parsing.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
