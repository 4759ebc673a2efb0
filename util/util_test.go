package util

import "testing"

func TestPtr(t *testing.T) {
	p := Ptr(42)
	if p == nil || *p != 42 {
		t.Errorf("Ptr(42) = %v", p)
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "fallback", "other"); got != "fallback" {
		t.Errorf("Coalesce = %q, want %q", got, "fallback")
	}
	if got := Coalesce(0, 0, 7); got != 7 {
		t.Errorf("Coalesce = %d, want 7", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("Coalesce = %q, want empty", got)
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  bs help  ", "bs help"},
		{"removes control chars", "bs\x00 auth\x1b", "bs auth"},
		{"plain passthrough", "bs status", "bs status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
