package redirect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	base := "http://app.example:8000"

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"empty_defaults_to_root", "", "/"},
		{"relative_path_unchanged", "/dash", "/dash"},
		{"relative_with_query", "/dash?x=1&y=2", "/dash?x=1&y=2"},
		{"bare_word_gets_slash", "settings", "/settings"},
		{"same_origin_absolute_stripped", "http://app.example:8000/dash?x=1", "/dash?x=1"},
		{"same_origin_with_fragment", "http://app.example:8000/dash#top", "/dash#top"},
		{"same_origin_no_path", "http://app.example:8000", "/"},
		{"cross_origin_rejected", "http://evil.example/x", "/"},
		{"cross_origin_same_host_different_port", "http://app.example:9000/x", "/"},
		{"protocol_relative_rejected", "//evil.example/x", "/"},
		{"https_same_host_stripped", "https://app.example:8000/secure", "/secure"},
		{"garbage_rejected", "http://[::1]:namedport", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(base, tt.target))
		})
	}
}

func TestSanitizeNeverReturnsForeignHost(t *testing.T) {
	base := "http://app.example:8000"
	targets := []string{
		"http://evil.example/",
		"https://evil.example/path",
		"//evil.example",
		"http://user@evil.example/",
		"javascript:alert(1)",
	}

	for _, target := range targets {
		got := Sanitize(base, target)
		assert.True(t, strings.HasPrefix(got, "/"), "target %q produced %q", target, got)
		assert.False(t, strings.HasPrefix(got, "//"), "target %q produced protocol-relative %q", target, got)
		assert.NotContains(t, got, "evil.example")
	}
}
