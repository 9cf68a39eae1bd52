package hostmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURLConfigured(t *testing.T) {
	tests := []struct {
		name        string
		appBaseURL  string
		requestHost string
		want        string
		wantErr     bool
	}{
		{"exact_match", "https://app.example.com", "app.example.com", "https://app.example.com", false},
		{"match_with_port", "http://app.example:8050", "app.example:8050", "http://app.example:8050", false},
		{"trailing_slash_trimmed", "https://app.example.com/", "app.example.com", "https://app.example.com", false},
		{"host_mismatch", "https://app.example.com", "evil.example.com", "", true},
		{"port_mismatch", "http://app.example:8050", "app.example:9000", "", true},
		{"invalid_base_url", "not a url", "app.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseURL(tt.appBaseURL, "http", tt.requestHost)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseURLDevFallback(t *testing.T) {
	got, err := BaseURL("", "http", "127.0.0.1:8050")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8050", got)

	got, err = BaseURL("", "http", "localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", got)

	_, err = BaseURL("", "http", "app.example.com")
	assert.ErrorIs(t, err, ErrUnconfigured)
}
