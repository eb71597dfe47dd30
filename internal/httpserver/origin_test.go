package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://mixer.example.com/ui"

	tests := []struct {
		name          string
		origin        string
		host          string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", "", false, true},
		{"app origin", "https://mixer.example.com", "", false, true},
		{"served by this host", "http://192.168.1.20:8080", "192.168.1.20:8080", false, true},

		{"different host", "https://evil.com", "192.168.1.20:8080", false, false},
		{"different port", "https://mixer.example.com:9090", "", false, false},
		{"http instead of https", "http://mixer.example.com", "", false, false},
		{"subdomain", "https://sub.mixer.example.com", "", false, false},

		{"localhost dev", "http://localhost:8080", "", true, true},
		{"localhost no port dev", "http://localhost", "", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", "", true, true},
		{"localhost prod rejected", "http://localhost:8080", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(appURL, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNewCheckOrigin_NoAppURL(t *testing.T) {
	checker := NewCheckOrigin("", false)
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example")
	assert.False(t, checker(r))
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/ui/index.html", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
