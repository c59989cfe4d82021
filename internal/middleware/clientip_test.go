package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		xff        string
		expected   string
	}{
		{
			name:       "no trusted proxies ignores header",
			remoteAddr: "203.0.113.5:4000",
			xff:        "198.51.100.1",
			expected:   "203.0.113.5",
		},
		{
			name:       "untrusted peer ignores header",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.5:4000",
			xff:        "198.51.100.1",
			expected:   "203.0.113.5",
		},
		{
			name:       "trusted peer uses header",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			xff:        "198.51.100.1",
			expected:   "198.51.100.1",
		},
		{
			name:       "rightmost untrusted hop wins",
			trusted:    []string{"10.0.0.0/8", "192.168.1.7"},
			remoteAddr: "10.1.2.3:4000",
			xff:        "1.1.1.1, 198.51.100.1, 192.168.1.7",
			expected:   "198.51.100.1",
		},
		{
			name:       "all hops trusted falls back to peer",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			xff:        "10.9.9.9",
			expected:   "10.1.2.3",
		},
		{
			name:       "remote without port",
			remoteAddr: "203.0.113.5",
			expected:   "203.0.113.5",
		},
		{
			name:       "ipv4-mapped peer matches ipv4 range",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "[::ffff:10.1.2.3]:4000",
			xff:        "198.51.100.1",
			expected:   "198.51.100.1",
		},
		{
			name:       "invalid entries skipped",
			trusted:    []string{"not-an-ip", "10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			xff:        "198.51.100.1",
			expected:   "198.51.100.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewClientIPExtractor(tt.trusted)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set(HeaderXForwardedFor, tt.xff)
			}

			assert.Equal(t, tt.expected, e.Extract(req))
		})
	}
}

func TestNewClientIPExtractor_IPv6(t *testing.T) {
	t.Parallel()

	e := NewClientIPExtractor([]string{"::1"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	req.Header.Set(HeaderXForwardedFor, "2001:db8::1")

	assert.Equal(t, "2001:db8::1", e.Extract(req))
}

func TestSetGlobalIPExtractor_IgnoresNil(t *testing.T) {
	t.Parallel()

	before := clientIPs.Load()
	SetGlobalIPExtractor(nil)

	assert.Same(t, before, clientIPs.Load())
}
