package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientKey(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		expected   ClientKey
	}{
		{
			name:       "forwarded for takes the first address",
			xff:        "203.0.113.50, 70.41.3.18, 150.172.238.178",
			realIP:     "198.51.100.7",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "forwarded for single address is trimmed",
			xff:        "  203.0.113.50  ",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "blank first forwarded entry falls back to real ip",
			xff:        " , 70.41.3.18",
			realIP:     "198.51.100.7",
			remoteAddr: "10.0.0.1:12345",
			expected:   "198.51.100.7",
		},
		{
			name:       "whitespace forwarded for falls back",
			xff:        "   ",
			remoteAddr: "10.0.0.1:12345",
			expected:   "10.0.0.1",
		},
		{
			name:       "real ip when no forwarded for",
			realIP:     " 198.51.100.7 ",
			remoteAddr: "10.0.0.1:12345",
			expected:   "198.51.100.7",
		},
		{
			name:       "blank real ip falls back to peer",
			realIP:     "  ",
			remoteAddr: "10.0.0.1:12345",
			expected:   "10.0.0.1",
		},
		{
			name:       "ipv6 peer address",
			remoteAddr: "[2001:db8::1]:443",
			expected:   "2001:db8::1",
		},
		{
			name:       "peer address without port",
			remoteAddr: "10.0.0.9",
			expected:   "10.0.0.9",
		},
		{
			name:       "nothing available",
			remoteAddr: "",
			expected:   UnknownClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.expected, ResolveClientKey(req))
		})
	}
}
