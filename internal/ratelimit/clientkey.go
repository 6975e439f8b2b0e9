package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the key used when a request carries no usable address.
const UnknownClient ClientKey = "unknown"

// ResolveClientKey derives the client key for a request. It prefers the first
// X-Forwarded-For entry, then X-Real-IP, then the peer address.
//
// Proxy headers are trusted as sent. Deployments must put a proxy in front
// that overwrites them, otherwise clients can pick their own key.
func ResolveClientKey(r *http.Request) ClientKey {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ClientKey(ip)
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return ClientKey(xri)
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return ClientKey(host)
	}
	if addr != "" {
		return ClientKey(addr)
	}

	return UnknownClient
}
