package httpapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP resolves the caller's network origin: first X-Forwarded-For entry,
// then X-Real-Ip, then the socket peer. The literal "unknown" some proxies
// inject is skipped.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		first = strings.TrimSpace(first)
		if first != "" && !strings.EqualFold(first, "unknown") {
			return first
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" && !strings.EqualFold(real, "unknown") {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
