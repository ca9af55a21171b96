package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest resolves the client address for audit purposes: the first
// syntactically valid address in X-Forwarded-For wins, otherwise the direct
// peer address. The result is recorded, never used for authorization, so a
// spoofed header costs nothing.
func FromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			candidate := strings.TrimSpace(part)
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr had no port component
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}
