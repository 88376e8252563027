package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
)

// ClientIP records the caller's address on the request context: the first X-Forwarded-For
// entry, then X-Real-IP, then the connection's remote address.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(actor.WithClientIP(r.Context(), RemoteIP(r))))
	})
}

// RemoteIP returns the client IP for r, or "unknown".
func RemoteIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
