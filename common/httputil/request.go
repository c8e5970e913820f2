package httputil

import (
	"net/http"
	"strconv"
	"strings"
)

// GetClientIP extracts the real client IP address from request headers.
// It handles proxy scenarios by checking headers in this order:
//  1. X-Forwarded-For (extracts first/client IP from comma-separated list)
//  2. X-Real-IP (single IP from reverse proxy)
//  3. RemoteAddr (direct connection)
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	// Strip port if present (RemoteAddr format "ip:port")
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return host
}

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal and false if the parameter is non-empty but invalid,
// so callers can reject malformed input explicitly.
func ParseIntParam(s string, defaultVal int) (int, bool) {
	if s == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal, false
	}
	return v, true
}
