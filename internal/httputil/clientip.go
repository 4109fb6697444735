// Package httputil holds request helpers shared by the API handlers.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address used to key per-client limits.
// When trustProxy is true the first parseable entry of X-Forwarded-For, then
// X-Real-IP, wins over RemoteAddr. Header values that are not IP addresses
// are ignored so a client cannot mint unlimited limiter keys.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := parseIP(first); ip != "" {
				return ip
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
