package handler

import (
	"net"
	"net/http"
	"strings"
)

// clientIP prefers headers set by the edge (Cloudflare, then generic
// proxies) over the socket address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientCountry(r *http.Request) string {
	for _, h := range []string{"CF-IPCountry", "X-Vercel-IP-Country"} {
		if c := strings.TrimSpace(r.Header.Get(h)); c != "" {
			return c
		}
	}
	return ""
}

// baseURL is the configured public origin, or one derived from the request.
func baseURL(configured string, r *http.Request) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
