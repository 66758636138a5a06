package httputil

import (
	"net"
	"net/http"
	"strings"

	"github.com/flippback/prebid-flipp/util/iputil"
)

var (
	xForwardedProto = http.CanonicalHeaderKey("X-Forwarded-Proto")
	xForwardedFor   = http.CanonicalHeaderKey("X-Forwarded-For")
	xTrueClientIP   = http.CanonicalHeaderKey("True-Client-IP")
	xRealIP         = http.CanonicalHeaderKey("X-Real-IP")
)

const (
	https = "https"
)

// IsSecure determines if the request uses https.
func IsSecure(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get(xForwardedProto), https) {
		return true
	}

	if strings.EqualFold(r.URL.Scheme, https) {
		return true
	}

	if r.TLS != nil {
		return true
	}

	return false
}

// FindIP returns the first ip address found in the http request matching the predicate v.
func FindIP(r *http.Request, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if ip, ver := findTrueClientIP(r, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findForwardedFor(r, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findRealIP(r, v); ip != nil {
		return ip, ver
	}

	if ip, ver := findRemoteAddr(r, v); ip != nil {
		return ip, ver
	}

	return nil, iputil.IPvUnknown
}

func findTrueClientIP(r *http.Request, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if value := r.Header.Get(xTrueClientIP); value != "" {
		return matchIP(strings.TrimSpace(value), v)
	}
	return nil, iputil.IPvUnknown
}

func findForwardedFor(r *http.Request, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if value := r.Header.Get(xForwardedFor); value != "" {
		for _, part := range strings.Split(value, ",") {
			if ip, ver := matchIP(strings.TrimSpace(part), v); ip != nil {
				return ip, ver
			}
		}
	}
	return nil, iputil.IPvUnknown
}

func findRealIP(r *http.Request, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if value := r.Header.Get(xRealIP); value != "" {
		return matchIP(strings.TrimSpace(value), v)
	}
	return nil, iputil.IPvUnknown
}

func findRemoteAddr(r *http.Request, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return matchIP(host, v)
	}
	return nil, iputil.IPvUnknown
}

func matchIP(value string, v iputil.IPValidator) (net.IP, iputil.IPVersion) {
	if ip, ver := iputil.ParseIP(value); ip != nil && v.IsValid(ip, ver) {
		return ip, ver
	}
	return nil, iputil.IPvUnknown
}
