package http

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientIP is the shared bucket for requests that carry no usable address
const UnknownClientIP = "unknown"

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP determines the client address used for IP throttling.
//
// With no trusted proxies configured the service is assumed to sit behind the
// platform edge, which always sets forwarding headers: X-Forwarded-For (first
// valid entry) then X-Real-IP, else UnknownClientIP.
//
// With trusted proxies configured the headers are honoured only when the
// immediate peer is inside one of those ranges; otherwise RemoteAddr is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	if config == nil || len(config.TrustedProxies) == 0 {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
		return UnknownClientIP
	}

	remoteIP := getRemoteAddr(r)
	if isTrustedProxy(remoteIP, config.TrustedProxies) {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}

	return remoteIP
}

// forwardedIP reads X-Forwarded-For then X-Real-IP
func forwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if isValidIP(ip) {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if isValidIP(xri) {
			return xri
		}
	}

	return ""
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return UnknownClientIP
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
