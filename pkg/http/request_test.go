package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_EdgeMode_UsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")
	req.Header.Set("X-Real-IP", "198.51.100.1")

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, "203.0.113.42", ip, "first X-Forwarded-For entry wins")
}

func TestExtractClientIP_EdgeMode_FallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.1")

	ip := pkghttp.ExtractClientIP(req, &pkghttp.IPConfig{})

	assert.Equal(t, "198.51.100.1", ip)
}

func TestExtractClientIP_EdgeMode_UnknownBucket(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, pkghttp.UnknownClientIP, ip, "no forwarding headers means the shared unknown bucket")
}

func TestExtractClientIP_EdgeMode_SkipsGarbageEntries(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.9")

	assert.Equal(t, "203.0.113.9", pkghttp.ExtractClientIP(req, nil))
}

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// Attacker tries to spoof their IP via X-Forwarded-For
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "127.0.0.1/32"},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "Should extract IP from RemoteAddr when not from trusted proxy")
}

func TestExtractClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_IPv6_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:54321"
	req.Header.Set("X-Forwarded-For", "2001:db8::1")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}}

	assert.Equal(t, "2001:db8::1", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_InvalidCIDR_UsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"invalid-cidr-range"}}

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config))
}
