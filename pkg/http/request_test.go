package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
)

// Forwarded headers must only be trusted when the peer is a configured proxy.

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// Attacker tries to spoof their IP
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")
	req.Header.Set("CF-Connecting-IP", "9.9.9.9")

	config := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1"},
	}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "Should extract IP from RemoteAddr when not from trusted proxy")
}

func TestExtractClientIP_EmptyTrustedList_IgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	ip := pkghttp.ExtractClientIP(req, &pkghttp.IPConfig{TrustedProxies: []string{}})

	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_NoConfig_DefaultsSecurely(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_TrustedProxyExactIP_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.5"}}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_TrustedProxyCIDR_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 203.0.113.43, 10.0.0.5")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip, "Should use left-most entry of X-Forwarded-For")
}

func TestExtractClientIP_HeaderPriority(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.42")
	req.Header.Set("CF-Connecting-IP", "192.0.2.1")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.5"}}

	assert.Equal(t, "192.0.2.1", pkghttp.ExtractClientIP(req, config))

	req.Header.Del("CF-Connecting-IP")
	assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, config))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.7", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_TrustedProxy_InvalidForwardedFallsBack(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.42")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "10.0.0.5", ip, "Invalid left-most entry falls back to the connection address")
}

func TestExtractClientIP_IPv6_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "[::1]:54321"
	req.Header.Set("X-Forwarded-For", "2001:db8::1")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}}

	assert.Equal(t, "2001:db8::1", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_InvalidCIDR_IgnoresProxyCheck(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"invalid-cidr/range", "also-invalid"}}

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config))
}

func TestResolveClientIP_UnusableRemoteAddr_ReturnsSentinel(t *testing.T) {
	assert.Equal(t, pkghttp.InvalidClientIP, pkghttp.ResolveClientIP("", http.Header{}, nil))
	assert.Equal(t, pkghttp.InvalidClientIP, pkghttp.ResolveClientIP("garbage:port", http.Header{}, nil))
}

func TestResolveClientIP_RemoteAddrWithoutPort(t *testing.T) {
	assert.Equal(t, "203.0.113.10", pkghttp.ResolveClientIP("203.0.113.10", http.Header{}, nil))
	assert.Equal(t, "2001:db8::2", pkghttp.ResolveClientIP("2001:db8::2", http.Header{}, nil))
}

func TestExtractClientIP_LocalhostBypass_Prevention(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// Attacker tries to claim they're localhost to bypass rate limiting
	req.Header.Set("X-Forwarded-For", "127.0.0.1, 203.0.113.10")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config), "Should prevent localhost bypass attack")
}
