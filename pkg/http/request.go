package http

import (
	"net"
	"net/http"
	"strings"
)

// InvalidClientIP is returned when neither the forwarded headers nor the
// connection address yield a usable IP
const InvalidClientIP = "0.0.0.0"

// forwardedHeaders lists proxy headers in priority order
var forwardedHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // Single IPs or CIDR ranges of trusted proxies
}

// ExtractClientIP extracts the client IP address used as the rate-limit identity.
// Forwarded headers are honored only when the direct peer is a trusted proxy,
// so a client cannot pick its own identity by sending a forged header.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	return ResolveClientIP(r.RemoteAddr, r.Header, config)
}

// ResolveClientIP resolves the client IP from a raw connection address and headers.
//
// Flow:
// 1. If the peer is a trusted proxy, take the first entry of the first non-empty forwarded header
// 2. If that entry is not a valid IP (or no proxy applies), use the peer address
// 3. If the peer address is not a valid IP either, return InvalidClientIP
func ResolveClientIP(remoteAddr string, header http.Header, config *IPConfig) string {
	remoteIP := stripPort(remoteAddr)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if candidate := firstForwardedIP(header); candidate != "" && isValidIP(candidate) {
			return canonicalIP(candidate)
		}
	}

	if isValidIP(remoteIP) {
		return canonicalIP(remoteIP)
	}
	return InvalidClientIP
}

// firstForwardedIP returns the left-most entry of the highest priority header present
func firstForwardedIP(header http.Header) string {
	for _, name := range forwardedHeaders {
		value := strings.TrimSpace(header.Get(name))
		if value == "" {
			continue
		}
		first, _, _ := strings.Cut(value, ",")
		return strings.TrimSpace(first)
	}
	return ""
}

// stripPort removes the port from "ip:port" or "[ipv6]:port"
func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if ip, _, err := net.SplitHostPort(addr); err == nil {
		return ip
	}
	return strings.Trim(addr, "[]")
}

// isTrustedProxy checks if an IP address matches any trusted proxy entry
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				continue // Skip invalid CIDR ranges
			}
			if ipNet.Contains(clientIP) {
				return true
			}
			continue
		}
		if proxyIP := net.ParseIP(entry); proxyIP != nil && proxyIP.Equal(clientIP) {
			return true
		}
	}

	return false
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// canonicalIP normalizes textual forms so "::ffff:10.0.0.1" and "10.0.0.1" share a key
func canonicalIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	return parsed.String()
}
