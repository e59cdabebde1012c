package logger

import (
	"log/slog"
	"strings"
)

// MaskCredential masks a submitted username for logging. Email-shaped values
// keep the first character and the TLD ("u***@*******.com"); anything else
// keeps only its first character.
func MaskCredential(credential string) string {
	if credential == "" {
		return "[empty]"
	}

	local, domain, isEmail := strings.Cut(credential, "@")
	if !isEmail {
		return maskTail(credential)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return maskTail(local) + "@" + domain
}

func maskTail(s string) string {
	runes := []rune(s)
	if len(runes) <= 1 {
		return s
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// CredentialAttr returns a slog attribute for a credential key. In production
// the value is masked; in development it is logged as-is.
func CredentialAttr(key, credential, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, MaskCredential(credential))
	}
	return slog.String(key, credential)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password", "passwd", "token", "secret", "username", "user", "email", "auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
