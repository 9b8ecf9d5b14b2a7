package util

import (
	"net/http"
	"strings"
)

// MaskSecret hides sensitive parts of a string for safe display in logs.
// If the string is shorter than visiblePrefix, it is fully masked.
func MaskSecret(s string, visiblePrefix int) string {
	if len(s) <= visiblePrefix {
		return "***"
	}
	return s[:visiblePrefix] + "***"
}

var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
}

// MaskHeaders returns a copy of headers with credential-bearing values
// masked. Header names are matched case-insensitively.
func MaskHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSensitiveHeader(k) {
			v = MaskSecret(v, 4)
		}
		out[k] = v
	}
	return out
}

func isSensitiveHeader(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	if sensitiveHeaders[canonical] {
		return true
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "token") || strings.Contains(lower, "secret") || strings.HasSuffix(lower, "api-key")
}
