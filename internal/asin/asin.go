// Package asin extracts canonical Amazon product identifiers from listing URLs.
package asin

import (
	"net/url"
	"regexp"
	"strings"
)

var pathPattern = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)

// FromURL returns the 10-character product identifier embedded in a listing
// URL, or an empty string when none is found. The /dp/ and /gp/product/ path
// forms are tried first; after that any trailing 10-character alphanumeric
// path segment is accepted. The fallback is intentionally permissive and can
// match coincidental segments.
func FromURL(raw string) string {
	if m := pathPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if len(parts[i]) == 10 && isAlnum(parts[i]) {
			return parts[i]
		}
	}

	return ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
