package common

import (
	"net/url"
	"strings"
)

// ReadCookie extracts the named cookie from a raw Cookie header string and
// URL-decodes its value. The second result reports whether the cookie was
// present. Used by the widget controller, which only sees the page's cookie
// string rather than a parsed request.
func ReadCookie(cookieHeader, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(cookieHeader) == "" {
		return "", false
	}
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found || strings.TrimSpace(key) != name {
			continue
		}
		decoded, err := url.QueryUnescape(strings.TrimSpace(value))
		if err != nil {
			return "", false
		}
		return decoded, true
	}
	return "", false
}
