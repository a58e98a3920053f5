package models

import (
	"fmt"
	"net"
	"strings"
)

// NormalizeDomain reduces user input such as "https://www.Acme.com/contact"
// to a bare host name ("acme.com").
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, ".")

	if !LooksLikeDomain(d) {
		return "", fmt.Errorf("%w: invalid domain %q", ErrBadRequest, raw)
	}
	return d, nil
}

// LooksLikeDomain is a cheap shape check: at least one dot, no spaces and
// only host name characters.
func LooksLikeDomain(s string) bool {
	if !strings.Contains(s, ".") || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
