package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks the local part of an address for logging
// ("jane@acme.com" -> "j***@acme.com"). The domain stays readable since it
// is the company being searched.
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}
	return local[:1] + "***@" + strings.ToLower(domain)
}

// EmailAttr is a slog attribute carrying a masked address
func EmailAttr(key, email string) slog.Attr {
	return slog.String(key, SanitizedEmail(email))
}

// sensitiveParams are query keys whose presence redacts the whole query
var sensitiveParams = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"task_hash":     {},
	"client_id":     {},
	"client_secret": {},
	"api_key":       {},
	"apikey":        {},
	"email":         {},
}

// SanitizeQueryString reports whether rawQuery carries a sensitive parameter
// and should be redacted as a whole. Unparseable queries are redacted.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		if _, ok := sensitiveParams[strings.ToLower(key)]; ok {
			return true
		}
	}
	return false
}
