package logger

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitivePatterns match credentials that may leak into error messages
// returned by HTTP clients and database drivers.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((client_secret|password|passwd|pass|token)[\s:=]+)([^;,&\s]{3,})`),
	// user:password@ in mysql and URL style DSNs
	regexp.MustCompile(`([A-Za-z0-9_.-]+:)([^@/\s]+)(@)`),
}

// RedactSensitiveData replaces credentials in free text with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for i, pattern := range sensitivePatterns {
		if i == len(sensitivePatterns)-1 {
			input = pattern.ReplaceAllString(input, "$1[REDACTED]$3")
			continue
		}
		input = pattern.ReplaceAllString(input, "$1[REDACTED]")
	}
	return input
}

// RedactURL strips the password from a URL while keeping it readable.
// Strings that do not parse as URLs fall back to RedactSensitiveData.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || !strings.Contains(raw, "://") {
		return RedactSensitiveData(raw)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
