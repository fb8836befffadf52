package logger

import (
	"net/url"
	"strings"
)

// redactedQueryKeys are request parameters that can carry an address, a
// credential or a redirect target. Matching is by key and ignores case.
var redactedQueryKeys = map[string]struct{}{
	"email":        {},
	"identifier":   {},
	"redirecturl":  {},
	"redirect_to":  {},
	"apikey":       {},
	"access_token": {},
	"token":        {},
	"code":         {},
}

// SanitizedEmail masks an address for logs, keeping the first character of
// the mailbox and the top-level domain: "user@example.com" -> "u***@*******.com".
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	mailbox, domain := email[:at], email[at+1:]
	if len(mailbox) > 1 {
		mailbox = mailbox[:1] + strings.Repeat("*", len(mailbox)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return mailbox + "@" + strings.Join(labels, ".")
}

// SanitizeQueryString reports whether rawQuery names a redacted parameter,
// in which case the whole query string is dropped from request logs.
// Unparseable query strings are redacted too.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		if _, ok := redactedQueryKeys[strings.ToLower(key)]; ok {
			return true
		}
	}
	return false
}
