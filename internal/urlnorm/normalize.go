// Package urlnorm canonicalizes raw website strings from business listings and
// recognizes addresses that point at social or listing platforms instead of a
// business's own site.
package urlnorm

import (
	"net/url"
	"strings"
)

var placeholders = map[string]struct{}{
	"":     {},
	"-":    {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"null": {},
	"nil":  {},
	"nan":  {},
}

// Normalize validates a raw website string and returns it as an https URL
// without a leading "www.". It returns false for placeholders, mail links and
// anything whose host lacks a plausible top-level label. It never panics and
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if _, skip := placeholders[lower]; skip {
		return "", false
	}
	if strings.HasPrefix(lower, "mailto:") {
		return "", false
	}

	s = stripLeading(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", false
	}

	host, rest := splitHost(s)
	if strings.Contains(host, "@") {
		return "", false
	}
	host = strings.ToLower(host)
	if !validHost(hostname(host)) {
		return "", false
	}

	out := "https://" + host + rest
	if _, err := url.Parse(out); err != nil {
		return "", false
	}
	return out, true
}

// Host returns the lower-case hostname of a normalized address.
func Host(addr string) string {
	s := stripPrefixFold(strings.TrimSpace(addr), "https://")
	s = stripPrefixFold(s, "http://")
	host, _ := splitHost(s)
	return hostname(strings.ToLower(host))
}

// stripLeading removes schemes and "www." labels until none remain, so
// repeated or nested prefixes normalize the same as a single one.
func stripLeading(s string) string {
	for {
		next := stripPrefixFold(s, "https://")
		next = stripPrefixFold(next, "http://")
		next = stripPrefixFold(next, "www.")
		if next == s {
			return s
		}
		s = next
	}
}

func stripPrefixFold(s, prefix string) string {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}

func splitHost(s string) (string, string) {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func hostname(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 {
		return host[:i]
	}
	return host
}

func validHost(host string) bool {
	if !strings.Contains(host, ".") {
		return false
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if label == "" {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
				return false
			}
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
