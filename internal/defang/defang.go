// Package defang rewrites domains and URLs into display-safe forms for
// sharing threat indicators: dots become [.] and http(s) schemes become
// hxxp(s), breaking accidental clickability.
package defang

import "strings"

// Domain returns s with every dot replaced by [.]. Already-defanged input is
// returned unchanged, so applying Domain twice is safe.
func Domain(s string) string {
	if strings.Contains(s, "[.]") {
		return s
	}
	return strings.ReplaceAll(s, ".", "[.]")
}

// URL defangs the scheme and host portion of a URL, leaving path, query and
// fragment untouched. http becomes hxxp and https becomes hxxps. Like Domain,
// it is idempotent: hxxp schemes and [.] hosts pass through unchanged.
func URL(s string) string {
	if s == "" {
		return s
	}

	scheme := ""
	rest := s
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = s[:i]
		rest = s[i+3:]
	}

	switch strings.ToLower(scheme) {
	case "http":
		scheme = "hxxp"
	case "https":
		scheme = "hxxps"
	}

	// The netloc runs until the first path, query or fragment delimiter.
	end := len(rest)
	for idx, r := range rest {
		if r == '/' || r == '?' || r == '#' {
			end = idx
			break
		}
	}
	defanged := Domain(rest[:end]) + rest[end:]

	if scheme == "" {
		return defanged
	}
	return scheme + "://" + defanged
}
