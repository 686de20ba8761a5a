// Package ecode canonicalizes European food-additive codes (E-numbers).
// Labels, users, and the registry itself disagree on spelling: "E250",
// "E 250", "e-250" and bare "250" all mean the same additive. One storage
// form is used as the cache key everywhere; query variants exist only
// because the upstream endpoint is inconsistent about separators.
package ecode

import (
	"regexp"
	"strings"
)

var (
	codeRe    = regexp.MustCompile(`(?i)\bE\s*[- ]?\s*\d{3}[A-Z]?\b`)
	coreRe    = regexp.MustCompile(`(?i)E\s*[- ]?\s*(\d{3}[A-Z]?)`)
	sepRe     = regexp.MustCompile(`[\s-]+`)
	nonDigits = regexp.MustCompile(`\D`)
)

// NormalizeStorage returns the canonical spelling used as the cache and
// database key: upper-case, no whitespace or hyphens, "E" prefix ensured.
// Empty input stays empty. Idempotent.
func NormalizeStorage(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	s = sepRe.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "E") {
		s = "E" + s
	}
	return s
}

// QueryVariants returns the upstream spellings to probe, in order. The
// registry usually wants "E 250" but some deployments accept only "E250"
// or "E-250"; no single form reliably succeeds.
func QueryVariants(s string) []string {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := coreRe.FindStringSubmatch(s)
	if m == nil {
		// Bare digits like "250" still get the three spellings.
		core := nonDigits.ReplaceAllString(s, "")
		if core == "" {
			return []string{s}
		}
		return []string{"E " + core, "E" + core, "E-" + core}
	}
	core := m[1]
	return []string{"E " + core, "E" + core, "E-" + core}
}

// ExtractFromText finds the first E-code-shaped substring in free text and
// returns its storage form, or "" when nothing matches.
func ExtractFromText(text string) string {
	if text == "" {
		return ""
	}
	m := codeRe.FindString(text)
	if m == "" {
		return ""
	}
	return NormalizeStorage(m)
}
