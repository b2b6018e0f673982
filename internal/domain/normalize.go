package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var jurisdictionRegex = regexp.MustCompile(`^[A-Z]{2}$`)

// NormalizeBillingItem canonicalises a billing-item key for joining statements with the registry.
// Whitespace is removed, letters are upper-cased, and artefacts left by spreadsheet exports
// (a leading apostrophe, a trailing ".0" on numeric cells) are stripped.
func NormalizeBillingItem(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "'")

	key = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, key)

	if trimmed, ok := strings.CutSuffix(key, ".0"); ok && trimmed != "" && isDigits(trimmed) {
		key = trimmed
	}
	return key
}

// NormalizeAccountName lower-cases a name and collapses runs of whitespace.
func NormalizeAccountName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// IsNotApplicable reports whether v is a case-insensitive "N/A" marker.
func IsNotApplicable(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "N/A")
}

// IsUsableRoleCode reports whether code is present and not "N/A".
func IsUsableRoleCode(code string) bool {
	code = strings.TrimSpace(code)
	return code != "" && !IsNotApplicable(code)
}

// IsJurisdictionCode reports whether v looks like a two-letter jurisdiction code such as "TX".
func IsJurisdictionCode(v string) bool {
	return jurisdictionRegex.MatchString(strings.ToUpper(strings.TrimSpace(v)))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
