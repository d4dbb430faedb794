package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFolder decomposes and drops combining marks so that values like
// "Café" or "naïve" compare and parse as plain ASCII.
var asciiFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldASCII applies Unicode normalization with diacritic stripping.
// On transform failure the input is returned unchanged.
func foldASCII(s string) string {
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeFieldName converts an arbitrary input string into a safe,
// lowercase identifier suitable for column names.
func NormalizeFieldName(s string) string {
	s = strings.TrimSpace(foldASCII(s))
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = (r == '_')
			continue
		}
		// Drop everything else.
	}

	return strings.Trim(b.String(), "_")
}

// TruncateFieldName enforces identifier length limits while preserving
// UTF-8 validity.
func TruncateFieldName(s string) string {
	const maxLen = 63
	if len(s) <= maxLen {
		return s
	}
	b := []byte(s)
	cut := maxLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxLen]
	}
	return string(b[:cut])
}
