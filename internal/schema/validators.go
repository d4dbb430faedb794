package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validators are deliberately permissive about formatting (thousand
// separators, leading symbols) and strict about structure. Each one operates
// on a single trimmed, non-empty value.

func validateNumeric(s string) bool {
	_, err := strconv.ParseFloat(stripThousands(s), 64)
	return err == nil
}

func transformNumeric(s string) (any, error) {
	f, err := strconv.ParseFloat(stripThousands(s), 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var currencyRe = regexp.MustCompile(`^\(?-?[\$€£¥₹]\s?\d[\d,\. ]*\)?$|^\(?-?\d[\d,\. ]*\s?[\$€£¥₹]\)?$`)

func validateCurrency(s string) bool {
	return currencyRe.MatchString(foldASCII(s))
}

// transformCurrency strips currency symbols and thousand separators and
// returns a float64. Parenthesized amounts are negative, accounting style.
func transformCurrency(s string) (any, error) {
	v := foldASCII(strings.TrimSpace(s))

	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}

	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ':
			// thousand separators
		default:
			// currency symbols and stray letters
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}
	if neg {
		f = -f
	}
	return f, nil
}

func validatePercentage(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return false
	}
	_, err := strconv.ParseFloat(stripThousands(strings.TrimSuffix(s, "%")), 64)
	return err == nil
}

// transformPercentage strips the % sign and divides by 100.
func transformPercentage(s string) (any, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(stripThousands(s), 64)
	if err != nil {
		return nil, fmt.Errorf("percentage: %w", err)
	}
	return f / 100, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
}

func validateDate(s string) bool {
	_, _, ok := parseDateLoose(s)
	return ok
}

func transformDate(s string) (any, error) {
	t, _, ok := parseDateLoose(s)
	if !ok {
		return nil, fmt.Errorf("date: unrecognized layout %q", s)
	}
	return t, nil
}

func parseDateLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

var (
	truthy = map[string]struct{}{"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}, "on": {}, "active": {}, "enabled": {}}
	falsy  = map[string]struct{}{"0": {}, "f": {}, "false": {}, "no": {}, "n": {}, "off": {}, "inactive": {}, "disabled": {}}
)

func validateBoolean(s string) bool {
	_, ok := parseBoolLoose(s)
	return ok
}

func transformBoolean(s string) (any, error) {
	v, ok := parseBoolLoose(s)
	if !ok {
		return nil, fmt.Errorf("boolean: unrecognized token %q", s)
	}
	return v, nil
}

func parseBoolLoose(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := truthy[s]; ok {
		return true, true
	}
	if _, ok := falsy[s]; ok {
		return false, true
	}
	return false, false
}

var (
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlRe     = regexp.MustCompile(`^https?://[^\s]+\.[^\s]{2,}$`)
	phoneRe   = regexp.MustCompile(`^\+?[\d\s\-().]{7,20}$`)
	phoneDig  = regexp.MustCompile(`\d`)
	zipcodeRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	ssnRe     = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
)

func validateEmail(s string) bool { return emailRe.MatchString(strings.TrimSpace(s)) }
func validateURL(s string) bool   { return urlRe.MatchString(strings.TrimSpace(s)) }

func validatePhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneRe.MatchString(s) {
		return false
	}
	n := len(phoneDig.FindAllString(s, -1))
	return n >= 7 && n <= 15
}

func validateZipcode(s string) bool { return zipcodeRe.MatchString(strings.TrimSpace(s)) }
func validateSSN(s string) bool     { return ssnRe.MatchString(strings.TrimSpace(s)) }

func transformIdentity(s string) (any, error) { return strings.TrimSpace(s), nil }

// stripThousands removes comma group separators so "1,234.56" parses.
// It refuses to touch strings where commas cannot be group separators.
func stripThousands(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ",") {
		return s
	}
	return strings.ReplaceAll(s, ",", "")
}
