// Package pan formats card numbers for logs and events. Card numbers are
// opaque to the authorizer, so nothing here validates them.
package pan

import "strings"

// Normalize strips spaces, tabs and dashes.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}

func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Mask keeps the first six and last four characters of long numbers and only
// the last four of short ones.
func Mask(number string) string {
	cleaned := Normalize(number)
	n := len(cleaned)
	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n < 10:
		return strings.Repeat("*", n-4) + LastN(cleaned, 4)
	default:
		return cleaned[:6] + strings.Repeat("*", n-10) + LastN(cleaned, 4)
	}
}
