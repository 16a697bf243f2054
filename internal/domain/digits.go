package domain

import "strings"

// NormalizeDigits rewrites Arabic-Indic (U+0660..U+0669) and Persian
// (U+06F0..U+06F9) digits as ASCII and the Arabic decimal separator as '.'.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r == '٫':
			b.WriteRune('.')
		case r == '٬':
			// thousands separator
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
