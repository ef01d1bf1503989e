// Package cardnum holds helpers for primary account numbers (PANs): checksum
// validation, issuer detection, display formatting and masking.
package cardnum

import (
	"strings"

	"golang.org/x/text/width"
)

// Length limits of a PAN per ISO/IEC 7812.
const (
	MinLength = 12
	MaxLength = 19
)

// Normalize folds full-width digits to ASCII and drops spaces and dashes, so
// "４１１１ １１１１-…" becomes "41111111…". Other characters are kept.
func Normalize(s string) string {
	folded := width.Fold.String(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, folded)
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Luhn reports whether the digit string passes the mod-10 checksum.
func Luhn(digits string) bool {
	if !IsDigits(digits) {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IsValid reports whether pan looks like a real card number: digits only,
// 12 to 19 long and Luhn-valid.
func IsValid(pan string) bool {
	if len(pan) < MinLength || len(pan) > MaxLength {
		return false
	}
	return Luhn(pan)
}

// Mask replaces all but the last four digits with '*'.
func Mask(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return strings.Repeat("*", len(pan)-4) + pan[len(pan)-4:]
}

// Format groups the digits for display: 4-6-5 for American Express 15-digit
// numbers, 4-6-4 for 14-digit Diners Club, blocks of four otherwise.
func Format(pan string) string {
	var groups []int
	switch issuer := IssuerOf(pan); {
	case issuer == AmericanExpress && len(pan) == 15:
		groups = []int{4, 6, 5}
	case issuer == DinersClub && len(pan) == 14:
		groups = []int{4, 6, 4}
	}

	var b strings.Builder
	pos := 0
	for i := 0; pos < len(pan); i++ {
		n := 4
		if i < len(groups) {
			n = groups[i]
		}
		if pos > 0 {
			b.WriteByte(' ')
		}
		end := min(pos+n, len(pan))
		b.WriteString(pan[pos:end])
		pos = end
	}
	return b.String()
}
