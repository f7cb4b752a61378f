// Package numeric resolves the numeric value of Unicode characters such as
// script digits, CJK numerals, vulgar fractions and Roman numerals, and of
// decimal literals written with script digits.
package numeric

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Decimal digit characters (category Nd) are encoded in contiguous runs whose
// length is a multiple of ten and which start at a zero, so the value is the
// offset within the range table entry modulo ten.
func digitValue(r rune) (int, bool) {
	for _, rg := range unicode.Nd.R16 {
		if r <= 0xFFFF && uint16(r) >= rg.Lo && uint16(r) <= rg.Hi {
			return int(uint16(r)-rg.Lo) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if uint32(r) >= rg.Lo && uint32(r) <= rg.Hi {
			return int(uint32(r)-rg.Lo) % 10, true
		}
	}
	return 0, false
}

var special = map[rune]string{
	// CJK
	'〇': "0", '零': "0", '一': "1", '二': "2", '三': "3", '四': "4",
	'五': "5", '六': "6", '七': "7", '八': "8", '九': "9", '十': "10",
	'百': "100", '千': "1000", '万': "10000", '億': "100000000",
	'壱': "1", '弐': "2", '参': "3", '拾': "10",
	// fractions
	'½': "0.5", '⅓': "0.333", '⅔': "0.667", '¼': "0.25", '¾': "0.75",
	'⅕': "0.2", '⅖': "0.4", '⅗': "0.6", '⅘': "0.8", '⅙': "0.167",
	'⅚': "0.833", '⅛': "0.125", '⅜': "0.375", '⅝': "0.625", '⅞': "0.875",
	// superscripts and subscripts
	'⁰': "0", '¹': "1", '²': "2", '³': "3", '⁴': "4", '⁵': "5",
	'⁶': "6", '⁷': "7", '⁸': "8", '⁹': "9",
	'₀': "0", '₁': "1", '₂': "2", '₃': "3", '₄': "4", '₅': "5",
	'₆': "6", '₇': "7", '₈': "8", '₉': "9",
	// Roman numerals
	'Ⅰ': "1", 'Ⅱ': "2", 'Ⅲ': "3", 'Ⅳ': "4", 'Ⅴ': "5", 'Ⅵ': "6",
	'Ⅶ': "7", 'Ⅷ': "8", 'Ⅸ': "9", 'Ⅹ': "10", 'Ⅺ': "11", 'Ⅻ': "12",
	'Ⅼ': "50", 'Ⅽ': "100", 'Ⅾ': "500", 'Ⅿ': "1000",
	'ⅰ': "1", 'ⅱ': "2", 'ⅲ': "3", 'ⅳ': "4", 'ⅴ': "5", 'ⅵ': "6",
	'ⅶ': "7", 'ⅷ': "8", 'ⅸ': "9", 'ⅹ': "10",
	// circled
	'①': "1", '②': "2", '③': "3", '④': "4", '⑤': "5", '⑥': "6",
	'⑦': "7", '⑧': "8", '⑨': "9", '⑩': "10",
}

// Value returns the numeric value of r.
func Value(r rune) (decimal.Decimal, bool) {
	if v, ok := special[r]; ok {
		return decimal.RequireFromString(v), true
	}
	if d, ok := digitValue(r); ok {
		return decimal.NewFromInt(int64(d)), true
	}
	return decimal.Zero, false
}

// Parse accepts a string made of exactly one numeric character.
func Parse(s string) (decimal.Decimal, bool) {
	runes := []rune(s)
	if len(runes) != 1 {
		return decimal.Zero, false
	}
	return Value(runes[0])
}

// Digits rewrites a decimal literal written with digits of any script (category
// Nd) to ASCII, e.g. "١٢" to "12". A leading sign and one decimal point are
// kept. The result is false when s holds any other character or no digit.
func Digits(s string) (string, bool) {
	var b strings.Builder
	digits, point := 0, false
	for i, r := range s {
		switch {
		case (r == '-' || r == '+') && i == 0:
			b.WriteRune(r)
		case r == '.' && !point:
			point = true
			b.WriteRune(r)
		default:
			d, ok := digitValue(r)
			if !ok {
				return "", false
			}
			digits++
			b.WriteByte(byte('0' + d))
		}
	}
	return b.String(), digits > 0
}
