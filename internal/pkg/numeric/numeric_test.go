package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"4", "4", true},
		{"٤", "4", true},  // Arabic-Indic
		{"४", "4", true},  // Devanagari
		{"４", "4", true}, // fullwidth
		{"𝟜", "4", true},  // mathematical double-struck
		{"𝟮", "2", true},  // mathematical sans-serif bold, second run of a merged range
		{"四", "4", true},
		{"十", "10", true},
		{"½", "0.5", true},
		{"Ⅻ", "12", true},
		{"²", "2", true},
		{"a", "0", false},
		{"44", "0", false},
		{"", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			}
		})
	}
}

func TestDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"١٢", "12", true}, // Arabic-Indic
		{"४२", "42", true}, // Devanagari
		{"４２", "42", true}, // fullwidth
		{"-٣.٥", "-3.5", true},
		{"+7", "+7", true},
		{"1٢3", "123", true}, // mixed scripts
		{"", "", false},
		{"-", "", false},
		{".", "", false},
		{"1.2.3", "", false},
		{"1-2", "", false},
		{"四二", "", false}, // CJK numerals are not Nd
		{"12a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Digits(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
