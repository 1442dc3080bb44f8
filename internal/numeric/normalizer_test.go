package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmountSeparatorResolution(t *testing.T) {
	tests := []struct {
		token string
		want  float64
		ok    bool
	}{
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"12,34", 12.34, true},
		{"208.98", 208.98, true},
		{"$222.35", 222.35, true},
		{"€35,62", 35.62, true},
		{"1,234,567", 0, false}, // grouped million: outside the noise ceiling
		{"1,234", 1.234, true},  // lone comma with 3 digits reads as decimal
		{"4,5", 4.5, true},
		{"35", 35, true},
		{"total", 0, false},
		{"", 0, false},
		{"##.!?", 0, false},
		{"0", 0, false},       // zero is rejected as noise
		{"100000", 0, false},  // at the ceiling
		{"99999.99", 99999.99, true},
		{"-5,00", 0, false},   // negatives fall outside the accepted range
		{"13.37:", 13.37, true},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.token)
		assert.Equal(t, tt.ok, ok, "token %q", tt.token)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.0001, "token %q", tt.token)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		token string
		want  float64
		ok    bool
	}{
		{"24%", 24, true},
		{"24 %", 24, true},
		{"14.5%", 14.5, true},
		{"14,5", 14.5, true},
		{"0%", 0, true},
		{"100", 100, true},
		{"101", 0, false},
		{"abc%", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePercent(tt.token)
		assert.Equal(t, tt.ok, ok, "token %q", tt.token)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.0001, "token %q", tt.token)
		}
	}
}

func TestHasPercentGlyph(t *testing.T) {
	assert.True(t, HasPercentGlyph("24%"))
	assert.False(t, HasPercentGlyph("24"))
}
