package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"us thousands", "1,606.58", "1606.58"},
		{"plain", "1606.58", "1606.58"},
		{"integer", "1606", "1606"},
		{"eu thousands", "1.606,58", "1606.58"},
		{"comma decimal", "16,58", "16.58"},
		{"comma grouping only", "1,606", "1606"},
		{"currency prefix", "Q 1,234.00", "1234"},
		{"currency code", "GTQ 500.25", "500.25"},
		{"dollar sign", "$2,000.10", "2000.1"},
		{"not a number", "n/a", "0"},
		{"empty", "", "0"},
		{"whitespace", "   ", "0"},
		{"dash placeholder", "-", "0"},
		{"negative", "-15.50", "-15.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAmount(tt.in)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
