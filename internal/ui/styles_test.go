package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"empty", nil, ""},
		{"flat", []float64{0.4, 0.4, 0.4}, "▁▁▁"},
		{"rising", []float64{0, 0.5, 1}, "▁▅█"},
		{"falling", []float64{0.42, 0.40, 0.38}, "█▅▁"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sparkline(tt.values))
		})
	}
}

func TestDeltaSign(t *testing.T) {
	assert.Contains(t, Delta(0.02), "+0.020")
	assert.Contains(t, Delta(-0.02), "-0.020")
	assert.Contains(t, Delta(0), "+0.000")
}

func TestKeyHelp(t *testing.T) {
	help := KeyHelp("tab", "next", "q")
	assert.Contains(t, help, "tab")
	assert.Contains(t, help, "next")
	assert.NotContains(t, help, "q")
}
